package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_WritesFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.json")

	p, err := Init("os-sim", "test", fname)
	require.NoError(t, err)

	_, span := p.StartSpan(context.Background(), "burst")
	span.WithAttributes(map[string]string{"process": "p1"}).WithInt("cpu", 0)
	EndSpan(span, nil)
	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"burst"`)
	assert.Contains(t, string(data), "p1")
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init("os-sim", "test", filepath.Join(t.TempDir(), "missing", "spans.json"))
	assert.Error(t, err)
}

func TestSpans_RecordAttributesAndStatus(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := NewWithExporter("os-sim", "test", exp)
	require.NoError(t, err)

	ctx, parent := p.StartSpan(context.Background(), "run")
	_, child := p.StartSpan(ctx, "burst")
	child.WithInt("cpu", 3).Event("preempted")
	EndSpan(child, errors.New("forced"))
	EndSpan(parent, nil)

	// The in-memory exporter forgets its spans on Shutdown.
	spans := exp.GetSpans()
	require.NoError(t, p.Shutdown(context.Background()))
	require.Len(t, spans, 2)
	burst, run := spans[0], spans[1]
	assert.Equal(t, "burst", burst.Name)
	assert.Equal(t, run.SpanContext.SpanID(), burst.Parent.SpanID())
	assert.Equal(t, codes.Error, burst.Status.Code)
	assert.Equal(t, codes.Ok, run.Status.Code)
	require.Len(t, burst.Events, 2, "preempted event plus recorded error")
	assert.Equal(t, "preempted", burst.Events[0].Name)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	ctx, span := p.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.Nil(t, span)
	span.WithInt("cpu", 1).WithAttributes(map[string]string{"a": "b"}).Event("x")
	EndSpan(span, nil)
	assert.NoError(t, p.Shutdown(context.Background()))
}
