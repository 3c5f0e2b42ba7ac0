// Package tracing records CPU bursts as OpenTelemetry spans. A nil *Provider
// and a nil *Span are valid and do nothing, so callers need no guards when
// tracing is off.
package tracing

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/me/ossim"

// Provider owns a tracer provider and the file its exporter writes to.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	out    io.Closer
}

// Init configures a stdout exporter. With an empty outputFile spans go to
// os.Stdout; otherwise the file is created (truncated) and owned by the
// Provider until Shutdown.
func Init(serviceName, serviceVersion, outputFile string) (*Provider, error) {
	var (
		w   io.Writer = os.Stdout
		out io.Closer
	)
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w, out = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, err
	}
	p, err := NewWithExporter(serviceName, serviceVersion, exporter)
	if err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, err
	}
	p.out = out
	return p, nil
}

// NewWithExporter builds a Provider around any SDK span exporter. Spans are
// exported synchronously as they end.
func NewWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentation)}, nil
}

// Shutdown flushes the exporter and closes the output file, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	err := p.tp.Shutdown(ctx)
	if p.out != nil {
		err = errors.Join(err, p.out.Close())
	}
	return err
}

// StartSpan starts a span named name as a child of any span in ctx.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if p == nil {
		return ctx, nil
	}
	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, &Span{span: span}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// WithAttributes attaches string attributes to the span.
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	s.span.SetAttributes(kv...)
	return s
}

// WithInt attaches an integer attribute to the span.
func (s *Span) WithInt(key string, v int64) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.Int64(key, v))
	return s
}

// Event records a named point in time on the span.
func (s *Span) Event(name string) {
	if s == nil {
		return
	}
	s.span.AddEvent(name)
}

// EndSpan finalises the span, recording err as its status.
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	if err != nil {
		sp.span.RecordError(err)
		sp.span.SetStatus(codes.Error, err.Error())
	} else {
		sp.span.SetStatus(codes.Ok, "")
	}
	sp.span.End()
}
