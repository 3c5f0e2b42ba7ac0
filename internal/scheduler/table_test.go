package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/ossim/pkg/model"
)

func tableWith(remaining ...int64) (*Table, []*model.PCB) {
	tbl := NewTable(len(remaining))
	pcbs := make([]*model.PCB, len(remaining))
	for cpu, r := range remaining {
		if r < 0 {
			continue // idle slot
		}
		pcbs[cpu] = model.NewPCB(cpu, "p", r)
		tbl.Set(cpu, pcbs[cpu])
	}
	return tbl, pcbs
}

func TestTable_PreemptionTarget(t *testing.T) {
	tests := []struct {
		name      string
		running   []int64 // -1 marks an idle CPU
		waking    int64
		wantCPU   int
		wantFound bool
	}{
		{"largest strictly greater", []int64{10, 4, 7}, 5, 0, true},
		{"only one candidate", []int64{10, 4, 7}, 8, 0, true},
		{"nothing greater", []int64{10, 4, 7}, 11, -1, false},
		{"equal is not greater", []int64{10, 4, 7}, 10, -1, false},
		{"largest not first", []int64{3, 9, 6}, 2, 1, true},
		{"tie goes to lowest cpu", []int64{5, 9, 9}, 1, 1, true},
		{"idle cpu exempts", []int64{10, -1, 7}, 1, -1, false},
		{"single cpu", []int64{4}, 3, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, _ := tableWith(tt.running...)
			cpu, ok := tbl.PreemptionTarget(tt.waking)
			assert.Equal(t, tt.wantFound, ok)
			assert.Equal(t, tt.wantCPU, cpu)
		})
	}
}

func TestTable_SetTakeGet(t *testing.T) {
	tbl := NewTable(2)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 2, tbl.IdleCount())

	p := model.NewPCB(1, "p", 3)
	tbl.Set(1, p)
	assert.Same(t, p, tbl.Get(1))
	assert.Nil(t, tbl.Get(0))
	assert.Equal(t, 1, tbl.IdleCount())

	snap := tbl.Snapshot()
	require.Len(t, snap, 2)
	assert.Same(t, p, snap[1])

	assert.Same(t, p, tbl.Take(1))
	assert.Nil(t, tbl.Get(1))
	assert.Nil(t, tbl.Take(1))
	assert.Equal(t, 2, tbl.IdleCount())
}

func TestTable_SetSamePCBTwiceIsIdempotent(t *testing.T) {
	tbl := NewTable(1)
	p := model.NewPCB(1, "p", 3)
	tbl.Set(0, p)
	assert.NotPanics(t, func() { tbl.Set(0, p) })
}

func TestTable_Invariants(t *testing.T) {
	tbl := NewTable(2)
	p := model.NewPCB(1, "p", 3)
	q := model.NewPCB(2, "q", 3)
	tbl.Set(0, p)

	assert.PanicsWithError(t,
		"scheduler invariant violated in assign (cpu 1): process p(1) already running on cpu 0",
		func() { tbl.Set(1, p) })
	assert.PanicsWithError(t,
		"scheduler invariant violated in assign (cpu 0): cpu already running p(1), cannot assign q(2)",
		func() { tbl.Set(0, q) })
	assert.Panics(t, func() { tbl.Get(2) })
	assert.Panics(t, func() { tbl.Take(-1) })

	// The table stays usable after a rejected assignment.
	tbl.Set(1, q)
	assert.Same(t, q, tbl.Get(1))
}
