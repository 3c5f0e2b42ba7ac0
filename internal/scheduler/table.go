package scheduler

import (
	"sync"

	"github.com/me/ossim/pkg/model"
)

// Table maps each CPU to the process it is running. A nil slot means the CPU
// is idle. The table has its own lock and never touches the ready queue.
type Table struct {
	mu    sync.Mutex
	slots []*model.PCB
}

// NewTable creates a table with one empty slot per CPU.
func NewTable(cpus int) *Table {
	return &Table{slots: make([]*model.PCB, cpus)}
}

// Len returns the number of CPUs.
func (t *Table) Len() int {
	return len(t.slots)
}

// Get returns the process on cpu, or nil when the CPU is idle.
func (t *Table) Get(cpu int) *model.PCB {
	t.check("get", cpu)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[cpu]
}

// Set records p as running on cpu. A nil p marks the CPU idle. Assigning to
// an occupied slot, or assigning a process that already occupies another
// slot, is an invariant violation.
func (t *Table) Set(cpu int, p *model.PCB) {
	t.check("assign", cpu)
	t.mu.Lock()
	if p != nil {
		if cur := t.slots[cpu]; cur != nil && cur != p {
			t.mu.Unlock()
			model.Invariant("assign", cpu, "cpu already running %s, cannot assign %s", cur, p)
		}
		for other, q := range t.slots {
			if q == p && other != cpu {
				t.mu.Unlock()
				model.Invariant("assign", cpu, "process %s already running on cpu %d", p, other)
			}
		}
	}
	t.slots[cpu] = p
	t.mu.Unlock()
}

// Take clears the slot for cpu and returns the process that was there.
func (t *Table) Take(cpu int) *model.PCB {
	t.check("take", cpu)
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.slots[cpu]
	t.slots[cpu] = nil
	return p
}

// Snapshot returns a copy of every slot, indexed by CPU.
func (t *Table) Snapshot() []*model.PCB {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*model.PCB, len(t.slots))
	copy(out, t.slots)
	return out
}

// IdleCount returns the number of CPUs with nothing assigned.
func (t *Table) IdleCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.slots {
		if p == nil {
			n++
		}
	}
	return n
}

// PreemptionTarget picks the CPU to force-preempt when a process with the
// given remaining time becomes ready under SRTF. No CPU is chosen while any
// CPU is idle. Otherwise the CPU whose process has the largest remaining
// time strictly greater than remaining wins; ties go to the lowest CPU id.
func (t *Table) PreemptionTarget(remaining int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	target := -1
	var largest int64
	for cpu, p := range t.slots {
		if p == nil {
			return -1, false
		}
		r := p.TimeRemaining()
		if r > remaining && (target < 0 || r > largest) {
			target, largest = cpu, r
		}
	}
	return target, target >= 0
}

func (t *Table) check(op string, cpu int) {
	if cpu < 0 || cpu >= len(t.slots) {
		model.Invariant(op, cpu, "cpu out of range [0, %d)", len(t.slots))
	}
}
