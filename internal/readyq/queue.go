// Package readyq implements the shared ready queue of READY processes.
//
// Ordering depends on the scheduling discipline: FCFS and round-robin keep
// arrival order, SJF and SRTF keep the queue sorted by remaining time with
// ties in arrival order. The head is therefore always the next process to
// run and Dequeue never searches.
package readyq

import (
	"sort"
	"sync"

	"github.com/me/ossim/pkg/model"
)

type entry struct {
	pcb *model.PCB
	key int64
	seq uint64
}

// Queue is a discipline-ordered ready queue safe for concurrent use.
type Queue struct {
	discipline model.Discipline

	mu       sync.Mutex
	nonEmpty *sync.Cond
	entries  []entry
	members  map[*model.PCB]struct{}
	seq      uint64
	closed   bool
	blocked  int // goroutines parked in WaitNonEmpty
}

// New creates an empty queue ordered for the given discipline.
func New(d model.Discipline) *Queue {
	q := &Queue{
		discipline: d,
		members:    make(map[*model.PCB]struct{}),
	}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Discipline returns the ordering policy of the queue.
func (q *Queue) Discipline() model.Discipline {
	return q.discipline
}

// Enqueue inserts p according to the discipline and wakes one idle waiter.
// Inserting a PCB that is already queued panics.
func (q *Queue) Enqueue(p *model.PCB) {
	if p == nil {
		model.Invariant("enqueue", -1, "nil process")
	}
	q.mu.Lock()
	if _, ok := q.members[p]; ok {
		q.mu.Unlock()
		model.Invariant("enqueue", -1, "process %s already in ready queue", p)
	}

	q.seq++
	e := entry{pcb: p, key: p.TimeRemaining(), seq: q.seq}
	if q.discipline.OrdersByRemainingTime() {
		// First entry with a strictly larger key: equal keys stay in arrival order.
		i := sort.Search(len(q.entries), func(i int) bool { return q.entries[i].key > e.key })
		q.entries = append(q.entries, entry{})
		copy(q.entries[i+1:], q.entries[i:])
		q.entries[i] = e
	} else {
		q.entries = append(q.entries, e)
	}
	q.members[p] = struct{}{}

	q.nonEmpty.Signal()
	q.mu.Unlock()
}

// Dequeue removes and returns the head of the queue. It returns false when
// the queue is empty; that is the "no work" signal, not an error.
func (q *Queue) Dequeue() (*model.PCB, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	head := q.entries[0]
	q.entries[0] = entry{}
	q.entries = q.entries[1:]
	delete(q.members, head.pcb)
	return head.pcb, true
}

// IsEmpty reports whether the queue has no members.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0
}

// Len returns the number of queued processes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether p is currently queued.
func (q *Queue) Contains(p *model.PCB) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.members[p]
	return ok
}

// Snapshot returns the queued processes, head first.
func (q *Queue) Snapshot() []*model.PCB {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.PCB, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.pcb
	}
	return out
}

// WaitNonEmpty blocks until the queue has at least one member. A wake-up is
// only a hint, so the predicate is re-checked after every wait. It returns
// false if the queue was closed while empty.
func (q *Queue) WaitNonEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.entries) == 0 {
		if q.closed {
			return false
		}
		q.blocked++
		q.nonEmpty.Wait()
		q.blocked--
	}
	return true
}

// Occupancy returns the queue length and the number of goroutines blocked in
// WaitNonEmpty, read together.
func (q *Queue) Occupancy() (queued, blocked int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), q.blocked
}

// Close releases every goroutine blocked in WaitNonEmpty. Queued processes
// stay queued; Enqueue and Dequeue keep working.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.nonEmpty.Broadcast()
	q.mu.Unlock()
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
