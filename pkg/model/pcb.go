package model

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// PCB is the per-process scheduling record shared between the execution host
// and the scheduler. The host owns its lifetime and decrements the remaining
// time while the process runs; the scheduler owns its state.
type PCB struct {
	ID   int
	Name string

	remaining atomic.Int64

	mu    sync.Mutex
	state ProcessState
}

// NewPCB creates a PCB in the NEW state.
func NewPCB(id int, name string, timeRemaining int64) *PCB {
	p := &PCB{ID: id, Name: name, state: ProcessStateNew}
	p.remaining.Store(timeRemaining)
	return p
}

// State returns the current lifecycle state.
func (p *PCB) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState moves the PCB to next, rejecting transitions the lifecycle forbids.
func (p *PCB) SetState(next ProcessState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.CanTransitionTo(next) {
		return &InvalidTransitionError{
			Entity: "Process",
			ID:     strconv.Itoa(p.ID),
			From:   p.state.String(),
			To:     next.String(),
		}
	}
	p.state = next
	return nil
}

// TimeRemaining returns the current remaining-time estimate.
func (p *PCB) TimeRemaining() int64 {
	return p.remaining.Load()
}

// SetTimeRemaining replaces the remaining-time estimate.
func (p *PCB) SetTimeRemaining(v int64) {
	p.remaining.Store(v)
}

// ConsumeTime subtracts n from the remaining time, clamping at zero, and
// returns the new value.
func (p *PCB) ConsumeTime(n int64) int64 {
	for {
		cur := p.remaining.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if p.remaining.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Info returns a serialisable snapshot of the PCB.
func (p *PCB) Info() ProcessInfo {
	return ProcessInfo{
		ID:            p.ID,
		Name:          p.Name,
		State:         p.State(),
		TimeRemaining: p.TimeRemaining(),
	}
}

// String returns "name(pid)" for log output.
func (p *PCB) String() string {
	if p == nil {
		return "<idle>"
	}
	return p.Name + "(" + strconv.Itoa(p.ID) + ")"
}
