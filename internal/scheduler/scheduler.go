package scheduler

import "github.com/me/ossim/pkg/model"

// Host is the execution host the scheduler commands. It runs process
// instructions; the scheduler only tells it what to run where.
type Host interface {
	// ContextSwitch runs p on cpu, or idles the CPU when p is nil. timeSlice
	// is the round-robin quantum and is ignored by the host for other
	// disciplines. Called exactly once per scheduling decision, on the
	// goroutine that delivered the triggering event for that CPU.
	ContextSwitch(cpu int, p *model.PCB, timeSlice int)

	// ForcePreempt asks the host to preempt whatever runs on cpu as soon as
	// possible. The host answers by calling Handlers.Preempt for that CPU.
	ForcePreempt(cpu int)
}

// Handlers is the event surface the host calls into. Every method is safe to
// call concurrently from independent host goroutines, and none returns an
// error: events are fire-and-forget.
type Handlers interface {
	// Idle blocks until a process is ready, then schedules cpu.
	Idle(cpu int)

	// Preempt returns the running process on cpu to the ready queue and
	// schedules cpu again.
	Preempt(cpu int)

	// Yield parks the running process on cpu for I/O and schedules cpu.
	Yield(cpu int)

	// Terminate retires the running process on cpu and schedules cpu.
	Terminate(cpu int)

	// WakeUp makes a waiting (or newly arrived) process ready.
	WakeUp(p *model.PCB)

	// Enqueue inserts a READY process into the ready queue.
	Enqueue(p *model.PCB)

	// Dequeue removes the next READY process, or returns false if none.
	Dequeue() (*model.PCB, bool)
}
