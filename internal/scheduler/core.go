package scheduler

import (
	"log/slog"

	"github.com/me/ossim/internal/config"
	"github.com/me/ossim/internal/readyq"
	"github.com/me/ossim/pkg/model"
)

// Scheduler decides, per CPU, which READY process runs next. It holds the
// ready queue and the assignment table for a single run and implements the
// Handlers the host calls into.
type Scheduler struct {
	cfg    config.SchedulerConfig
	host   Host
	queue  *readyq.Queue
	table  *Table
	logger *slog.Logger
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithQueue replaces the ready queue. The queue must be ordered for the
// configured discipline.
func WithQueue(q *readyq.Queue) Option {
	return func(s *Scheduler) {
		s.queue = q
	}
}

// New creates a Scheduler for cfg that commands host. cfg must already be
// validated.
func New(cfg config.SchedulerConfig, host Host, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		host:   host,
		table:  NewTable(cfg.CPUCount),
		logger: logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = readyq.New(cfg.Discipline)
	}
	return s
}

var _ Handlers = (*Scheduler)(nil)

// Config returns the scheduling configuration.
func (s *Scheduler) Config() config.SchedulerConfig {
	return s.cfg
}

// Queue returns the ready queue.
func (s *Scheduler) Queue() *readyq.Queue {
	return s.queue
}

// Table returns the CPU assignment table.
func (s *Scheduler) Table() *Table {
	return s.table
}

// Enqueue inserts a READY process into the ready queue.
func (s *Scheduler) Enqueue(p *model.PCB) {
	s.queue.Enqueue(p)
}

// Dequeue removes the next READY process.
func (s *Scheduler) Dequeue() (*model.PCB, bool) {
	return s.queue.Dequeue()
}

// Shutdown releases every CPU blocked in Idle. Idle returns without
// scheduling once the ready queue is closed and empty.
func (s *Scheduler) Shutdown() {
	s.queue.Close()
}

// schedule is the only path that changes what a CPU runs. It pops the head of
// the ready queue and hands it to the host, or idles the CPU when the queue is
// empty. The queue lock is released before the table lock is taken.
func (s *Scheduler) schedule(cpu int) {
	p, ok := s.queue.Dequeue()
	if !ok {
		s.table.Set(cpu, nil)
		s.logger.Debug("cpu idle", "cpu", cpu)
		s.host.ContextSwitch(cpu, nil, s.cfg.TimeSlice)
		return
	}

	s.transition("schedule", cpu, p, model.ProcessStateRunning)
	s.table.Set(cpu, p)
	s.logger.Debug("dispatch", "cpu", cpu, "pid", p.ID, "name", p.Name, "time_remaining", p.TimeRemaining())
	s.host.ContextSwitch(cpu, p, s.cfg.TimeSlice)
}

// Idle blocks until the ready queue is non-empty, then schedules cpu. Another
// CPU may win the race for the head, in which case cpu is idled again and the
// host calls Idle once more.
func (s *Scheduler) Idle(cpu int) {
	if !s.queue.WaitNonEmpty() {
		return
	}
	s.schedule(cpu)
}

// Preempt moves the process on cpu back to the ready queue and schedules cpu.
// The same process may be picked again.
func (s *Scheduler) Preempt(cpu int) {
	p := s.running("preempt", cpu)
	s.transition("preempt", cpu, p, model.ProcessStateReady)
	s.queue.Enqueue(p)
	s.logger.Debug("preempted", "cpu", cpu, "pid", p.ID, "time_remaining", p.TimeRemaining())
	s.schedule(cpu)
}

// Yield parks the process on cpu in WAITING. It leaves the scheduler's view
// until WakeUp.
func (s *Scheduler) Yield(cpu int) {
	p := s.running("yield", cpu)
	s.transition("yield", cpu, p, model.ProcessStateWaiting)
	s.logger.Debug("yielded for I/O", "cpu", cpu, "pid", p.ID)
	s.schedule(cpu)
}

// Terminate retires the process on cpu. The PCB is not freed; the host owns it.
func (s *Scheduler) Terminate(cpu int) {
	p := s.running("terminate", cpu)
	s.transition("terminate", cpu, p, model.ProcessStateTerminated)
	s.logger.Debug("terminated", "cpu", cpu, "pid", p.ID)
	s.schedule(cpu)
}

// WakeUp makes p READY and enqueues it. Under SRTF, when every CPU is busy
// and some CPU runs a process with strictly more remaining time than p, the
// CPU with the most remaining time is force-preempted.
func (s *Scheduler) WakeUp(p *model.PCB) {
	if st := p.State(); st != model.ProcessStateWaiting && st != model.ProcessStateNew {
		model.Invariant("wake_up", -1, "process %s is %s, want WAITING", p, st)
	}

	target, preempt := -1, false
	if s.cfg.Discipline == model.DisciplineSRTF {
		target, preempt = s.table.PreemptionTarget(p.TimeRemaining())
	}

	s.transition("wake_up", -1, p, model.ProcessStateReady)
	s.queue.Enqueue(p)
	s.logger.Debug("ready", "pid", p.ID, "time_remaining", p.TimeRemaining())

	if preempt {
		s.logger.Debug("force preempt", "cpu", target, "for_pid", p.ID)
		s.host.ForcePreempt(target)
	}
}

// Admit makes a NEW process READY. It follows the same path as WakeUp,
// including SRTF preemption.
func (s *Scheduler) Admit(p *model.PCB) {
	if st := p.State(); st != model.ProcessStateNew {
		model.Invariant("admit", -1, "process %s is %s, want NEW", p, st)
	}
	s.logger.Debug("admitted", "pid", p.ID, "name", p.Name)
	s.WakeUp(p)
}

// running removes and returns the process assigned to cpu.
func (s *Scheduler) running(op string, cpu int) *model.PCB {
	p := s.table.Take(cpu)
	if p == nil {
		model.Invariant(op, cpu, "no process running")
	}
	return p
}

func (s *Scheduler) transition(op string, cpu int, p *model.PCB, next model.ProcessState) {
	if err := p.SetState(next); err != nil {
		model.Invariant(op, cpu, "%v", err)
	}
}
