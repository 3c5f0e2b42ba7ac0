// Package simulator hosts the scheduler: it runs one goroutine per simulated
// CPU, advances a shared clock, completes I/O bursts and delivers process
// arrivals. It implements scheduler.Host.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/me/ossim/internal/config"
	"github.com/me/ossim/internal/scheduler"
	"github.com/me/ossim/internal/tracing"
	"github.com/me/ossim/pkg/model"
)

// process is the simulator's bookkeeping for one PCB.
type process struct {
	pcb        *model.PCB
	spec       ProcessSpec
	burst      int   // index into spec.Bursts
	arrived    bool  // admitted to the scheduler
	inIO       bool  // blocked in an I/O burst
	ioDoneAt   int64 // tick at which the I/O burst completes
	finishedAt int64
	readyTicks int64
}

// cpu is the state of one simulated processor. current, slice, span and
// reason are owned by the CPU's goroutine: ContextSwitch for a CPU is only
// ever called from a handler that CPU's goroutine invoked. busy and lastTick
// are guarded by Simulator.mu so the clock can read them.
type cpu struct {
	id      int
	current *model.PCB
	slice   int
	span    *tracing.Span
	reason  string

	// preemptFor is the process a pending forced preemption was aimed at.
	preemptFor atomic.Pointer[model.PCB]

	busy     bool
	lastTick int64 // last tick executed, or the tick the process was dispatched in
}

// Option configures optional Simulator behaviour.
type Option func(*Simulator)

// WithTracer records one span per CPU burst.
func WithTracer(p *tracing.Provider) Option {
	return func(s *Simulator) {
		s.tracer = p
	}
}

// WithGantt writes one line per tick showing what each CPU runs.
func WithGantt(w io.Writer) Option {
	return func(s *Simulator) {
		s.gantt = w
	}
}

// Simulator drives a Scheduler with a simulated workload.
type Simulator struct {
	cfg    config.SimulatorConfig
	sched  *scheduler.Scheduler
	logger *slog.Logger
	tracer *tracing.Provider
	gantt  io.Writer
	runID  string
	runCtx context.Context

	cpus  []*cpu
	procs []*process

	mu         sync.Mutex
	started    bool
	now        int64
	released   int64         // last tick the CPUs were allowed to execute
	tick       chan struct{} // closed and replaced on every release
	expected   int           // busy CPUs that must execute the released tick
	acks       int
	ackDone    chan struct{}
	terminated int
	endTick    int64
	readyTicks int64
	done       chan struct{}

	switches atomic.Int64
}

var _ scheduler.Host = (*Simulator)(nil)

// New builds a simulator for the workload. Both configurations are validated
// here so Run never starts with bad settings.
func New(schedCfg config.SchedulerConfig, simCfg config.SimulatorConfig, w *Workload, logger *slog.Logger, opts ...Option) (*Simulator, error) {
	if err := schedCfg.Validate(); err != nil {
		return nil, err
	}
	if err := simCfg.Validate(); err != nil {
		return nil, err
	}
	if w == nil {
		w = DefaultWorkload()
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	s := &Simulator{
		cfg:    simCfg,
		logger: logger.With("component", "simulator"),
		runID:  runID,
		runCtx: context.Background(),
		tick:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i := 0; i < schedCfg.CPUCount; i++ {
		s.cpus = append(s.cpus, &cpu{id: i, slice: config.NoTimeSlice})
	}
	for i, spec := range w.Processes {
		s.procs = append(s.procs, &process{
			pcb:  model.NewPCB(i, spec.Name, spec.Bursts[0]),
			spec: spec,
		})
	}
	s.sched = scheduler.New(schedCfg, s, logger)
	return s, nil
}

// RunID returns the identifier attached to this run's logs and spans.
func (s *Simulator) RunID() string {
	return s.runID
}

// Scheduler returns the scheduler being driven.
func (s *Simulator) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Now returns the current simulated tick.
func (s *Simulator) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Run simulates the workload until every process terminates or ctx ends.
// Statistics are returned in both cases; a cancelled run also returns the
// context error.
func (s *Simulator) Run(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, errors.New("simulator: already run")
	}
	s.started = true
	s.mu.Unlock()

	cfg := s.sched.Config()
	start := time.Now()
	runCtx, span := s.tracer.StartSpan(ctx, "simulation")
	span.WithAttributes(map[string]string{
		"run_id":     s.runID,
		"discipline": cfg.Discipline.String(),
	}).WithInt("cpus", int64(cfg.CPUCount))
	s.runCtx = runCtx

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("simulation starting",
		"discipline", cfg.Discipline,
		"cpus", cfg.CPUCount,
		"time_slice", cfg.TimeSlice,
		"processes", len(s.procs),
		"tick", s.cfg.Tick,
	)
	s.ganttHeader()
	s.admitArrivals(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runClock(ctx)
	}()
	for _, c := range s.cpus {
		wg.Add(1)
		go func(c *cpu) {
			defer wg.Done()
			s.runCPU(ctx, c)
		}(c)
	}

	var err error
	select {
	case <-s.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	cancel()
	s.sched.Shutdown()
	wg.Wait()

	tracing.EndSpan(span, err)
	stats := s.stats(time.Since(start))
	if err != nil {
		s.logger.Warn("simulation interrupted", "tick", stats.TotalTicks, "error", err)
		return stats, err
	}
	s.logger.Info("simulation complete",
		"ticks", stats.TotalTicks,
		"context_switches", stats.ContextSwitches,
		"duration", formatDuration(stats.Elapsed),
	)
	return stats, nil
}

// ContextSwitch installs p on cpu, or idles it when p is nil. A process
// installed during tick t first executes in tick t+1.
func (s *Simulator) ContextSwitch(cpuID int, p *model.PCB, timeSlice int) {
	c := s.cpus[cpuID]
	s.endBurst(c)
	c.current = p
	c.slice = timeSlice
	c.preemptFor.Store(nil)

	s.mu.Lock()
	c.busy = p != nil
	c.lastTick = s.now
	s.mu.Unlock()
	if p == nil {
		return
	}
	s.switches.Add(1)
	_, c.span = s.tracer.StartSpan(s.runCtx, "cpu_burst")
	c.span.WithAttributes(map[string]string{"process": p.Name}).
		WithInt("pid", int64(p.ID)).
		WithInt("cpu", int64(cpuID)).
		WithInt("time_remaining", p.TimeRemaining())
}

// ForcePreempt asks cpu to give up its process at the end of the next tick.
// The request names the process the table shows on cpu now; it is dropped if
// the CPU is idle or runs a different process by then.
func (s *Simulator) ForcePreempt(cpuID int) {
	target := s.sched.Table().Get(cpuID)
	if target == nil {
		return
	}
	s.cpus[cpuID].preemptFor.Store(target)
}

// takePreempt consumes the pending forced preemption and reports whether it
// was aimed at p.
func (c *cpu) takePreempt(p *model.PCB) bool {
	target := c.preemptFor.Swap(nil)
	return target != nil && target == p
}

func (s *Simulator) endBurst(c *cpu) {
	if c.span == nil {
		return
	}
	if c.reason != "" {
		c.span.Event(c.reason)
	}
	tracing.EndSpan(c.span, nil)
	c.span, c.reason = nil, ""
}

func (s *Simulator) runCPU(ctx context.Context, c *cpu) {
	defer s.endBurst(c)
	for ctx.Err() == nil {
		if c.current == nil {
			s.sched.Idle(c.id)
			if c.current == nil && s.sched.Queue().Closed() {
				return
			}
			continue
		}
		tick, ok := s.awaitTick(ctx, c)
		if !ok {
			return
		}
		s.execute(c)
		s.ack(c, tick)
	}
}

// awaitTick blocks until the clock releases a tick c has not executed yet.
func (s *Simulator) awaitTick(ctx context.Context, c *cpu) (int64, bool) {
	for {
		s.mu.Lock()
		if s.released > c.lastTick {
			tick := s.released
			s.mu.Unlock()
			return tick, true
		}
		ch := s.tick
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return 0, false
		}
	}
}

// ack reports that c has executed tick. The last expected ack lets the clock
// move on.
func (s *Simulator) ack(c *cpu, tick int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.lastTick = tick
	s.acks++
	if s.acks == s.expected {
		close(s.ackDone)
	}
}

// execute runs the current process on c for one tick and raises whichever
// event ends its burst.
func (s *Simulator) execute(c *cpu) {
	p := c.current
	if p.ConsumeTime(1) == 0 {
		if io, ok := s.nextIO(p); ok {
			c.reason = "io"
			s.sched.Yield(c.id)
			s.beginIO(p, io)
			return
		}
		c.reason = "exit"
		s.sched.Terminate(c.id)
		s.finish(p)
		return
	}
	if c.takePreempt(p) {
		c.reason = "forced_preempt"
		s.sched.Preempt(c.id)
		return
	}
	if c.slice > 0 {
		c.slice--
		if c.slice == 0 {
			c.reason = "time_slice"
			s.sched.Preempt(c.id)
		}
	}
}

// nextIO advances p past its finished CPU burst. It returns the length of the
// following I/O burst, or false when p has no bursts left.
func (s *Simulator) nextIO(p *model.PCB) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc := s.procs[p.ID]
	proc.burst++
	if proc.burst >= len(proc.spec.Bursts) {
		return 0, false
	}
	return proc.spec.Bursts[proc.burst], true
}

// beginIO starts the I/O timer. It runs after Yield so the clock can never
// wake a process that is still RUNNING.
func (s *Simulator) beginIO(p *model.PCB, length int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc := s.procs[p.ID]
	proc.inIO = true
	proc.ioDoneAt = s.now + length
}

func (s *Simulator) finish(p *model.PCB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[p.ID].finishedAt = s.now
	s.terminated++
	s.logger.Debug("process finished", "pid", p.ID, "name", p.Name, "tick", s.now)
	if s.terminated == len(s.procs) {
		s.endTick = s.now
		close(s.done)
	}
}

func (s *Simulator) runClock(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.advance(ctx) {
			return
		}
	}
}

// advance moves the clock forward one tick in lockstep with the CPUs. It
// wakes completed I/O bursts and admits due arrivals, lets idle CPUs pick
// them up, and accrues READY time for what is still queued. It then releases
// the tick and returns once every CPU that was busy before the tick began has
// executed it. It returns false when ctx ends first.
func (s *Simulator) advance(ctx context.Context) bool {
	if !s.settle(ctx) {
		return false
	}

	s.mu.Lock()
	s.now++
	now := s.now
	var woken []*model.PCB
	for _, proc := range s.procs {
		if proc.inIO && proc.ioDoneAt <= now {
			proc.inIO = false
			proc.burst++
			proc.pcb.SetTimeRemaining(proc.spec.Bursts[proc.burst])
			woken = append(woken, proc.pcb)
		}
	}
	s.mu.Unlock()

	for _, p := range woken {
		s.sched.WakeUp(p)
	}
	s.admitArrivals(now)
	if !s.settle(ctx) {
		return false
	}

	s.mu.Lock()
	for _, p := range s.sched.Queue().Snapshot() {
		s.procs[p.ID].readyTicks++
		s.readyTicks++
	}
	s.ganttLine(now)

	s.acks, s.expected = 0, 0
	for _, c := range s.cpus {
		if c.busy && c.lastTick < now {
			s.expected++
		}
	}
	ackDone := make(chan struct{})
	s.ackDone = ackDone
	if s.expected == 0 {
		close(ackDone)
	}
	s.released = now
	close(s.tick)
	s.tick = make(chan struct{})
	s.mu.Unlock()

	select {
	case <-ackDone:
		return true
	case <-ctx.Done():
		return false
	}
}

// settle waits until no idle CPU can still pick up work: either every CPU is
// busy, or the ready queue is empty and every idle CPU is parked in Idle.
// Without it a dispatch racing the clock would start a tick late.
func (s *Simulator) settle(ctx context.Context) bool {
	for !s.settled() {
		if ctx.Err() != nil {
			return false
		}
		runtime.Gosched()
	}
	return true
}

func (s *Simulator) settled() bool {
	s.mu.Lock()
	idle := 0
	for _, c := range s.cpus {
		if !c.busy {
			idle++
		}
	}
	s.mu.Unlock()
	if idle == 0 {
		return true
	}
	queued, blocked := s.sched.Queue().Occupancy()
	return queued == 0 && blocked == idle
}

func (s *Simulator) admitArrivals(now int64) {
	s.mu.Lock()
	var due []*model.PCB
	for _, proc := range s.procs {
		if !proc.arrived && proc.spec.Arrival <= now {
			proc.arrived = true
			due = append(due, proc.pcb)
		}
	}
	s.mu.Unlock()

	for _, p := range due {
		s.logger.Debug("process arrived", "pid", p.ID, "name", p.Name, "tick", now)
		s.sched.Admit(p)
	}
}

func (s *Simulator) ganttHeader() {
	if s.gantt == nil {
		return
	}
	var b strings.Builder
	b.WriteString("Time  Ru Re Wa  ")
	for i := range s.cpus {
		fmt.Fprintf(&b, " %-10s", fmt.Sprintf("CPU %d", i))
	}
	b.WriteString("  < I/O Queue <")
	fmt.Fprintln(s.gantt, b.String())
}

// ganttLine must be called with s.mu held.
func (s *Simulator) ganttLine(now int64) {
	if s.gantt == nil {
		return
	}
	slots := s.sched.Table().Snapshot()
	running := 0
	for _, p := range slots {
		if p != nil {
			running++
		}
	}
	var waiting []string
	for _, proc := range s.procs {
		if proc.inIO {
			waiting = append(waiting, proc.spec.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5d %2d %2d %2d  ", now, running, s.sched.Queue().Len(), len(waiting))
	for _, p := range slots {
		name := "(IDLE)"
		if p != nil {
			name = p.Name
		}
		fmt.Fprintf(&b, " %-10s", name)
	}
	fmt.Fprintf(&b, "  < %s <", strings.Join(waiting, " "))
	fmt.Fprintln(s.gantt, b.String())
}

// CPUs reports the assignment table.
func (s *Simulator) CPUs() []model.CPUStatus {
	slots := s.sched.Table().Snapshot()
	out := make([]model.CPUStatus, len(slots))
	for i, p := range slots {
		out[i] = model.CPUStatus{CPU: i, Idle: p == nil}
		if p != nil {
			info := p.Info()
			out[i].Process = &info
		}
	}
	return out
}

// ReadyQueue reports the ready queue, head first.
func (s *Simulator) ReadyQueue() []model.ProcessInfo {
	queued := s.sched.Queue().Snapshot()
	out := make([]model.ProcessInfo, len(queued))
	for i, p := range queued {
		out[i] = p.Info()
	}
	return out
}

// Processes reports every process in the workload, in id order.
func (s *Simulator) Processes() []model.ProcessInfo {
	out := make([]model.ProcessInfo, len(s.procs))
	for i, proc := range s.procs {
		out[i] = proc.pcb.Info()
	}
	return out
}

// Process reports one process by id.
func (s *Simulator) Process(id int) (model.ProcessInfo, bool) {
	if id < 0 || id >= len(s.procs) {
		return model.ProcessInfo{}, false
	}
	return s.procs[id].pcb.Info(), true
}
