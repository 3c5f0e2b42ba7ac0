package simulator

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/me/ossim/internal/config"
	"github.com/me/ossim/internal/logging"
	"github.com/me/ossim/internal/tracing"
	"github.com/me/ossim/pkg/model"
)

func testWorkload() *Workload {
	return &Workload{Processes: []ProcessSpec{
		{Name: "io", Arrival: 0, Bursts: []int64{1, 3, 1, 3, 1}},
		{Name: "long", Arrival: 0, Bursts: []int64{9}},
		{Name: "mid", Arrival: 1, Bursts: []int64{4, 2, 2}},
		{Name: "short", Arrival: 2, Bursts: []int64{2}},
	}}
}

func simConfig() config.SimulatorConfig {
	cfg := config.DefaultSimulatorConfig()
	cfg.Tick = time.Millisecond
	return cfg
}

func runToCompletion(t *testing.T, sched config.SchedulerConfig, w *Workload, opts ...Option) (*Simulator, *Stats) {
	t.Helper()
	return runWithTick(t, sched, time.Millisecond, w, opts...)
}

func runWithTick(t *testing.T, sched config.SchedulerConfig, tick time.Duration, w *Workload, opts ...Option) (*Simulator, *Stats) {
	t.Helper()
	simCfg := simConfig()
	simCfg.Tick = tick
	sim, err := New(sched, simCfg, w, logging.Discard(), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stats, err := sim.Run(ctx)
	require.NoError(t, err)
	return sim, stats
}

func TestRun_AllDisciplinesComplete(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SchedulerConfig
	}{
		{"fcfs", config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 1}},
		{"fcfs multi", config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 3}},
		{"sjf", config.SchedulerConfig{Discipline: model.DisciplineSJF, CPUCount: 2}},
		{"srtf", config.SchedulerConfig{Discipline: model.DisciplineSRTF, CPUCount: 2}},
		{"rr", config.SchedulerConfig{Discipline: model.DisciplineRR, CPUCount: 2, TimeSlice: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWorkload()
			sim, stats := runToCompletion(t, tt.cfg, w)

			assert.Equal(t, len(w.Processes), stats.Terminated())
			assert.Equal(t, tt.cfg.CPUCount, stats.CPUs)
			assert.Equal(t, sim.RunID(), stats.RunID)

			var bursts int64
			for i, p := range stats.Processes {
				assert.Equal(t, model.ProcessStateTerminated, p.State, p.Name)
				assert.GreaterOrEqual(t, p.Turnaround, p.CPUTicks, p.Name)
				assert.GreaterOrEqual(t, p.Finished, p.Arrival, p.Name)
				bursts += int64((len(w.Processes[i].Bursts) + 1) / 2)
			}
			assert.GreaterOrEqual(t, stats.ContextSwitches, bursts, "every CPU burst needs a dispatch")

			for _, c := range sim.CPUs() {
				assert.True(t, c.Idle, "cpu %d should be idle after the run", c.CPU)
			}
			assert.Empty(t, sim.ReadyQueue())
		})
	}
}

func TestRun_RoundRobinPreempts(t *testing.T) {
	w := &Workload{Processes: []ProcessSpec{
		{Name: "a", Bursts: []int64{6}},
		{Name: "b", Bursts: []int64{6}},
	}}
	cfg := config.SchedulerConfig{Discipline: model.DisciplineRR, CPUCount: 1, TimeSlice: 2}
	_, stats := runToCompletion(t, cfg, w)

	// Six ticks each in quanta of two: at least three dispatches per process.
	assert.GreaterOrEqual(t, stats.ContextSwitches, int64(6))
	assert.Positive(t, stats.ReadyTicks)
}

func TestRun_FCFSSingleCPUNoPreemption(t *testing.T) {
	w := &Workload{Processes: []ProcessSpec{
		{Name: "a", Bursts: []int64{5}},
		{Name: "b", Bursts: []int64{5}},
	}}
	cfg := config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 1}
	_, stats := runToCompletion(t, cfg, w)
	assert.Equal(t, int64(2), stats.ContextSwitches)
	assert.Equal(t, int64(10), stats.TotalTicks)
}

func TestRun_ClockIsLockstep(t *testing.T) {
	for _, tick := range []time.Duration{time.Millisecond, 50 * time.Microsecond, 5 * time.Microsecond} {
		t.Run(tick.String(), func(t *testing.T) {
			w := &Workload{Processes: []ProcessSpec{
				{Name: "a", Bursts: []int64{50}},
				{Name: "b", Bursts: []int64{50}},
			}}
			cfg := config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 1}
			_, stats := runWithTick(t, cfg, tick, w)

			assert.Equal(t, int64(100), stats.TotalTicks)
			assert.Equal(t, int64(50), stats.Processes[0].Finished)
			assert.Equal(t, int64(100), stats.Processes[1].Finished)
			assert.Equal(t, int64(50), stats.Processes[1].Waiting)
			assert.Equal(t, int64(50), stats.ReadyTicks)
		})
	}
}

func TestRun_ArrivalStartsNextTick(t *testing.T) {
	w := &Workload{Processes: []ProcessSpec{
		{Name: "early", Arrival: 0, Bursts: []int64{3}},
		{Name: "late", Arrival: 10, Bursts: []int64{2, 4, 1}},
	}}
	cfg := config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 2}
	_, stats := runWithTick(t, cfg, 50*time.Microsecond, w)

	assert.Equal(t, int64(3), stats.Processes[0].Finished)
	// Runs 11-12, I/O until 16, runs 17.
	assert.Equal(t, int64(17), stats.Processes[1].Finished)
	assert.Equal(t, int64(17), stats.TotalTicks)
	assert.Zero(t, stats.ReadyTicks)
}

func TestRun_Gantt(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 2}
	runToCompletion(t, cfg, testWorkload(), WithGantt(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Greater(t, len(lines), 1)
	assert.Contains(t, lines[0], "CPU 0")
	assert.Contains(t, lines[0], "CPU 1")
	assert.Contains(t, lines[0], "< I/O Queue <")
	assert.Contains(t, buf.String(), "long")
}

func TestRun_Tracing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := tracing.NewWithExporter("os-sim", "test", exp)
	require.NoError(t, err)

	cfg := config.SchedulerConfig{Discipline: model.DisciplineSJF, CPUCount: 1}
	_, stats := runToCompletion(t, cfg, testWorkload(), WithTracer(tp))
	spans := exp.GetSpans()
	require.NoError(t, tp.Shutdown(context.Background()))

	var bursts, runs int
	for _, sp := range spans {
		switch sp.Name {
		case "cpu_burst":
			bursts++
		case "simulation":
			runs++
		}
	}
	assert.Equal(t, 1, runs)
	assert.Equal(t, int(stats.ContextSwitches), bursts)
}

func TestRun_ShortestRemainingForcesPreemption(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := tracing.NewWithExporter("os-sim", "test", exp)
	require.NoError(t, err)

	w := &Workload{Processes: []ProcessSpec{
		{Name: "long", Arrival: 0, Bursts: []int64{20}},
		{Name: "short", Arrival: 3, Bursts: []int64{2}},
	}}
	cfg := config.SchedulerConfig{Discipline: model.DisciplineSRTF, CPUCount: 1}
	_, stats := runWithTick(t, cfg, 50*time.Microsecond, w, WithTracer(tp))
	spans := exp.GetSpans()
	require.NoError(t, tp.Shutdown(context.Background()))

	// long runs 1-3, short preempts it and runs 4-5, long resumes 6-22.
	assert.Equal(t, int64(3), stats.ContextSwitches)
	assert.Equal(t, int64(5), stats.Processes[1].Finished)
	assert.Equal(t, int64(22), stats.Processes[0].Finished)
	assert.Equal(t, int64(2), stats.Processes[0].Waiting)
	assert.Equal(t, int64(1), stats.Processes[1].Waiting)
	assert.Equal(t, int64(22), stats.TotalTicks)

	reasons := map[string][]string{}
	for _, sp := range spans {
		if sp.Name != "cpu_burst" {
			continue
		}
		var process string
		for _, kv := range sp.Attributes {
			if kv.Key == "process" {
				process = kv.Value.AsString()
			}
		}
		for _, ev := range sp.Events {
			reasons[process] = append(reasons[process], ev.Name)
		}
	}
	assert.Equal(t, []string{"forced_preempt", "exit"}, reasons["long"])
	assert.Equal(t, []string{"exit"}, reasons["short"])
}

func TestRun_Cancelled(t *testing.T) {
	w := &Workload{Processes: []ProcessSpec{{Name: "forever", Bursts: []int64{1 << 40}}}}
	cfg := config.SchedulerConfig{Discipline: model.DisciplineFCFS, CPUCount: 2}
	sim, err := New(cfg, simConfig(), w, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	stats, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.Terminated())

	_, err = sim.Run(context.Background())
	assert.Error(t, err, "a simulator runs once")
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New(config.SchedulerConfig{Discipline: model.DisciplineRR, CPUCount: 1}, simConfig(), nil, logging.Discard())
	var cfgErr *model.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	bad := simConfig()
	bad.Tick = 0
	_, err = New(config.DefaultSchedulerConfig(), bad, nil, logging.Discard())
	assert.Error(t, err)

	_, err = New(config.DefaultSchedulerConfig(), simConfig(), &Workload{}, logging.Discard())
	assert.Error(t, err)
}

func TestStatusViews(t *testing.T) {
	sim, err := New(config.DefaultSchedulerConfig(), simConfig(), testWorkload(), logging.Discard())
	require.NoError(t, err)

	procs := sim.Processes()
	require.Len(t, procs, 4)
	assert.Equal(t, "io", procs[0].Name)
	assert.Equal(t, model.ProcessStateNew, procs[0].State)
	assert.Equal(t, int64(1), procs[0].TimeRemaining)

	p, ok := sim.Process(3)
	require.True(t, ok)
	assert.Equal(t, "short", p.Name)
	_, ok = sim.Process(4)
	assert.False(t, ok)
	_, ok = sim.Process(-1)
	assert.False(t, ok)

	cpus := sim.CPUs()
	require.Len(t, cpus, 1)
	assert.True(t, cpus[0].Idle)
	assert.Nil(t, cpus[0].Process)
	assert.Zero(t, sim.Now())
}

func TestForcePreempt_TargetsRunningProcess(t *testing.T) {
	sim, err := New(config.SchedulerConfig{Discipline: model.DisciplineSRTF, CPUCount: 1}, simConfig(), testWorkload(), logging.Discard())
	require.NoError(t, err)
	c := sim.cpus[0]

	sim.ForcePreempt(0)
	assert.Nil(t, c.preemptFor.Load(), "an idle CPU has nothing to preempt")

	first, second := sim.procs[0].pcb, sim.procs[1].pcb
	sim.sched.Admit(first)
	sim.sched.Idle(0)
	require.Same(t, first, c.current)

	sim.ForcePreempt(0)
	assert.Same(t, first, c.preemptFor.Load())
	assert.True(t, c.takePreempt(first))
	assert.False(t, c.takePreempt(first), "a request is consumed once")

	sim.ForcePreempt(0)
	assert.False(t, c.takePreempt(second), "a request aimed at another process is dropped")
	assert.Nil(t, c.preemptFor.Load())

	sim.ForcePreempt(0)
	sim.ContextSwitch(0, nil, config.NoTimeSlice)
	assert.Nil(t, c.preemptFor.Load(), "a new assignment clears a pending request")
}
