package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/me/ossim/pkg/model"
)

// NoTimeSlice is passed to the host when the discipline has no quantum.
const NoTimeSlice = -1

// SchedulerConfig is the immutable scheduling tuple resolved at startup.
type SchedulerConfig struct {
	Discipline model.Discipline
	CPUCount   int
	TimeSlice  int // Round-robin quantum in ticks; NoTimeSlice otherwise
}

// DefaultSchedulerConfig returns a single-CPU FCFS configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Discipline: model.DisciplineFCFS,
		CPUCount:   1,
		TimeSlice:  NoTimeSlice,
	}
}

// Validate checks the tuple and normalises TimeSlice for disciplines that
// ignore it.
func (c *SchedulerConfig) Validate() error {
	if c.CPUCount < 1 {
		return model.NewConfigError("cpus", "must be a positive integer, got %d", c.CPUCount)
	}
	switch c.Discipline {
	case model.DisciplineRR:
		if c.TimeSlice < 1 {
			return model.NewConfigError("time slice", "round-robin requires a positive quantum, got %d", c.TimeSlice)
		}
	case model.DisciplineFCFS, model.DisciplineSJF, model.DisciplineSRTF:
		c.TimeSlice = NoTimeSlice
	default:
		return model.NewConfigError("discipline", "unknown discipline %q", c.Discipline)
	}
	return nil
}

// Resolve builds a validated SchedulerConfig from command-line values.
// rrSlice is the -r value and rrSet reports whether -r was given at all; sjf
// and srtf are the -j and -s switches. At most one selector may be given.
func Resolve(cpuArg string, rrSlice int, rrSet, sjf, srtf bool) (SchedulerConfig, error) {
	cfg := DefaultSchedulerConfig()

	cpus, err := strconv.Atoi(strings.TrimSpace(cpuArg))
	if err != nil {
		return cfg, model.NewConfigError("cpus", "%q is not an integer", cpuArg)
	}
	cfg.CPUCount = cpus

	selected := 0
	for _, set := range []bool{rrSet, sjf, srtf} {
		if set {
			selected++
		}
	}
	if selected > 1 {
		return cfg, &model.ConfigError{Message: "only one of -r, -j, -s may be given"}
	}

	switch {
	case rrSet:
		cfg.Discipline = model.DisciplineRR
		cfg.TimeSlice = rrSlice
	case sjf:
		cfg.Discipline = model.DisciplineSJF
	case srtf:
		cfg.Discipline = model.DisciplineSRTF
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SimulatorConfig holds settings for the bundled execution host.
type SimulatorConfig struct {
	Tick         time.Duration // Wall-clock length of one simulated tick
	WorkloadPath string        // YAML workload; empty selects the built-in process table
	TraceFile    string        // OpenTelemetry span output; empty disables tracing
	StatusAddr   string        // Listen address for the status API; empty disables it
	LogLevel     string        // Log level: debug, info, warn, error
	LogFormat    string        // Log format: text, json
}

// DefaultSimulatorConfig returns sensible defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Tick:      10 * time.Millisecond,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate checks the simulator settings.
func (c SimulatorConfig) Validate() error {
	if c.Tick <= 0 {
		return model.NewConfigError("tick", "must be positive, got %s", c.Tick)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return model.NewConfigError("log-format", "must be text or json, got %q", c.LogFormat)
	}
	return nil
}
