package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/ossim/internal/config"
	"github.com/me/ossim/pkg/model"
)

// Version is reported by --version and recorded on trace spans.
const Version = "0.1.0"

const usageBanner = `Multithreaded OS Simulator
Usage: os-sim <# CPUs> [ -r <time slice> | -j | -s ]
    Default : FCFS Scheduler
         -r : Round-Robin Scheduler
         -j : Shortest Job First Scheduler
         -s : Shortest Remaining Time First Scheduler

Flags:
{{.LocalFlags.FlagUsages}}`

// options holds the parsed command line.
type options struct {
	timeSlice int
	sjf       bool
	srtf      bool
	debug     bool
	gantt     bool
	sim       config.SimulatorConfig

	// started is set once arguments are resolved; errors before that point
	// are usage errors.
	started bool
}

// newRootCmd creates the os-sim command. Program output goes to stdout;
// logs and usage go to stderr.
func newRootCmd(o *options, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "os-sim <# CPUs> [ -r <time slice> | -j | -s ]",
		Short:   "Multithreaded OS simulator with pluggable CPU scheduling",
		Version: Version,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return model.NewConfigError("cpus", "expected exactly one CPU count argument, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args[0], stdout, stderr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetUsageTemplate(usageBanner)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &model.ConfigError{Message: err.Error()}
	})

	f := root.Flags()
	f.IntVarP(&o.timeSlice, "round-robin", "r", 0, "Round-robin scheduling with the given time slice in ticks")
	f.BoolVarP(&o.sjf, "sjf", "j", false, "Shortest-job-first scheduling")
	f.BoolVarP(&o.srtf, "srtf", "s", false, "Preemptive shortest-remaining-time-first scheduling")
	root.MarkFlagsMutuallyExclusive("round-robin", "sjf", "srtf")

	f.StringVar(&o.sim.WorkloadPath, "workload", "", "YAML workload file (default: built-in process table)")
	f.DurationVar(&o.sim.Tick, "tick", 10*time.Millisecond, "Wall-clock length of one simulated tick")
	f.StringVar(&o.sim.TraceFile, "trace", "", "Write OpenTelemetry spans for each CPU burst to this file")
	f.StringVar(&o.sim.StatusAddr, "status-addr", "", "Serve the live status API on this address (e.g. :8080)")
	f.BoolVar(&o.gantt, "gantt", false, "Print one line per tick showing each CPU")
	f.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	f.StringVar(&o.sim.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&o.sim.LogFormat, "log-format", "text", "Log format (text, json)")

	return root
}

// Execute runs os-sim with args and returns the process exit status.
// Usage errors print the banner to stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	o := &options{sim: config.DefaultSimulatorConfig()}
	root := newRootCmd(o, stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "os-sim: %v\n", err)
	var cfgErr *model.ConfigError
	if !o.started || errors.As(err, &cfgErr) {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, root.UsageString())
	}
	return 1
}
