package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/me/ossim/internal/config"
	"github.com/me/ossim/internal/logging"
	"github.com/me/ossim/internal/simulator"
	"github.com/me/ossim/internal/statusapi"
	"github.com/me/ossim/internal/tracing"
)

func run(cmd *cobra.Command, o *options, cpuArg string, stdout, stderr io.Writer) error {
	schedCfg, err := config.Resolve(cpuArg, o.timeSlice, cmd.Flags().Changed("round-robin"), o.sjf, o.srtf)
	if err != nil {
		return err
	}
	if err := o.sim.Validate(); err != nil {
		return err
	}
	o.started = true

	logger, err := logging.Setup(o.sim.LogLevel, o.sim.LogFormat, o.debug, stderr)
	if err != nil {
		return err
	}

	workload := simulator.DefaultWorkload()
	if o.sim.WorkloadPath != "" {
		if workload, err = simulator.LoadWorkload(o.sim.WorkloadPath); err != nil {
			return err
		}
	}

	var simOpts []simulator.Option
	if o.gantt {
		simOpts = append(simOpts, simulator.WithGantt(stdout))
	}
	if o.sim.TraceFile != "" {
		tp, err := tracing.Init("os-sim", Version, o.sim.TraceFile)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("flush traces", "error", err)
			}
		}()
		simOpts = append(simOpts, simulator.WithTracer(tp))
	}

	sim, err := simulator.New(schedCfg, o.sim, workload, logger, simOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var statusDone chan error
	apiCtx, stopAPI := context.WithCancel(context.Background())
	defer stopAPI()
	if o.sim.StatusAddr != "" {
		ln, err := net.Listen("tcp", o.sim.StatusAddr)
		if err != nil {
			return fmt.Errorf("status API: %w", err)
		}
		api := statusapi.New(sim, logger.With("run_id", sim.RunID()))
		statusDone = make(chan error, 1)
		go func() {
			statusDone <- api.Serve(apiCtx, ln)
		}()
	}

	stats, runErr := sim.Run(ctx)
	simulator.PrintSummary(stdout, stats)

	if statusDone != nil {
		stopAPI()
		if err := <-statusDone; err != nil {
			logger.Error("status API", "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("simulation interrupted: %w", runErr)
	}
	return runErr
}
