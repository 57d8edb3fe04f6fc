package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/fixturekit/internal/logger"
	"github.com/roach88/fixturekit/internal/metrics"
	"github.com/roach88/fixturekit/internal/report"
	"github.com/roach88/fixturekit/internal/resolver"
	"github.com/roach88/fixturekit/internal/runner"
	"github.com/roach88/fixturekit/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SelectOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the selected tests",
		Long: `Discover the demo suites, select tests by marker expression and ID,
and run them with scoped fixtures. Failed tests are rerun up to --reruns
times. The run is stored in --db and exported to --metrics-file when set.

Example:
  fixturekit run --suite fixture81 -m "smoke and not win10"
  fixturekit run --run 'rerun::' --reruns 2 --db ./runs.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts)
		},
	}

	fs := cmd.Flags()
	addSelectFlags(fs, &opts.SelectOptions)
	fs.Int("reruns", 0, "rerun failed tests up to this many times")
	fs.Duration("timeout", 0, "time limit for a single test body (0 disables)")
	fs.String("db", "", "path to the SQLite run history (empty disables it)")
	fs.String("metrics-file", "", "write a prometheus textfile here after the run")

	return cmd
}

func runTests(cmd *cobra.Command, opts *RunOptions) error {
	s, err := opts.openSession(cmd, &opts.SelectOptions)
	if err != nil {
		return err
	}
	cfg := s.cfg

	promReg := prometheus.NewRegistry()
	m, err := metrics.NewRunMetrics(promReg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	reporters := runner.Reporters{m}
	out := cmd.OutOrStdout()
	if opts.Format == "text" {
		reporters = append(reporters, report.NewConsole(out,
			report.WithVerbose(opts.Verbose),
			report.WithColor(colorEnabled(out)),
			report.WithProgram(cmd.Root().Name()),
		))
	}

	res := resolver.New(s.registry.Fixtures,
		resolver.WithConfig(cfg),
		resolver.WithObserver(m),
	)
	runOpts := []runner.Option{runner.WithReporter(reporters)}
	if opts.IDs != nil {
		runOpts = append(runOpts, runner.WithIDGenerator(opts.IDs))
	}
	if opts.Now != nil {
		runOpts = append(runOpts, runner.WithNow(opts.Now))
	}
	r := runner.New(res, runner.Options{Reruns: cfg.Reruns, Timeout: cfg.Timeout}, runOpts...)

	// Setup signal handling so an interrupt still tears fixtures down
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(logger.IntoContext(parentCtx, s.log))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.log.Info("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	rep, runErr := r.Run(ctx, s.selected)

	if opts.Format == "json" {
		if err := report.WriteJSON(out, rep); err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
	}

	// Persist even when interrupted: the partial run is still history.
	persistCtx := context.WithoutCancel(ctx)
	if cfg.DBPath != "" {
		if err := saveRun(persistCtx, cfg.DBPath, rep); err != nil {
			return err
		}
		s.log.Debug("run stored", "db", cfg.DBPath, "run", rep.RunID)
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile, promReg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "run aborted", runErr)
	}
	if !rep.OK() {
		return &ExitError{Code: ExitFailure}
	}
	return nil
}

func saveRun(ctx context.Context, path string, rep *runner.Report) error {
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if err := st.WriteRun(ctx, rep); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to store run %s", rep.RunID), err)
	}
	return nil
}
