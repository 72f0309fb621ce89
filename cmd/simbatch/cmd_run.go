package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/deixis/simbatch/internal/batch"
	"github.com/deixis/simbatch/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errBatchFailed makes the process exit 1 under --strict.
var errBatchFailed = errors.New("not every run finished successfully")

func newRunCmd() *cobra.Command {
	var (
		opts   batch.Options
		inputs []string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "run EXECUTABLE [INPUT...]",
		Short: "Run the simulator once per configuration file",
		Long: `Run the simulator once per configuration file and write summary.csv.

Inputs are configuration files or directories of them, given as arguments
or with -i. With -o every run writes its output under DIR, named after its
configuration; the configuration files themselves are never modified.

Press Ctrl-C to skip the run in progress. SIGTERM aborts the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Executable = args[0]
			opts.Inputs = append(append([]string{}, args[1:]...), inputs...)

			logger := newLogger(cmd)
			defer func() { _ = logger.Sync() }()

			eng, err := newEngine(cmd, logger)
			if err != nil {
				return err
			}
			plan, err := eng.Plan(opts)
			if err != nil {
				return err
			}

			ctx, skip, stop := interruptible(cmd.Context(), logger)
			defer stop()

			result, err := eng.Execute(ctx, plan, skip)
			if result == nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if jerr := writeJSON(cmd.OutOrStdout(), result); jerr != nil {
					return jerr
				}
			} else {
				verbose, _ := cmd.Flags().GetBool("verbose")
				fmt.Fprint(cmd.OutOrStdout(), formatBatchCLI(result, verbose))
			}

			if err != nil {
				return err
			}
			if strict && !result.OK() {
				return errBatchFailed
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Configuration file or directory (repeatable)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "Directory receiving every run's output and the summary")
	cmd.Flags().IntVarP(&opts.Cycles, "cycles", "n", 0, "Number of cycles to simulate (default from .simbatch, else 100000)")
	cmd.Flags().StringVar(&opts.CPUType, "cpu-type", "", "CPU model: "+strings.Join(batch.CPUTypes, ", ")+" (default random)")
	cmd.Flags().StringVarP(&opts.TraceFile, "trace-file", "t", "", "Trace file for the trace CPU")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Do not echo simulator output")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit 1 unless every run finished successfully")

	return cmd
}

// interruptible returns a context cancelled by SIGTERM and a channel fed by
// SIGINT, which the engine reads as "skip the current run".
func interruptible(parent context.Context, logger *zap.Logger) (context.Context, <-chan struct{}, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	skip := make(chan struct{})

	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				if isInterrupt(sig) {
					select {
					case skip <- struct{}{}:
						logger.Warn("interrupted by user, skipping the current run")
					default:
					}
					continue
				}
				logger.Warn("received signal, aborting the batch", zap.Stringer("signal", sig))
				cancel()
				return
			case <-done:
				return
			}
		}
	}()

	return ctx, skip, func() {
		stopSignals(sigs)
		close(done)
		cancel()
	}
}

func formatBatchCLI(r *report.BatchResult, verbose bool) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	counts := r.Counts()
	if r.OK() {
		w("ok")
	} else {
		w("FAIL")
	}
	w("  %d/%d runs done", counts[report.Done], len(r.Jobs))
	for _, s := range []report.Status{report.Failed, report.Skipped, report.Error, report.Pending} {
		if counts[s] > 0 {
			w(", %d %s", counts[s], s)
		}
	}
	w("\n\n")

	for _, j := range r.Jobs {
		switch j.Status {
		case report.Done:
			w("  %-20s ok\n", j.Name)
		case report.Pending:
			w("  %-20s -\n", j.Name)
		default:
			w("  %-20s %s (%s)\n", j.Name, j.Status, j.Detail)
		}
	}
	w("\n")

	if verbose {
		for _, j := range report.ByStatus(r, report.Failed) {
			if j.OutputTail == "" {
				continue
			}
			w("%s output:\n", j.Name)
			for _, line := range strings.Split(strings.TrimRight(j.OutputTail, "\n"), "\n") {
				w("    %s\n", line)
			}
			w("\n")
		}
	}

	if r.SummaryPath != "" {
		w("Summary: %s\n", r.SummaryPath)
	}
	if len(r.Missing) > 0 {
		w("No statistics: %s\n", strings.Join(r.Missing, ", "))
	}
	return string(b)
}
