package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/deixis/simbatch/internal/iniconf"
	"github.com/deixis/simbatch/internal/report"
	"github.com/deixis/simbatch/internal/runner"
	"github.com/deixis/simbatch/internal/summary"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxTail is the amount of simulator output kept in a failed job's record.
const maxTail = 2048

// Run plans and executes a batch.
func (e *Engine) Run(ctx context.Context, opts Options, skip <-chan struct{}) (*report.BatchResult, error) {
	plan, err := e.Plan(opts)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan, skip)
}

// Execute runs every job of plan in order, then writes the summary table.
//
// A value received on skip interrupts the job currently running; the batch
// continues with the next one. Senders should not block: nothing reads skip
// between jobs. Cancelling ctx aborts the batch: the partial
// result is returned together with the context error and no summary is
// written.
func (e *Engine) Execute(ctx context.Context, plan *Plan, skip <-chan struct{}) (*report.BatchResult, error) {
	log := e.log()
	start := time.Now()

	br := &report.BatchResult{
		ID:         uuid.New().String(),
		Executable: plan.Options.Executable,
		OutputDir:  plan.Options.OutputDir,
		CPUType:    plan.Options.CPUType,
		Cycles:     plan.Options.Cycles,
		StartedAt:  start.UTC(),
		Jobs:       make([]report.JobResult, len(plan.Jobs)),
	}
	if plan.Options.CPUType == "trace" {
		br.TraceFile = plan.Options.TraceFile
	}
	for i, job := range plan.Jobs {
		br.Jobs[i] = newJobResult(&job)
	}

	for i := range plan.Jobs {
		if err := ctx.Err(); err != nil {
			br.Duration = time.Since(start)
			log.Warn("batch aborted", zap.Int("completed", i), zap.Int("total", len(plan.Jobs)))
			return br, err
		}
		br.Jobs[i] = e.runJob(ctx, plan, &plan.Jobs[i], skip)
	}
	if err := ctx.Err(); err != nil {
		br.Duration = time.Since(start)
		log.Warn("batch aborted", zap.Int("completed", len(plan.Jobs)), zap.Int("total", len(plan.Jobs)))
		return br, err
	}

	log.Info("finished execution phase, generating results summary")

	table, err := summary.Build(Entries(plan))
	if err != nil {
		br.Duration = time.Since(start)
		return br, fmt.Errorf("building summary: %w", err)
	}
	for _, name := range table.Missing {
		log.Warn("no statistics file for config, leaving it out of the summary", zap.String("config", name))
	}
	if err := table.WriteFile(plan.SummaryPath); err != nil {
		br.Duration = time.Since(start)
		return br, err
	}
	br.SummaryPath = plan.SummaryPath
	br.Missing = table.Missing
	br.Duration = time.Since(start)

	log.Info("summary written",
		zap.String("path", plan.SummaryPath),
		zap.Int("rows", len(table.Rows)),
		zap.Int("missing", len(table.Missing)))
	return br, nil
}

// Entries returns the summary entries of plan's jobs, in run order.
func Entries(plan *Plan) []summary.Entry {
	out := make([]summary.Entry, len(plan.Jobs))
	for i, j := range plan.Jobs {
		out[i] = summary.Entry{Name: j.Name, StatsPath: j.StatsPath}
	}
	return out
}

func newJobResult(job *Job) report.JobResult {
	return report.JobResult{
		Name:         job.Name,
		Config:       job.Config,
		OutputPrefix: job.OutputPrefix,
		StatsPath:    job.StatsPath,
		MemoryType:   job.MemoryType,
		Status:       report.Pending,
	}
}

func (e *Engine) runJob(ctx context.Context, plan *Plan, job *Job, skip <-chan struct{}) report.JobResult {
	log := e.log().With(zap.String("config", job.Name))
	jr := newJobResult(job)

	configPath := job.Config
	if job.Override {
		tmp, err := iniconf.OverrideOutputPrefix(job.Config, job.OutputPrefix)
		if err != nil {
			jr.Status = report.Error
			jr.Detail = err.Error()
			log.Error("preparing config", zap.Error(err))
			return jr
		}
		defer func() {
			if err := tmp.Close(); err != nil {
				log.Warn("removing temporary config", zap.Error(err))
			}
		}()
		configPath = tmp.Path()
	}

	argv := plan.Argv(job, configPath)
	jr.Command = argv
	log.Info("executing", zap.String("command", strings.Join(argv, " ")))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var skipped atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-skip:
			skipped.Store(true)
			cancel()
		case <-done:
		}
	}()

	res, err := e.Runner.Run(runCtx, argv, e.stdout(plan.Options.Quiet))
	close(done)
	if err != nil {
		jr.Status = report.Error
		jr.Detail = err.Error()
		log.Error("starting simulator", zap.Error(err))
		return jr
	}

	jr.RunID = res.RunID
	jr.ExitCode = res.ExitCode
	jr.Duration = res.Duration
	jr.Truncated = res.Truncated

	switch {
	// A terminal interrupt also reaches the simulator, which may exit on
	// its own before the skip lands.
	case res.Interrupted || skipped.Load():
		jr.Status = report.Skipped
		switch {
		case ctx.Err() != nil:
			jr.Detail = "batch aborted"
		case skipped.Load():
			jr.Detail = "interrupted by user"
		default:
			jr.Detail = "timed out"
		}
		jr.OutputTail = outputTail(res)
		log.Warn("skipping this one", zap.String("reason", jr.Detail))
	case res.ExitCode != 0:
		jr.Status = report.Failed
		jr.Detail = fmt.Sprintf("exit status %d", res.ExitCode)
		jr.OutputTail = outputTail(res)
		log.Warn("simulator failed", zap.Int("exit_code", res.ExitCode), zap.Duration("duration", res.Duration))
	default:
		jr.Status = report.Done
		log.Debug("simulator finished", zap.Duration("duration", res.Duration))
	}
	return jr
}

func (e *Engine) stdout(quiet bool) io.Writer {
	if quiet {
		return nil
	}
	if e.Stdout != nil {
		return e.Stdout
	}
	return os.Stdout
}

func outputTail(res *runner.Result) string {
	if len(res.Stderr) > 0 {
		return runner.Tail(res.Stderr, maxTail)
	}
	return runner.Tail(res.Stdout, maxTail)
}

// Summarize rebuilds the summary table of a previous batch from the
// statistics files already on disk, without running the simulator.
func (e *Engine) Summarize(opts Options) (*summary.Table, string, error) {
	plan, err := e.plan(e.withDefaults(opts))
	if err != nil {
		return nil, "", err
	}
	if len(plan.Jobs) == 0 {
		return nil, "", ErrNoConfigs
	}
	table, err := summary.Build(Entries(plan))
	if err != nil {
		return nil, "", fmt.Errorf("building summary: %w", err)
	}
	if err := table.WriteFile(plan.SummaryPath); err != nil {
		return nil, "", err
	}
	for _, name := range table.Missing {
		e.log().Warn("no statistics file for config, leaving it out of the summary", zap.String("config", name))
	}
	return table, plan.SummaryPath, nil
}
