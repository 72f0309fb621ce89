package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/deixis/simbatch/internal/batch"
	"github.com/deixis/simbatch/internal/inputs"
	"github.com/deixis/simbatch/internal/logging"
	"github.com/deixis/simbatch/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type configsParams struct {
	Inputs []string `json:"inputs" jsonschema:"configuration files or directories containing them"`
}

func (h *handler) configsHandler(ctx context.Context, req *mcp.CallToolRequest, params configsParams) (*mcp.CallToolResult, any, error) {
	res, err := inputs.Resolve(h.paths(params.Inputs), inputs.Options{
		Extension: h.engine.Config.Extension(),
		Logger:    h.engine.Logger,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to resolve inputs: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Configs: %d\n", len(res.Configs))
	for _, c := range res.Configs {
		fmt.Fprintf(&b, "  %s  %s\n", inputs.Name(c), c)
	}
	if len(res.Ignored) > 0 {
		fmt.Fprintf(&b, "Ignored: %d\n", len(res.Ignored))
		for _, p := range res.Ignored {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return textResult(b.String())
}

type batchParams struct {
	Executable string   `json:"executable,omitempty" jsonschema:"path to the simulator binary. Defaults to the executable in .simbatch."`
	Inputs     []string `json:"inputs" jsonschema:"configuration files or directories containing them"`
	OutputDir  string   `json:"output_dir,omitempty" jsonschema:"directory receiving every run's output and summary.csv. Created when missing."`
	Cycles     int      `json:"cycles,omitempty" jsonschema:"number of cycles to simulate. Defaults to 100000."`
	CPUType    string   `json:"cpu_type,omitempty" jsonschema:"cpu model: random, trace or stream. Defaults to random."`
	TraceFile  string   `json:"trace_file,omitempty" jsonschema:"trace file, required by the trace cpu"`
}

func (h *handler) batchHandler(ctx context.Context, req *mcp.CallToolRequest, params batchParams) (*mcp.CallToolResult, any, error) {
	opts := batch.Options{
		Executable: h.path(params.Executable),
		Inputs:     h.paths(params.Inputs),
		OutputDir:  h.path(params.OutputDir),
		Cycles:     params.Cycles,
		CPUType:    params.CPUType,
		TraceFile:  h.path(params.TraceFile),
		Quiet:      true,
	}

	result, err := h.engine.Run(ctx, opts, nil)
	if result == nil {
		return errorResult(fmt.Sprintf("Batch failed: %v", err))
	}

	// Save results for sim_inspect.
	if serr := h.store.Save(result); serr != nil {
		logging.OrNop(h.engine.Logger).Warn("saving batch result, sim_inspect will not find it",
			zap.String("batch_id", result.ID), zap.Error(serr))
	}

	text := formatBatch(result)
	if err != nil {
		return errorResult(fmt.Sprintf("%sBatch stopped: %v\n", text, err))
	}
	return textResult(text)
}

func formatBatch(r *report.BatchResult) string {
	var b strings.Builder

	counts := r.Counts()
	fmt.Fprintf(&b, "Batch: %d/%d runs done", counts[report.Done], len(r.Jobs))
	for _, s := range []report.Status{report.Failed, report.Skipped, report.Error, report.Pending} {
		if counts[s] > 0 {
			fmt.Fprintf(&b, ", %d %s", counts[s], s)
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Batch ID: %s\n", r.ID)
	fmt.Fprintln(&b)

	for _, j := range r.Jobs {
		line := fmt.Sprintf("%-8s %s", j.Status, j.Name)
		if j.Detail != "" {
			line += " (" + j.Detail + ")"
		}
		fmt.Fprintln(&b, line)
	}
	fmt.Fprintln(&b)

	if r.SummaryPath != "" {
		fmt.Fprintf(&b, "Summary: %s\n", r.SummaryPath)
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "No statistics: %s\n", strings.Join(r.Missing, ", "))
	}
	fmt.Fprintf(&b, "Inspect with sim_inspect(batch_id=%q, config=\"<name>\").\n", r.ID)

	return b.String()
}

// path resolves p against the client's workspace when one was announced.
func (h *handler) path(p string) string {
	if p == "" || filepath.IsAbs(p) || h.runner == nil || h.runner.Dir == "" {
		return p
	}
	return filepath.Join(h.runner.Dir, p)
}

func (h *handler) paths(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = h.path(p)
	}
	return out
}
