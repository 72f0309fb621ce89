package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/simbatch/internal/report"
	"github.com/deixis/simbatch/internal/summary"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	BatchID string `json:"batch_id" jsonschema:"the batch ID from a sim_batch result"`
	Config  string `json:"config" jsonschema:"configuration name: the file name without extension (e.g. ddr4_8gb for configs/ddr4_8gb.ini)"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.BatchID == "" {
		return errorResult("batch_id is required")
	}
	if params.Config == "" {
		return errorResult("config is required")
	}

	result, err := h.store.Load(params.BatchID)
	if err != nil {
		msg := fmt.Sprintf("Failed to load batch %s: %v", params.BatchID, err)
		if ids := h.recentBatches(); len(ids) > 0 {
			msg += "\nRecent batches: " + strings.Join(ids, ", ")
		}
		return errorResult(msg)
	}

	job, err := report.ByName(result, params.Config)
	if err != nil {
		return errorResult(err.Error())
	}

	var table *summary.Table
	if result.SummaryPath != "" {
		// The summary may have been rebuilt since; a read failure only
		// drops the statistics section.
		table, _ = summary.Read(result.SummaryPath)
	}

	return textResult(formatInspectOutput(result.ID, job, table))
}

// recentBatches lists the IDs of cached batches, most recent first.
func (h *handler) recentBatches() []string {
	r, ok := h.store.(interface{ Recent() []*report.BatchResult })
	if !ok {
		return nil
	}
	var ids []string
	for _, b := range r.Recent() {
		ids = append(ids, b.ID)
	}
	return ids
}

func formatInspectOutput(batchID string, job *report.JobResult, table *summary.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Batch: %s\n", batchID)
	fmt.Fprintf(&b, "%s: %s", job.Name, job.Status)
	if job.Detail != "" {
		fmt.Fprintf(&b, " (%s)", job.Detail)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Config: %s\n", job.Config)
	fmt.Fprintf(&b, "Memory type: %s\n", job.MemoryType)
	fmt.Fprintf(&b, "Output prefix: %s\n", job.OutputPrefix)
	if len(job.Command) > 0 {
		fmt.Fprintf(&b, "Command: %s\n", strings.Join(job.Command, " "))
	}
	if job.Status != report.Pending && job.Status != report.Error {
		fmt.Fprintf(&b, "Exit code: %d\n", job.ExitCode)
		fmt.Fprintf(&b, "Duration: %s\n", job.Duration.Round(time.Millisecond))
	}

	if table != nil {
		if values, ok := table.Row(job.Name); ok {
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, "Statistics:")
			for _, col := range table.Columns {
				if v, ok := values[col]; ok && v != "" {
					fmt.Fprintf(&b, "    %s = %s\n", col, v)
				}
			}
		} else {
			fmt.Fprintf(&b, "\nNo statistics in %s.\n", job.StatsPath)
		}
	}

	if job.OutputTail != "" {
		fmt.Fprintln(&b)
		if job.Truncated {
			fmt.Fprintln(&b, "Output (capture truncated):")
		} else {
			fmt.Fprintln(&b, "Output:")
		}
		for _, line := range strings.Split(strings.TrimRight(job.OutputTail, "\n"), "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}

	return b.String()
}
