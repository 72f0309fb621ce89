// Package report provides structured persistence and retrieval of batch
// results. Results are stored as typed structs and can be queried by
// configuration name or run status.
package report

import (
	"fmt"
	"time"
)

// Status is the outcome of one simulator run.
type Status string

const (
	// Done is a run that exited with status 0.
	Done Status = "done"
	// Failed is a run that exited with a non-zero status.
	Failed Status = "failed"
	// Skipped is a run interrupted by the user or by its timeout.
	Skipped Status = "skipped"
	// Error is a run that could not be started or prepared.
	Error Status = "error"
	// Pending is a run that never started because the batch was aborted.
	Pending Status = "pending"
)

// Store persists and retrieves batch results.
type Store interface {
	Save(result *BatchResult) error
	Load(batchID string) (*BatchResult, error)
}

// BatchResult holds the structured outcome of one batch.
type BatchResult struct {
	ID          string        `json:"id"`
	Executable  string        `json:"executable"`
	OutputDir   string        `json:"output_dir,omitempty"`
	CPUType     string        `json:"cpu_type"`
	Cycles      int           `json:"cycles"`
	TraceFile   string        `json:"trace_file,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Jobs        []JobResult   `json:"jobs"`
	SummaryPath string        `json:"summary_path,omitempty"`
	Missing     []string      `json:"missing,omitempty"` // runs without a statistics file
}

// JobResult holds the outcome of one simulator run.
type JobResult struct {
	Name         string        `json:"name"`
	Config       string        `json:"config"`
	OutputPrefix string        `json:"output_prefix"`
	StatsPath    string        `json:"stats_path"`
	MemoryType   string        `json:"memory_type"`
	Command      []string      `json:"command,omitempty"`
	RunID        string        `json:"run_id,omitempty"`
	Status       Status        `json:"status"`
	ExitCode     int           `json:"exit_code"`
	Detail       string        `json:"detail,omitempty"`
	Duration     time.Duration `json:"duration"`
	OutputTail   string        `json:"output_tail,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"` // simulator output exceeded the capture cap
}

// Counts returns the number of jobs per status.
func (r *BatchResult) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, j := range r.Jobs {
		out[j.Status]++
	}
	return out
}

// OK reports whether every job finished with status 0.
func (r *BatchResult) OK() bool {
	for _, j := range r.Jobs {
		if j.Status != Done {
			return false
		}
	}
	return true
}

// ByName returns the job for the named configuration.
func ByName(result *BatchResult, name string) (*JobResult, error) {
	for i := range result.Jobs {
		if result.Jobs[i].Name == name {
			return &result.Jobs[i], nil
		}
	}
	return nil, fmt.Errorf("batch %s has no config named %q", result.ID, name)
}

// ByStatus returns all jobs with the given status, in run order.
func ByStatus(result *BatchResult, status Status) []JobResult {
	var out []JobResult
	for _, j := range result.Jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out
}
