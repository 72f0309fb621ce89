package runner

import "time"

// Result holds the output of a simulator execution.
type Result struct {
	RunID       string        // unique identifier for this run
	ExitCode    int           // process exit code, -1 when killed
	Stdout      []byte        // captured stdout (may be truncated)
	Stderr      []byte        // captured stderr (may be truncated)
	Truncated   bool          // true if output exceeded the size cap
	Interrupted bool          // true if the run was cancelled or timed out
	Duration    time.Duration // wall time of the process
}
