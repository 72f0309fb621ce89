// Package runner executes external processes with optional timeouts and
// output size limits.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxOutput is used when Runner.MaxOutput is not set.
const DefaultMaxOutput = 1 << 20

const waitDelay = 2 * time.Second

// Runner executes commands from a fixed working directory.
type Runner struct {
	Dir       string        // working directory; empty means the current one
	Timeout   time.Duration // per command; zero means no limit
	MaxOutput int           // bytes retained per stream

	// Stderr, when set, receives the process's standard error as it is
	// produced, in addition to the capped capture in Result.
	Stderr io.Writer
}

// Run executes argv. The first element is the binary, and the rest are
// arguments. When stdout is non-nil the process output is streamed to it;
// it is captured up to MaxOutput either way. A non-zero exit status is
// reported through Result.ExitCode, not as an error.
func (r *Runner) Run(ctx context.Context, argv []string, stdout io.Writer) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	// Children that inherited the output pipes must not keep Wait blocked
	// once the simulator itself has been killed.
	cmd.WaitDelay = waitDelay

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = tee(&limitWriter{buf: &outBuf, limit: maxOutput}, stdout)
	cmd.Stderr = tee(&limitWriter{buf: &errBuf, limit: maxOutput}, r.Stderr)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	truncated := outBuf.Len() >= maxOutput || errBuf.Len() >= maxOutput

	exitCode := 0
	interrupted := false
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
			interrupted = ctx.Err() != nil
		} else {
			// Binary not found or other exec error.
			return nil, fmt.Errorf("executing %s: %w", argv[0], runErr)
		}
	}

	return &Result{
		RunID:       runID,
		ExitCode:    exitCode,
		Stdout:      outBuf.Bytes(),
		Stderr:      errBuf.Bytes(),
		Truncated:   truncated,
		Interrupted: interrupted,
		Duration:    elapsed,
	}, nil
}

func tee(capture, echo io.Writer) io.Writer {
	if echo == nil {
		return capture
	}
	return io.MultiWriter(echo, capture)
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}

// Tail returns at most n trailing bytes of b, starting at a line boundary
// when one is available.
func Tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	b = b[len(b)-n:]
	if i := bytes.IndexByte(b, '\n'); i >= 0 && i < len(b)-1 {
		b = b[i+1:]
	}
	return string(b)
}
