// Package batch provides the execution engine that runs the simulator once
// per configuration file and merges the statistics of all runs. It is
// consumed by both the MCP server and the CLI commands.
package batch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/deixis/simbatch/internal/config"
	"github.com/deixis/simbatch/internal/iniconf"
	"github.com/deixis/simbatch/internal/inputs"
	"github.com/deixis/simbatch/internal/logging"
	"github.com/deixis/simbatch/internal/runner"
	"go.uber.org/zap"
)

// CommandRunner executes one simulator command.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, stdout io.Writer) (*runner.Result, error)
}

// CPUTypes lists the CPU models the simulator accepts.
var CPUTypes = []string{"random", "trace", "stream"}

// DefaultMemoryType is passed to the simulator when no memory rule matches.
const DefaultMemoryType = "default"

var (
	// ErrExecutableNotFound is returned when the simulator binary does not exist.
	ErrExecutableNotFound = errors.New("executable not found")
	// ErrUnknownCPUType is returned for a CPU type outside CPUTypes.
	ErrUnknownCPUType = errors.New("unknown cpu type")
	// ErrTraceFileMissing is returned when a trace CPU has no readable trace file.
	ErrTraceFileMissing = errors.New("trace file not found for trace cpu")
	// ErrNoConfigs is returned when the inputs contain no configuration file.
	ErrNoConfigs = errors.New("no configuration files found in inputs")
	// ErrDuplicateName is returned when two configurations share a name.
	ErrDuplicateName = errors.New("duplicate configuration name")
)

// Engine holds shared dependencies for all batch operations.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Logger *zap.Logger
	Stdout io.Writer // simulator output when not quiet; nil means os.Stdout

	// Dir is the directory the simulator runs in. Relative output
	// prefixes and the summary path resolve against it; empty means the
	// current directory.
	Dir string
}

// Options describes one batch as given on the command line.
type Options struct {
	Executable string
	Inputs     []string
	OutputDir  string // overrides every config's output prefix when set
	Cycles     int
	CPUType    string
	TraceFile  string
	Quiet      bool
}

// Job is one planned simulator run.
type Job struct {
	Name         string // configuration name, the summary index
	Config       string // original configuration file
	OutputPrefix string
	StatsPath    string
	MemoryType   string
	Override     bool // run from a rewritten copy carrying OutputPrefix
}

// Plan is a validated batch, ready to execute.
type Plan struct {
	Options     Options // with defaults applied
	Jobs        []Job
	Ignored     []string
	SummaryPath string
	extraArgs   []string
}

// Argv returns the simulator command line for job, reading its
// configuration from configPath.
func (p *Plan) Argv(job *Job, configPath string) []string {
	argv := []string{
		p.Options.Executable,
		"--memory-type=" + job.MemoryType,
		"--cpu-type=" + p.Options.CPUType,
		"-c", configPath,
		"-n", strconv.Itoa(p.Options.Cycles),
	}
	if p.Options.CPUType == "trace" {
		argv = append(argv, "--trace-file="+p.Options.TraceFile)
	}
	return append(argv, p.extraArgs...)
}

func (e *Engine) log() *zap.Logger {
	return logging.OrNop(e.Logger)
}

// resolve joins a relative path onto e.Dir, keeping a trailing separator:
// an output prefix of "results/" names a directory, not a file stem.
func (e *Engine) resolve(p string) string {
	if p == "" || e.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	joined := filepath.Join(e.Dir, p)
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator)) {
		joined += string(filepath.Separator)
	}
	return joined
}

func (e *Engine) cfg() *config.Config {
	if e.Config == nil {
		return &config.Config{}
	}
	return e.Config
}

// withDefaults fills unset options from the configuration file.
func (e *Engine) withDefaults(opts Options) Options {
	cfg := e.cfg()
	if opts.Executable == "" {
		opts.Executable = cfg.Executable
	}
	if opts.Cycles <= 0 {
		opts.Cycles = cfg.Cycles()
	}
	if opts.CPUType == "" {
		opts.CPUType = cfg.CPUType()
	}
	if opts.TraceFile == "" {
		opts.TraceFile = cfg.TraceFile
	}
	return opts
}

// Plan validates opts, resolves the inputs and derives every run's output
// location. The output directory is created when it does not exist.
func (e *Engine) Plan(opts Options) (*Plan, error) {
	log := e.log()
	opts = e.withDefaults(opts)

	exe, err := checkExecutable(opts.Executable)
	if err != nil {
		return nil, err
	}
	opts.Executable = exe

	if !slices.Contains(CPUTypes, opts.CPUType) {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownCPUType, opts.CPUType, strings.Join(CPUTypes, ", "))
	}
	if opts.CPUType == "trace" {
		if opts.TraceFile == "" {
			return nil, ErrTraceFileMissing
		}
		if _, err := os.Stat(opts.TraceFile); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTraceFileMissing, opts.TraceFile)
		}
	} else if opts.TraceFile != "" {
		log.Warn("trace file is only used by the trace cpu, ignoring it",
			zap.String("trace_file", opts.TraceFile), zap.String("cpu_type", opts.CPUType))
	}

	opts.OutputDir = e.resolve(opts.OutputDir)
	if opts.OutputDir != "" {
		if err := ensureOutputDir(opts.OutputDir, log); err != nil {
			return nil, err
		}
		log.Info("overriding the output directory", zap.String("output_dir", opts.OutputDir))
	}

	plan, err := e.plan(opts)
	if err != nil {
		return nil, err
	}
	if len(plan.Jobs) == 0 {
		return nil, ErrNoConfigs
	}
	return plan, nil
}

// plan resolves inputs into jobs without touching the executable or the
// output directory.
func (e *Engine) plan(opts Options) (*Plan, error) {
	cfg := e.cfg()
	opts.OutputDir = e.resolve(opts.OutputDir)

	res, err := inputs.Resolve(opts.Inputs, inputs.Options{
		Extension: cfg.Extension(),
		Logger:    e.Logger,
	})
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Options:   opts,
		Ignored:   res.Ignored,
		extraArgs: cfg.ExtraArgs,
	}

	summaryDir := opts.OutputDir
	if summaryDir == "" {
		summaryDir = cmp.Or(e.Dir, ".")
	}
	p.SummaryPath = filepath.Join(summaryDir, cfg.SummaryFile())

	seen := make(map[string]string)
	for _, path := range res.Configs {
		name := inputs.Name(path)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %q from %s and %s", ErrDuplicateName, name, prev, path)
		}
		seen[name] = path

		job := Job{
			Name:       name,
			Config:     path,
			MemoryType: MemoryType(path, cfg.MemoryRules()),
		}
		if opts.OutputDir != "" {
			job.OutputPrefix = filepath.Join(opts.OutputDir, name)
			job.Override = true
		} else {
			prefix, err := iniconf.OutputPrefix(path)
			if err != nil {
				return nil, fmt.Errorf("reading output prefix: %w", err)
			}
			job.OutputPrefix = e.resolve(prefix)
		}
		job.StatsPath = job.OutputPrefix + cfg.StatsSuffix()
		p.Jobs = append(p.Jobs, job)
	}
	return p, nil
}

// MemoryType returns the memory type of the first rule whose match string
// occurs in the lower-cased config path.
func MemoryType(path string, rules []config.MemoryRule) string {
	lower := strings.ToLower(path)
	for _, r := range rules {
		if strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Type
		}
	}
	return DefaultMemoryType
}

func checkExecutable(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: no executable given", ErrExecutableNotFound)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, path)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrExecutableNotFound, path)
	}
	// exec looks bare names up in PATH; the executable was given as a file.
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving executable %s: %w", path, err)
	}
	return abs, nil
}

func ensureOutputDir(dir string, log *zap.Logger) error {
	fi, err := os.Stat(dir)
	switch {
	case err == nil && fi.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("output directory %s is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("inspecting output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot make output directory %s: %w", dir, err)
	}
	log.Warn("output directory does not exist, created it", zap.String("output_dir", dir))
	return nil
}
