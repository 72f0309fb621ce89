// Package config loads and validates the optional .simbatch YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the settings file looked up from the working directory.
const FileName = ".simbatch"

// Default values for batch configuration.
const (
	DefaultMaxOutput   = 1 << 20 // 1 MB
	DefaultCycles      = 100000
	DefaultCPUType     = "random"
	DefaultExtension   = ".ini"
	DefaultStatsSuffix = "stats.csv"
	DefaultSummaryFile = "summary.csv"
)

// Config holds the parsed .simbatch configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int          `yaml:"version"`
	RawTimeout   string       `yaml:"timeout"`    // per run, e.g. "30m"; empty means no limit
	RawMaxOutput int          `yaml:"max_output"` // bytes
	Executable   string       `yaml:"executable"` // simulator used when none is given on the command line
	RawCycles    int          `yaml:"cycles"`
	RawCPUType   string       `yaml:"cpu_type"`
	TraceFile    string       `yaml:"trace_file"`
	RawExtension string       `yaml:"extension"`
	RawStats     string       `yaml:"stats_suffix"`
	RawSummary   string       `yaml:"summary_file"`
	ExtraArgs    []string     `yaml:"extra_args"` // appended to every simulator invocation
	MemoryTypes  []MemoryRule `yaml:"memory_types"`
}

// MemoryRule selects a simulator memory type for configs whose path
// contains Match (case-insensitive).
type MemoryRule struct {
	Match string `yaml:"match"`
	Type  string `yaml:"type"`
}

// DefaultMemoryTypes are used when no memory rules are configured.
var DefaultMemoryTypes = []MemoryRule{{Match: "hmc", Type: "hmc"}}

// Timeout returns the configured per-run timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Cycles returns the configured cycle count or the default.
func (c *Config) Cycles() int {
	if c.RawCycles > 0 {
		return c.RawCycles
	}
	return DefaultCycles
}

// CPUType returns the configured CPU type or the default.
func (c *Config) CPUType() string {
	if c.RawCPUType != "" {
		return c.RawCPUType
	}
	return DefaultCPUType
}

// Extension returns the configuration file extension, including the dot.
func (c *Config) Extension() string {
	if c.RawExtension != "" {
		return c.RawExtension
	}
	return DefaultExtension
}

// StatsSuffix returns the suffix the simulator appends to its output prefix
// when writing the statistics file.
func (c *Config) StatsSuffix() string {
	if c.RawStats != "" {
		return c.RawStats
	}
	return DefaultStatsSuffix
}

// SummaryFile returns the file name of the summary table.
func (c *Config) SummaryFile() string {
	if c.RawSummary != "" {
		return c.RawSummary
	}
	return DefaultSummaryFile
}

// MemoryRules returns the configured memory rules, falling back to defaults.
func (c *Config) MemoryRules() []MemoryRule {
	if len(c.MemoryTypes) > 0 {
		return c.MemoryTypes
	}
	return DefaultMemoryTypes
}

// LoadResult holds the parsed config and the file it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no .simbatch file was found
}

// Load looks for a .simbatch file in dir and each of its parents.
// If none exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	path, err := findConfig(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	for i, r := range cfg.MemoryTypes {
		if r.Match == "" || r.Type == "" {
			return nil, fmt.Errorf("parsing %s: memory_types[%d] needs both match and type", FileName, i)
		}
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// findConfig walks upward from dir looking for a .simbatch file.
func findConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
