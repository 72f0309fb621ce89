// Command simbatch runs a memory-system simulator over a batch of
// configuration files and merges their statistics into one table.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/deixis/simbatch"
	"github.com/deixis/simbatch/internal/batch"
	"github.com/deixis/simbatch/internal/config"
	"github.com/deixis/simbatch/internal/logging"
	"github.com/deixis/simbatch/internal/runner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("simbatch: ")

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simbatch",
		Short: "Run a simulator over a batch of configuration files",
		Long: `simbatch runs a memory-system simulator once per configuration file,
optionally redirecting every run's output into one directory, and merges the
per-run statistics into a summary table indexed by configuration name.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(
		newRunCmd(),
		newSummarizeCmd(),
		newConfigsCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": simbatch.Version})
			}
			fmt.Fprintln(cmd.OutOrStdout(), simbatch.Version)
			return nil
		},
	}
}

// --- shared ---

func newLogger(cmd *cobra.Command) *zap.Logger {
	level := "info"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logging.New(level, cmd.ErrOrStderr())
}

// newEngine loads .simbatch from the working directory and wires the
// engine the way every command needs it.
func newEngine(cmd *cobra.Command, logger *zap.Logger) (*batch.Engine, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if loaded.Path != "" {
		logger.Debug("loaded settings", zap.String("path", loaded.Path))
	}
	cfg := loaded.Config

	r := &runner.Runner{
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Stderr:    cmd.ErrOrStderr(),
	}

	return &batch.Engine{
		Config: cfg,
		Runner: r,
		Logger: logger,
		Stdout: cmd.OutOrStdout(),
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
