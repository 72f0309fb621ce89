package main

import (
	"fmt"
	"strings"

	"github.com/deixis/simbatch/internal/batch"
	"github.com/deixis/simbatch/internal/inputs"
	"github.com/deixis/simbatch/internal/summary"
	"github.com/spf13/cobra"
)

func newSummarizeCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "summarize [-o DIR] CONFIG...",
		Short: "Rebuild summary.csv from existing statistics files",
		Long: `Rebuild the summary table of a previous batch without running the
simulator. Give the same configurations and output directory as the run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			defer func() { _ = logger.Sync() }()

			eng, err := newEngine(cmd, logger)
			if err != nil {
				return err
			}
			table, path, err := eng.Summarize(batch.Options{Inputs: args, OutputDir: outputDir})
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), summaryJSON(table, path))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Summary: %s (%d rows)\n", path, len(table.Rows))
			if len(table.Missing) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No statistics: %s\n", strings.Join(table.Missing, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory used by the run")
	return cmd
}

type summaryOutput struct {
	Path    string                       `json:"path"`
	Columns []string                     `json:"columns"`
	Rows    map[string]map[string]string `json:"rows"`
	Missing []string                     `json:"missing,omitempty"`
}

func summaryJSON(t *summary.Table, path string) summaryOutput {
	out := summaryOutput{
		Path:    path,
		Columns: t.Columns,
		Rows:    make(map[string]map[string]string, len(t.Rows)),
		Missing: t.Missing,
	}
	for _, r := range t.Rows {
		out.Rows[r.Name] = r.Values
	}
	return out
}

func newConfigsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configs INPUT...",
		Short: "List the configuration files the inputs resolve to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			defer func() { _ = logger.Sync() }()

			eng, err := newEngine(cmd, logger)
			if err != nil {
				return err
			}
			res, err := inputs.Resolve(args, inputs.Options{
				Extension: eng.Config.Extension(),
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			for _, c := range res.Configs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", inputs.Name(c), c)
			}
			return nil
		},
	}
}
