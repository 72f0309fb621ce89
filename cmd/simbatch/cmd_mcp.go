package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/deixis/simbatch/internal/config"
	simmcp "github.com/deixis/simbatch/internal/mcp"
	"github.com/deixis/simbatch/internal/report"
	"github.com/deixis/simbatch/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMCPCmd() *cobra.Command {
	var (
		httpAddr     string
		instructions bool
		storeDir     string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), simmcp.Instructions)
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			// stdout carries the protocol; logs go to stderr only.
			logger := newLogger(cmd)
			defer func() { _ = logger.Sync() }()

			return serve(ctx, logger, httpAddr, storeDir)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Start HTTP server on address (e.g. :9090)")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "Print model instructions and exit")
	cmd.Flags().StringVar(&storeDir, "store", "", "Directory keeping batch results (default: a temporary directory)")
	return cmd
}

func serve(ctx context.Context, logger *zap.Logger, httpAddr, storeDir string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	if storeDir != "" {
		storeDir, err = filepath.Abs(storeDir)
		if err != nil {
			return fmt.Errorf("resolving store directory: %w", err)
		}
	}
	disk := report.NewDiskStore(storeDir)
	store := report.NewLRUStore(5, disk)

	r := &runner.Runner{
		Dir:       workspace,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	server := simmcp.NewServer(cfg, r, store, logger)

	if httpAddr != "" {
		return serveHTTP(ctx, logger, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, logger *zap.Logger, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
