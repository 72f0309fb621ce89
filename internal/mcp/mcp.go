// Package mcp provides the simbatch MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/deixis/simbatch"
	"github.com/deixis/simbatch/internal/batch"
	"github.com/deixis/simbatch/internal/config"
	"github.com/deixis/simbatch/internal/report"
	"github.com/deixis/simbatch/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *batch.Engine
	runner *runner.Runner // retained so roots can move the working directory
	store  report.Store
}

// NewServer creates an MCP server with all simbatch tools registered.
// Simulator runs started through it are always quiet: stdout belongs to the
// transport.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, logger *zap.Logger) *mcp.Server {
	h := &handler{
		engine: &batch.Engine{
			Config: cfg,
			Runner: r,
			Logger: logger,
			Dir:    r.Dir,
		},
		runner: r,
		store:  store,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "simbatch", Version: simbatch.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "sim_configs",
		Description: "List the simulator configuration files a set of inputs resolves to, and the inputs that were ignored.",
	}, h.configsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sim_batch",
		Description: `Run the simulator once per configuration file and merge the statistics into summary.csv.

Runs are sequential. A failed run is recorded and the batch continues.
Results are stored for drill-down via sim_inspect.`,
	}, h.batchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "sim_inspect",
		Description: `Drill into one run of a sim_batch result.

Use the batch_id from the sim_batch output and a configuration name
(the file name without extension).`,
	}, h.inspectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and moves the
// runner, engine and config to the first file root, so relative inputs and
// output prefixes resolve against the client's project.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}

	h.runner.Dir = workspace
	h.engine.Dir = workspace
	h.runner.Timeout = loaded.Config.Timeout()
	h.runner.MaxOutput = loaded.Config.MaxOutputBytes()
	h.engine.Config = loaded.Config
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
