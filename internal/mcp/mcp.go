// Package mcp provides the chix MCP server, registering all Nix tools
// and resources and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/url"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix"
	"github.com/deixis/chix/internal/background"
	"github.com/deixis/chix/internal/config"
	"github.com/deixis/chix/internal/logstore"
	"github.com/deixis/chix/internal/nix"
	"github.com/deixis/chix/internal/runner"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *nix.Engine
	logs   logstore.Store
	tasks  *background.Manager
	nilCmd string // path to the nil language server; empty when not installed
}

// NewServer creates an MCP server with all chix tools registered.
// flakeRoot is the directory nix commands run from by default; it is
// re-resolved from the client's MCP roots during initialization.
func NewServer(cfg *config.Config, r nix.CommandRunner, logs logstore.Store, flakeRoot string, opts ...ServerOption) *mcp.Server {
	h := &handler{
		engine: &nix.Engine{
			Config:    cfg,
			Runner:    r,
			Logs:      logs,
			FlakeRoot: flakeRoot,
		},
		logs: logs,
	}

	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	h.nilCmd = so.nilCmd
	h.tasks = so.tasks
	if h.tasks == nil {
		h.tasks = background.NewManager(0)
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools:     &mcp.ToolCapabilities{ListChanged: false},
			Resources: &mcp.ResourceCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "chix", Version: chix.Version}, mcpOpts)

	h.registerBuildTools(s)
	h.registerRunTools(s)
	h.registerFlakeTools(s)
	h.registerQueryTools(s)
	h.registerStoreTools(s)
	h.registerCacheTools(s)
	h.registerNilTools(s)
	h.registerResources(s)

	return s
}

// ServerOption configures the chix MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	nilCmd string
	tasks  *background.Manager
}

// WithNilServer points the LSP tools at a nil language server binary.
// Without it the nil_* tools return install instructions.
func WithNilServer(path string) ServerOption {
	return func(o *serverOptions) {
		o.nilCmd = path
	}
}

// WithBackgroundManager substitutes the background task manager.
func WithBackgroundManager(m *background.Manager) ServerOption {
	return func(o *serverOptions) {
		o.tasks = m
	}
}

// updateWorkspaceFromRoots queries the client for MCP roots and, when a
// valid file root is returned, reloads config relative to it and points
// the engine at the discovered flake root. Called during session
// initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
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

	if rr, ok := h.engine.Runner.(*runner.Runner); ok {
		rr.Timeout = loaded.Config.Timeout()
	}
	h.engine.Config = loaded.Config
	h.engine.FlakeRoot = loaded.FlakeRoot
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

// jsonResult renders a result struct as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encoding result: " + err.Error())
	}
	return textResult(string(data))
}
