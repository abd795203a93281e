package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

func (h *handler) registerBuildTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_build",
		Description: `Build a flake output and return the resulting store paths.

Runs nix build --json --print-out-paths. The build log is truncated to its
tail for the response; the full log is archived and readable via the
nix://build-log/{log_id} resource. For long builds pass background=true to
get a task ID immediately and poll with task_status.`,
	}, h.buildHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "task_status",
		Description: `Check on background builds started with nix_build background=true.

With a task_id, returns that task; without one, lists all known tasks.`,
	}, h.taskStatusHandler)
}

type buildParams struct {
	Installable    string `json:"installable,omitempty" jsonschema:"Flake installable to build (e.g. .#package or nixpkgs#hello). Defaults to .#default."`
	FlakeDir       string `json:"flake_dir,omitempty" jsonschema:"Directory to run the build from. Defaults to the workspace flake root."`
	PrintBuildLogs *bool  `json:"print_build_logs,omitempty" jsonschema:"Pass -L to stream full build logs to stderr. Default: true."`
	LogTail        int    `json:"log_tail,omitempty" jsonschema:"Number of trailing log lines to keep in the response. Default: 500."`
	MaxLogBytes    int    `json:"max_log_bytes,omitempty" jsonschema:"Byte cap on the returned log."`
	Background     bool   `json:"background,omitempty" jsonschema:"Start the build as a background task and return a task ID immediately."`
}

// backgroundStarted is the immediate response for a background build.
type backgroundStarted struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Command string `json:"command"`
}

func (h *handler) buildHandler(ctx context.Context, req *mcp.CallToolRequest, params buildParams) (*mcp.CallToolResult, any, error) {
	p := nix.BuildParams{
		Installable:    params.Installable,
		FlakeDir:       params.FlakeDir,
		PrintBuildLogs: params.PrintBuildLogs,
		LogTail:        params.LogTail,
		MaxLogBytes:    params.MaxLogBytes,
	}

	if params.Background {
		installable := p.Installable
		if installable == "" {
			installable = ".#default"
		}
		command := "nix build " + installable
		id := h.tasks.Start(command, func(ctx context.Context) (*int, error) {
			res, err := h.engine.Build(ctx, p)
			if err != nil {
				return nil, err
			}
			code := 1
			if res.Success {
				code = 0
			}
			return &code, nil
		})
		return jsonResult(backgroundStarted{TaskID: id, Status: "running", Command: command})
	}

	res, err := h.engine.Build(ctx, p)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type taskStatusParams struct {
	TaskID string `json:"task_id,omitempty" jsonschema:"Task ID returned by nix_build. Omit to list all tasks."`
}

func (h *handler) taskStatusHandler(ctx context.Context, req *mcp.CallToolRequest, params taskStatusParams) (*mcp.CallToolResult, any, error) {
	if params.TaskID == "" {
		return jsonResult(h.tasks.List())
	}
	info, ok := h.tasks.Get(params.TaskID)
	if !ok {
		return errorResult(fmt.Sprintf("unknown task: %s", params.TaskID))
	}
	return jsonResult(info)
}
