package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

func (h *handler) registerRunTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_run",
		Description: `Run a flake app via nix run.

Arguments after -- are passed to the app verbatim; shell metacharacters
are rejected.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_develop_run",
		Description: `Run commands sequentially inside the flake's dev shell.

Each entry is one command with its arguments, executed via nix develop -c.
Commands run strictly in order and stop at the first failure; commands
after the failing one are never attempted. Use this for project tasks
(tests, linters, builds) that need the dev shell environment.`,
	}, h.developRunHandler)
}

type runParams struct {
	Installable string   `json:"installable,omitempty" jsonschema:"Flake app to run (e.g. .#app or nixpkgs#hello). Defaults to .#default."`
	Args        []string `json:"args,omitempty" jsonschema:"Arguments passed to the app after --."`
	FlakeDir    string   `json:"flake_dir,omitempty" jsonschema:"Directory to run from. Defaults to the workspace flake root."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.Run(ctx, nix.RunParams{
		Installable: params.Installable,
		Args:        params.Args,
		FlakeDir:    params.FlakeDir,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type commandEntry struct {
	Command string   `json:"command" jsonschema:"Program to run inside the dev shell."`
	Args    []string `json:"args,omitempty" jsonschema:"Arguments for the program."`
}

type developRunParams struct {
	FlakeRef string         `json:"flake_ref,omitempty" jsonschema:"Flake providing the dev shell. Defaults to ."`
	Commands []commandEntry `json:"commands" jsonschema:"Commands to run in order. Must not be empty."`
	FlakeDir string         `json:"flake_dir,omitempty" jsonschema:"Directory to run from. Defaults to the workspace flake root."`
	Head     int            `json:"head,omitempty" jsonschema:"Keep only the first N lines of each command's stdout."`
	Tail     int            `json:"tail,omitempty" jsonschema:"Keep only the last N lines of each command's stdout."`
	MaxBytes int            `json:"max_bytes,omitempty" jsonschema:"Byte cap per command's stdout."`
}

func (h *handler) developRunHandler(ctx context.Context, req *mcp.CallToolRequest, params developRunParams) (*mcp.CallToolResult, any, error) {
	commands := make([]nix.CommandEntry, 0, len(params.Commands))
	for _, c := range params.Commands {
		commands = append(commands, nix.CommandEntry{Command: c.Command, Args: c.Args})
	}

	res, err := h.engine.DevelopRun(ctx, nix.DevelopRunParams{
		FlakeRef: params.FlakeRef,
		Commands: commands,
		FlakeDir: params.FlakeDir,
		Head:     params.Head,
		Tail:     params.Tail,
		MaxBytes: params.MaxBytes,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}
