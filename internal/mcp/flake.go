package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

func (h *handler) registerFlakeTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_flake_show",
		Description: "List the outputs a flake provides (packages, devShells, checks, apps) as a JSON tree.",
	}, h.flakeShowHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_flake_check",
		Description: "Run the flake's checks (nix flake check). keep_going defaults to true so all failures are reported.",
	}, h.flakeCheckHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_flake_metadata",
		Description: "Show a flake's resolved URL, description, inputs and lock information.",
	}, h.flakeMetadataHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_flake_update",
		Description: "Update the flake lock file, for all inputs or a named subset.",
	}, h.flakeUpdateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_flake_lock",
		Description: "Create or amend the lock file without updating everything; supports per-input update and override.",
	}, h.flakeLockHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_flake_init",
		Description: "Scaffold a new flake in a directory, optionally from a template flake reference.",
	}, h.flakeInitHandler)
}

// flakeTargetParams is the flake_ref + flake_dir pair most flake tools
// share.
type flakeTargetParams struct {
	FlakeRef string `json:"flake_ref,omitempty" jsonschema:"Flake reference. Defaults to ."`
	FlakeDir string `json:"flake_dir,omitempty" jsonschema:"Directory to run from. Defaults to the workspace flake root."`
}

type windowParams struct {
	Head     int `json:"head,omitempty" jsonschema:"Keep only the first N lines of output."`
	Tail     int `json:"tail,omitempty" jsonschema:"Keep only the last N lines of output."`
	MaxBytes int `json:"max_bytes,omitempty" jsonschema:"Byte cap on the output."`
}

type flakeShowParams struct {
	flakeTargetParams
	AllSystems bool `json:"all_systems,omitempty" jsonschema:"Show outputs for all systems, not just the current one."`
	windowParams
}

func (h *handler) flakeShowHandler(ctx context.Context, req *mcp.CallToolRequest, params flakeShowParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FlakeShow(ctx, nix.FlakeShowParams{
		FlakeRef:   params.FlakeRef,
		AllSystems: params.AllSystems,
		FlakeDir:   params.FlakeDir,
		Head:       params.Head,
		Tail:       params.Tail,
		MaxBytes:   params.MaxBytes,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type flakeCheckParams struct {
	flakeTargetParams
	KeepGoing *bool `json:"keep_going,omitempty" jsonschema:"Continue past individual check failures. Default: true."`
	windowParams
}

func (h *handler) flakeCheckHandler(ctx context.Context, req *mcp.CallToolRequest, params flakeCheckParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FlakeCheck(ctx, nix.FlakeCheckParams{
		FlakeRef:  params.FlakeRef,
		KeepGoing: params.KeepGoing,
		FlakeDir:  params.FlakeDir,
		Head:      params.Head,
		Tail:      params.Tail,
		MaxBytes:  params.MaxBytes,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type flakeMetadataParams struct {
	flakeTargetParams
	windowParams
}

func (h *handler) flakeMetadataHandler(ctx context.Context, req *mcp.CallToolRequest, params flakeMetadataParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FlakeMetadata(ctx, nix.FlakeMetadataParams{
		FlakeRef: params.FlakeRef,
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

type flakeUpdateParams struct {
	flakeTargetParams
	Inputs []string `json:"inputs,omitempty" jsonschema:"Input names to update. Omit to update all inputs."`
	windowParams
}

func (h *handler) flakeUpdateHandler(ctx context.Context, req *mcp.CallToolRequest, params flakeUpdateParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FlakeUpdate(ctx, nix.FlakeUpdateParams{
		FlakeRef: params.FlakeRef,
		Inputs:   params.Inputs,
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

type flakeLockParams struct {
	flakeTargetParams
	UpdateInputs   []string          `json:"update_inputs,omitempty" jsonschema:"Inputs to update in the lock file."`
	OverrideInputs map[string]string `json:"override_inputs,omitempty" jsonschema:"Input name to flake reference overrides."`
	windowParams
}

func (h *handler) flakeLockHandler(ctx context.Context, req *mcp.CallToolRequest, params flakeLockParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FlakeLock(ctx, nix.FlakeLockParams{
		FlakeRef:       params.FlakeRef,
		UpdateInputs:   params.UpdateInputs,
		OverrideInputs: params.OverrideInputs,
		FlakeDir:       params.FlakeDir,
		Head:           params.Head,
		Tail:           params.Tail,
		MaxBytes:       params.MaxBytes,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type flakeInitParams struct {
	Template string `json:"template,omitempty" jsonschema:"Template flake reference (e.g. templates#rust)."`
	FlakeDir string `json:"flake_dir,omitempty" jsonschema:"Directory to scaffold in. Defaults to the workspace flake root."`
}

func (h *handler) flakeInitHandler(ctx context.Context, req *mcp.CallToolRequest, params flakeInitParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FlakeInit(ctx, nix.FlakeInitParams{
		Template: params.Template,
		FlakeDir: params.FlakeDir,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}
