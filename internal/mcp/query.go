package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

func (h *handler) registerQueryTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_eval",
		Description: `Evaluate a flake attribute or Nix expression via nix eval --json.

Provide an installable (e.g. .#lib.version), an expr, or both (expr with
apply to post-process). At least one of installable/expr is required.`,
	}, h.evalHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_search",
		Description: `Search a flake for packages matching a query.

Defaults to searching nixpkgs. Results are keyed by attribute path,
sorted, and paginated via offset/limit since queries can match thousands
of packages.`,
	}, h.searchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_log",
		Description: "Fetch the stored build log for an installable or store path (nix log).",
	}, h.logHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_derivation_show",
		Description: `Inspect the derivation behind an installable.

summary_only condenses each derivation to its path, name, outputs and
input count, which is the useful form for recursive queries that return
hundreds of derivations.`,
	}, h.derivationShowHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_hash_path",
		Description: "Hash a path recursively in NAR serialisation (the form used for fixed-output derivations).",
	}, h.hashPathHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_hash_file",
		Description: "Hash the flat contents of a single file.",
	}, h.hashFileHandler)
}

type evalParams struct {
	Installable string `json:"installable,omitempty" jsonschema:"Flake attribute to evaluate (e.g. .#lib.version)."`
	Expr        string `json:"expr,omitempty" jsonschema:"Nix expression to evaluate."`
	Apply       string `json:"apply,omitempty" jsonschema:"Function applied to the value before printing (e.g. builtins.attrNames)."`
	FlakeDir    string `json:"flake_dir,omitempty" jsonschema:"Directory to run from. Defaults to the workspace flake root."`
	windowParams
}

func (h *handler) evalHandler(ctx context.Context, req *mcp.CallToolRequest, params evalParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.Eval(ctx, nix.EvalParams{
		Installable: params.Installable,
		Expr:        params.Expr,
		Apply:       params.Apply,
		FlakeDir:    params.FlakeDir,
		Head:        params.Head,
		Tail:        params.Tail,
		MaxBytes:    params.MaxBytes,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type searchParams struct {
	Query    string   `json:"query" jsonschema:"Search query (regular expression)."`
	FlakeRef string   `json:"flake_ref,omitempty" jsonschema:"Flake to search. Defaults to nixpkgs."`
	Exclude  []string `json:"exclude,omitempty" jsonschema:"Patterns to exclude from results."`
	Offset   int      `json:"offset,omitempty" jsonschema:"Pagination offset into the sorted result set."`
	Limit    int      `json:"limit,omitempty" jsonschema:"Maximum number of results to return."`
}

func (h *handler) searchHandler(ctx context.Context, req *mcp.CallToolRequest, params searchParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.Search(ctx, nix.SearchParams{
		Query:    params.Query,
		FlakeRef: params.FlakeRef,
		Exclude:  params.Exclude,
		Offset:   params.Offset,
		Limit:    params.Limit,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type logParams struct {
	Installable string `json:"installable" jsonschema:"Installable or store path whose build log to fetch."`
	windowParams
}

func (h *handler) logHandler(ctx context.Context, req *mcp.CallToolRequest, params logParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.Log(ctx, nix.LogParams{
		Installable: params.Installable,
		Head:        params.Head,
		Tail:        params.Tail,
		MaxBytes:    params.MaxBytes,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type derivationShowParams struct {
	Installable  string `json:"installable,omitempty" jsonschema:"Installable or store path. Defaults to .#default."`
	Recursive    bool   `json:"recursive,omitempty" jsonschema:"Include the full transitive derivation graph."`
	SummaryOnly  bool   `json:"summary_only,omitempty" jsonschema:"Condense each derivation to path, name, outputs and input count."`
	FlakeDir     string `json:"flake_dir,omitempty" jsonschema:"Directory to run from. Defaults to the workspace flake root."`
	InputsOffset int    `json:"inputs_offset,omitempty" jsonschema:"Pagination offset over the sorted derivation paths."`
	MaxInputs    int    `json:"max_inputs,omitempty" jsonschema:"Maximum number of derivations to return."`
}

func (h *handler) derivationShowHandler(ctx context.Context, req *mcp.CallToolRequest, params derivationShowParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.DerivationShow(ctx, nix.DerivationShowParams{
		Installable:  params.Installable,
		Recursive:    params.Recursive,
		SummaryOnly:  params.SummaryOnly,
		FlakeDir:     params.FlakeDir,
		InputsOffset: params.InputsOffset,
		MaxInputs:    params.MaxInputs,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type hashParams struct {
	Path     string `json:"path" jsonschema:"Filesystem path to hash."`
	HashType string `json:"hash_type,omitempty" jsonschema:"Hash algorithm: sha256 (default), sha512, sha1 or md5."`
	SRI      *bool  `json:"sri,omitempty" jsonschema:"Emit SRI format. Default: true."`
	Base32   bool   `json:"base32,omitempty" jsonschema:"Emit nix base32 format instead of SRI."`
}

func (h *handler) hashPathHandler(ctx context.Context, req *mcp.CallToolRequest, params hashParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.HashPath(ctx, nix.HashParams{
		Path:     params.Path,
		HashType: params.HashType,
		SRI:      params.SRI,
		Base32:   params.Base32,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

func (h *handler) hashFileHandler(ctx context.Context, req *mcp.CallToolRequest, params hashParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.HashFile(ctx, nix.HashParams{
		Path:     params.Path,
		HashType: params.HashType,
		SRI:      params.SRI,
		Base32:   params.Base32,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}
