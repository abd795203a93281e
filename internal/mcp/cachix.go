package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

func (h *handler) registerCacheTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "cachix_push",
		Description: `Push store paths to a cachix binary cache.

The cache defaults to the configured default cache. The auth token is
resolved from config (per-cache, then global, then CACHIX_AUTH_TOKEN)
and passed via the environment; never supply tokens as arguments.`,
	}, h.cachixPushHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cachix_use",
		Description: "Add a cachix cache to the local nix substituter configuration.",
	}, h.cachixUseHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cachix_status",
		Description: "Report the local cachix authentication state.",
	}, h.cachixStatusHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "fh_search",
		Description: "Search FlakeHub for published flakes. Results are paginated via offset/limit.",
	}, h.fhSearchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "fh_resolve",
		Description: "Resolve a FlakeHub flake reference (org/flake/version) to its release and store path.",
	}, h.fhResolveHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "fh_status",
		Description: "Report FlakeHub login state.",
	}, h.fhStatusHandler)
}

type cachixPushParams struct {
	Cache      string   `json:"cache,omitempty" jsonschema:"Cache name. Defaults to the configured default cache."`
	StorePaths []string `json:"store_paths" jsonschema:"Store paths to push. Must not be empty."`
}

func (h *handler) cachixPushHandler(ctx context.Context, req *mcp.CallToolRequest, params cachixPushParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.CachixPush(ctx, nix.CachixPushParams{
		Cache:      params.Cache,
		StorePaths: params.StorePaths,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type cachixUseParams struct {
	Cache string `json:"cache" jsonschema:"Cache name to configure as a substituter."`
}

func (h *handler) cachixUseHandler(ctx context.Context, req *mcp.CallToolRequest, params cachixUseParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.CachixUse(ctx, params.Cache)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type emptyParams struct{}

func (h *handler) cachixStatusHandler(ctx context.Context, req *mcp.CallToolRequest, params emptyParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.CachixStatus(ctx)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type fhSearchParams struct {
	Query      string `json:"query" jsonschema:"Search query."`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Cap passed to fh itself."`
	Offset     int    `json:"offset,omitempty" jsonschema:"Pagination offset into the results."`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum results to return."`
}

func (h *handler) fhSearchHandler(ctx context.Context, req *mcp.CallToolRequest, params fhSearchParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FhSearch(ctx, nix.FhSearchParams{
		Query:      params.Query,
		MaxResults: params.MaxResults,
		Offset:     params.Offset,
		Limit:      params.Limit,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type fhResolveParams struct {
	FlakeRef string `json:"flake_ref" jsonschema:"FlakeHub reference to resolve (e.g. NixOS/nixpkgs/0.2405.*)."`
}

func (h *handler) fhResolveHandler(ctx context.Context, req *mcp.CallToolRequest, params fhResolveParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FhResolve(ctx, params.FlakeRef)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

func (h *handler) fhStatusHandler(ctx context.Context, req *mcp.CallToolRequest, params emptyParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.FhStatus(ctx)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}
