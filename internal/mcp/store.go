package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

func (h *handler) registerStoreTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_path_info",
		Description: `Query metadata for a store path or installable (nix path-info --json).

With closure=true the full runtime closure is returned, paginated via
closure_offset/closure_limit since large closures run to thousands of
paths. Also readable as the nix://closure/{path} resource.`,
	}, h.pathInfoHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_store_gc",
		Description: "Run the store garbage collector. Use dry_run=true to preview and max_freed (e.g. 1G) to bound the collection.",
	}, h.storeGCHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_copy",
		Description: "Copy store paths between stores (nix copy --to / --from a store URL such as s3://cache or ssh://host).",
	}, h.copyHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "nix_store_ls",
		Description: `List a directory beneath /nix/store.

The path is resolved through symlinks and re-validated, so a link cannot
escape the store. Entries are sorted and paginated.`,
	}, h.storeLsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nix_store_cat",
		Description: "Read a file beneath /nix/store with line-based pagination (offset = starting line, limit = line count).",
	}, h.storeCatHandler)
}

type pathInfoParams struct {
	Path          string `json:"path" jsonschema:"Store path or installable to query."`
	Closure       bool   `json:"closure,omitempty" jsonschema:"Include the full runtime closure."`
	Derivation    bool   `json:"derivation,omitempty" jsonschema:"Query the derivation rather than its outputs."`
	ClosureOffset int    `json:"closure_offset,omitempty" jsonschema:"Pagination offset into the closure."`
	ClosureLimit  int    `json:"closure_limit,omitempty" jsonschema:"Maximum closure entries to return."`
}

func (h *handler) pathInfoHandler(ctx context.Context, req *mcp.CallToolRequest, params pathInfoParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.PathInfo(ctx, nix.PathInfoParams{
		Path:          params.Path,
		Closure:       params.Closure,
		Derivation:    params.Derivation,
		ClosureOffset: params.ClosureOffset,
		ClosureLimit:  params.ClosureLimit,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type storeGCParams struct {
	DryRun   bool   `json:"dry_run,omitempty" jsonschema:"Report what would be deleted without deleting."`
	MaxFreed string `json:"max_freed,omitempty" jsonschema:"Stop after freeing this much space (e.g. 1G)."`
}

func (h *handler) storeGCHandler(ctx context.Context, req *mcp.CallToolRequest, params storeGCParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.StoreGC(ctx, nix.StoreGCParams{
		DryRun:   params.DryRun,
		MaxFreed: params.MaxFreed,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type copyParams struct {
	Installable string `json:"installable" jsonschema:"Store path or installable to copy."`
	To          string `json:"to,omitempty" jsonschema:"Destination store URL."`
	From        string `json:"from,omitempty" jsonschema:"Source store URL."`
}

func (h *handler) copyHandler(ctx context.Context, req *mcp.CallToolRequest, params copyParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.Copy(ctx, nix.CopyParams{
		Installable: params.Installable,
		To:          params.To,
		From:        params.From,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type storeLsParams struct {
	Path   string `json:"path" jsonschema:"Directory under /nix/store to list."`
	Long   bool   `json:"long,omitempty" jsonschema:"Include file sizes."`
	Offset int    `json:"offset,omitempty" jsonschema:"Pagination offset into the sorted entries."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum entries to return."`
}

func (h *handler) storeLsHandler(ctx context.Context, req *mcp.CallToolRequest, params storeLsParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.StoreLs(ctx, nix.StoreLsParams{
		Path:   params.Path,
		Long:   params.Long,
		Offset: params.Offset,
		Limit:  params.Limit,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

type storeCatParams struct {
	Path   string `json:"path" jsonschema:"File under /nix/store to read."`
	Offset int    `json:"offset,omitempty" jsonschema:"Starting line (zero-based)."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Number of lines to return."`
}

func (h *handler) storeCatHandler(ctx context.Context, req *mcp.CallToolRequest, params storeCatParams) (*mcp.CallToolResult, any, error) {
	res, err := h.engine.StoreCat(ctx, nix.StoreCatParams{
		Path:   params.Path,
		Offset: params.Offset,
		Limit:  params.Limit,
	})
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}
