package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/lsp"
)

// nilInstallHint tells the caller how to get the language server when a
// nil_* tool is invoked without it.
const nilInstallHint = `The nil language server is not installed, so language tools are unavailable.

Install:
  nix profile install nixpkgs#nil

Then restart the chix MCP server.`

func (h *handler) registerNilTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "nil_diagnostics",
		Description: "Report syntax and semantic diagnostics for a .nix file via the nil language server.",
	}, h.nilDiagnosticsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nil_hover",
		Description: "Show documentation for the symbol at a position in a .nix file (zero-based line and character).",
	}, h.nilHoverHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nil_completions",
		Description: "List completion candidates at a position in a .nix file (zero-based line and character).",
	}, h.nilCompletionsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nil_definition",
		Description: "Find where the symbol at a position in a .nix file is defined.",
	}, h.nilDefinitionHandler)
}

// withNil spawns a language server for one query: open the file, run
// fn, shut the server down. nil is cheap to start, and a fresh server
// per call avoids stale state across edits.
func (h *handler) withNil(ctx context.Context, file string, fn func(c *lsp.Client, uri string) (any, error)) (*mcp.CallToolResult, any, error) {
	if h.nilCmd == "" {
		return errorResult(nilInstallHint)
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return errorResult(fmt.Sprintf("resolving %s: %v", file, err))
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return errorResult(fmt.Sprintf("File not found: %s", abs))
	}

	client, err := lsp.Start(ctx, h.nilCmd)
	if err != nil {
		return errorResult(fmt.Sprintf("starting nil: %v", err))
	}
	defer client.Shutdown()

	if err := client.Initialize(lsp.FileURI(filepath.Dir(abs))); err != nil {
		return errorResult(fmt.Sprintf("initializing nil: %v", err))
	}
	uri := lsp.FileURI(abs)
	if err := client.DidOpen(uri, string(content)); err != nil {
		return errorResult(fmt.Sprintf("opening %s: %v", abs, err))
	}

	v, err := fn(client, uri)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(v)
}

type nilFileParams struct {
	File   string `json:"file" jsonschema:"Path to the .nix file."`
	Offset int    `json:"offset,omitempty" jsonschema:"Pagination offset into the diagnostics."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum diagnostics to return."`
}

type nilPositionParams struct {
	File      string `json:"file" jsonschema:"Path to the .nix file."`
	Line      int    `json:"line" jsonschema:"Zero-based line number."`
	Character int    `json:"character" jsonschema:"Zero-based character offset within the line."`
}

// diagnosticEntry is one diagnostic in display form.
type diagnosticEntry struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Source   string    `json:"source,omitempty"`
	Range    lsp.Range `json:"range"`
}

type diagnosticsResult struct {
	File        string            `json:"file"`
	Diagnostics []diagnosticEntry `json:"diagnostics"`
	Page        *limit.PageInfo   `json:"pagination,omitempty"`
}

func (h *handler) nilDiagnosticsHandler(ctx context.Context, req *mcp.CallToolRequest, params nilFileParams) (*mcp.CallToolResult, any, error) {
	return h.withNil(ctx, params.File, func(c *lsp.Client, uri string) (any, error) {
		diags := c.Diagnostics(uri)

		entries := make([]diagnosticEntry, 0, len(diags))
		for _, d := range diags {
			entries = append(entries, diagnosticEntry{
				Severity: d.SeverityString(),
				Message:  d.Message,
				Source:   d.Source,
				Range:    d.Range,
			})
		}

		res := diagnosticsResult{File: params.File, Diagnostics: entries}
		if params.Offset > 0 || params.Limit > 0 {
			kept, info := limit.Page(entries, params.Offset, params.Limit)
			res.Diagnostics = kept
			res.Page = &info
		}
		return res, nil
	})
}

type hoverResult struct {
	File     string     `json:"file"`
	Contents string     `json:"contents,omitempty"`
	Range    *lsp.Range `json:"range,omitempty"`
}

func (h *handler) nilHoverHandler(ctx context.Context, req *mcp.CallToolRequest, params nilPositionParams) (*mcp.CallToolResult, any, error) {
	return h.withNil(ctx, params.File, func(c *lsp.Client, uri string) (any, error) {
		hov, err := c.Hover(uri, params.Line, params.Character)
		if err != nil {
			return nil, err
		}
		res := hoverResult{File: params.File}
		if hov != nil {
			res.Contents = hov.Contents
			res.Range = hov.Range
		}
		return res, nil
	})
}

// completionEntry is one completion candidate in display form.
type completionEntry struct {
	Label         string `json:"label"`
	Kind          string `json:"kind"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}

type completionsResult struct {
	File        string            `json:"file"`
	Completions []completionEntry `json:"completions"`
}

func (h *handler) nilCompletionsHandler(ctx context.Context, req *mcp.CallToolRequest, params nilPositionParams) (*mcp.CallToolResult, any, error) {
	return h.withNil(ctx, params.File, func(c *lsp.Client, uri string) (any, error) {
		items, err := c.Completion(uri, params.Line, params.Character)
		if err != nil {
			return nil, err
		}
		entries := make([]completionEntry, 0, len(items))
		for _, item := range items {
			entries = append(entries, completionEntry{
				Label:         item.Label,
				Kind:          item.KindString(),
				Detail:        item.Detail,
				Documentation: item.DocText(),
			})
		}
		return completionsResult{File: params.File, Completions: entries}, nil
	})
}

type definitionResult struct {
	File      string         `json:"file"`
	Locations []lsp.Location `json:"locations"`
}

func (h *handler) nilDefinitionHandler(ctx context.Context, req *mcp.CallToolRequest, params nilPositionParams) (*mcp.CallToolResult, any, error) {
	return h.withNil(ctx, params.File, func(c *lsp.Client, uri string) (any, error) {
		locs, err := c.Definition(uri, params.Line, params.Character)
		if err != nil {
			return nil, err
		}
		return definitionResult{File: params.File, Locations: locs}, nil
	})
}
