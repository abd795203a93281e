package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/chix/internal/nix"
)

// Resource URIs mirror the tool catalog for clients that prefer reads
// over calls: archived build logs, derivations and closures.
const (
	buildLogsURI      = "nix://build-logs"
	buildLogPrefix    = "nix://build-log/"
	derivationPrefix  = "nix://derivation/"
	closurePathPrefix = "nix://closure/"
)

func (h *handler) registerResources(s *mcp.Server) {
	s.AddResource(&mcp.Resource{
		Name:        "build-logs",
		URI:         buildLogsURI,
		Description: "Index of archived build logs: ID, command, age and size.",
		MIMEType:    "application/json",
	}, h.buildLogsResource)

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "build-log",
		URITemplate: buildLogPrefix + "{id}",
		Description: "Full archived build log for a nix_build run, keyed by the log_id from its result.",
		MIMEType:    "text/plain",
	}, h.buildLogResource)

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "derivation",
		URITemplate: derivationPrefix + "{installable}",
		Description: "Derivation summary for an installable.",
		MIMEType:    "application/json",
	}, h.derivationResource)

	s.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "closure",
		URITemplate: closurePathPrefix + "{path}",
		Description: "Runtime closure of a store path.",
		MIMEType:    "application/json",
	}, h.closureResource)
}

func (h *handler) buildLogsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if h.logs == nil {
		return jsonResource(req.Params.URI, []any{})
	}
	return jsonResource(req.Params.URI, h.logs.List())
}

func (h *handler) buildLogResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, buildLogPrefix)
	if !ok || id == "" {
		return nil, fmt.Errorf("malformed build log URI: %s", uri)
	}
	if h.logs == nil {
		return nil, fmt.Errorf("no log store configured")
	}
	rec, err := h.logs.Load(id)
	if err != nil {
		return nil, fmt.Errorf("loading build log %s: %w", id, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     rec.Log,
		}},
	}, nil
}

func (h *handler) derivationResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	installable, ok := strings.CutPrefix(uri, derivationPrefix)
	if !ok || installable == "" {
		return nil, fmt.Errorf("malformed derivation URI: %s", uri)
	}
	res, err := h.engine.DerivationShow(ctx, nix.DerivationShowParams{
		Installable: installable,
		SummaryOnly: true,
	})
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, res)
}

func (h *handler) closureResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	path, ok := strings.CutPrefix(uri, closurePathPrefix)
	if !ok || path == "" {
		return nil, fmt.Errorf("malformed closure URI: %s", uri)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	res, err := h.engine.PathInfo(ctx, nix.PathInfoParams{Path: path, Closure: true})
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, res)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
