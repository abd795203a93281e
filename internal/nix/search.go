package nix

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// SearchParams configures a nix search invocation.
type SearchParams struct {
	Query    string
	FlakeRef string // defaults to "nixpkgs"
	Exclude  []string
	Offset   int
	Limit    int
}

// SearchResult carries matching packages keyed by attribute path.
type SearchResult struct {
	Success  bool            `json:"success"`
	Packages any             `json:"packages"`
	Stderr   limit.Limited   `json:"stderr"`
	Page     *limit.PageInfo `json:"pagination,omitempty"`
}

// Search queries a flake for packages matching the query. Results are
// sorted by attribute path and paginated, since nixpkgs queries can
// return thousands of entries.
func (e *Engine) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	flakeRef := p.FlakeRef
	if flakeRef == "" {
		flakeRef = "nixpkgs"
	}
	if err := validate.FlakeRef(flakeRef); err != nil {
		return nil, err
	}
	if err := validate.NoShellMeta(p.Query); err != nil {
		return nil, err
	}
	if err := validate.Args(p.Exclude); err != nil {
		return nil, err
	}

	args := []string{"search", "--json", flakeRef, p.Query}
	for _, ex := range p.Exclude {
		args = append(args, "--exclude", ex)
	}

	out, err := e.runNix(ctx, e.FlakeRoot, args...)
	if err != nil {
		return nil, err
	}
	if !out.Succeeded {
		return &SearchResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	packages, page := paginateObject(out.Stdout, p.Offset, p.Limit)
	return &SearchResult{
		Success:  true,
		Packages: packages,
		Stderr:   limit.Stderr(out.Stderr),
		Page:     page,
	}, nil
}

// paginateObject decodes a JSON object and keeps a key-sorted window of
// its entries. Non-object JSON is passed through unpaginated.
func paginateObject(stdout string, offset, lim int) (any, *limit.PageInfo) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stdout), &m); err != nil {
		return jsonOrString(stdout), nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kept, info := limit.Page(keys, offset, lim)
	if offset <= 0 && lim <= 0 {
		return m, nil
	}

	windowed := make(map[string]json.RawMessage, len(kept))
	for _, k := range kept {
		windowed[k] = m[k]
	}
	return windowed, &info
}
