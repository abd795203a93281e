package nix

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// FhSearchParams configures a FlakeHub search.
type FhSearchParams struct {
	Query      string
	MaxResults int
	Offset     int
	Limit      int
}

// FhSearchResult carries FlakeHub search matches.
type FhSearchResult struct {
	Success bool            `json:"success"`
	Results any             `json:"results"`
	Stderr  limit.Limited   `json:"stderr"`
	Page    *limit.PageInfo `json:"pagination,omitempty"`
}

// FhSearch queries FlakeHub for published flakes.
func (e *Engine) FhSearch(ctx context.Context, p FhSearchParams) (*FhSearchResult, error) {
	if err := validate.NoShellMeta(p.Query); err != nil {
		return nil, err
	}

	args := []string{"search", "--json", p.Query}
	if p.MaxResults > 0 {
		args = append(args, "--max-results", strconv.Itoa(p.MaxResults))
	}

	out, err := e.runFh(ctx, args...)
	if err != nil {
		return nil, err
	}
	if !out.Succeeded {
		return &FhSearchResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	results, page := paginateArray(out.Stdout, p.Offset, p.Limit)
	return &FhSearchResult{
		Success: true,
		Results: results,
		Stderr:  limit.Stderr(out.Stderr),
		Page:    page,
	}, nil
}

// FhResolveResult carries the store path a FlakeHub reference resolves to.
type FhResolveResult struct {
	Success bool          `json:"success"`
	Result  any           `json:"result"`
	Stderr  limit.Limited `json:"stderr"`
}

// FhResolve resolves a FlakeHub flake reference to its release and
// store path.
func (e *Engine) FhResolve(ctx context.Context, flakeRef string) (*FhResolveResult, error) {
	if err := validate.NoShellMeta(flakeRef); err != nil {
		return nil, err
	}

	out, err := e.runFh(ctx, "resolve", "--json", flakeRef)
	if err != nil {
		return nil, err
	}

	res := &FhResolveResult{Success: out.Succeeded, Stderr: limit.Stderr(out.Stderr)}
	if out.Succeeded {
		res.Result = jsonOrString(out.Stdout)
	}
	return res, nil
}

// FhStatusResult reports FlakeHub authentication state.
type FhStatusResult struct {
	Success  bool          `json:"success"`
	LoggedIn bool          `json:"logged_in"`
	Stdout   string        `json:"stdout"`
	Stderr   limit.Limited `json:"stderr"`
}

// FhStatus probes fh login state.
func (e *Engine) FhStatus(ctx context.Context) (*FhStatusResult, error) {
	out, err := e.runFh(ctx, "status")
	if err != nil {
		return nil, err
	}
	loggedIn := out.Succeeded &&
		(strings.Contains(out.Stdout, "Logged in") || strings.Contains(out.Stdout, "authenticated"))
	return &FhStatusResult{
		Success:  out.Succeeded,
		LoggedIn: loggedIn,
		Stdout:   out.Stdout,
		Stderr:   limit.Stderr(out.Stderr),
	}, nil
}

// paginateArray decodes a JSON array and keeps a window of its
// elements. Non-array JSON is passed through unpaginated.
func paginateArray(stdout string, offset, lim int) (any, *limit.PageInfo) {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(stdout), &arr); err != nil {
		return jsonOrString(stdout), nil
	}
	if offset <= 0 && lim <= 0 {
		return arr, nil
	}
	kept, info := limit.Page(arr, offset, lim)
	return kept, &info
}
