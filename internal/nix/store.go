package nix

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// PathInfoParams configures nix path-info.
type PathInfoParams struct {
	Path          string // store path or installable
	Closure       bool
	Derivation    bool
	ClosureOffset int
	ClosureLimit  int
}

// PathInfoResult carries store path metadata, optionally with the full
// runtime closure.
type PathInfoResult struct {
	Success  bool            `json:"success"`
	PathInfo any             `json:"path_info"`
	Stderr   limit.Limited   `json:"stderr"`
	Page     *limit.PageInfo `json:"pagination,omitempty"`
}

// PathInfo queries metadata for a store path or installable. Closure
// queries return one entry per closure member and are paginated, since
// large closures run to thousands of paths.
func (e *Engine) PathInfo(ctx context.Context, p PathInfoParams) (*PathInfoResult, error) {
	if err := validateStoreTarget(p.Path); err != nil {
		return nil, err
	}

	args := []string{"path-info", "--json"}
	if p.Closure {
		args = append(args, "--closure")
	}
	if p.Derivation {
		args = append(args, "--derivation")
	}
	args = append(args, p.Path)

	out, err := e.runNix(ctx, "", args...)
	if err != nil {
		return nil, err
	}
	if !out.Succeeded {
		return &PathInfoResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	res := &PathInfoResult{Success: true, Stderr: limit.Stderr(out.Stderr)}
	if p.Closure && (p.ClosureOffset > 0 || p.ClosureLimit > 0) {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(out.Stdout), &arr); err == nil {
			kept, info := limit.Page(arr, p.ClosureOffset, p.ClosureLimit)
			res.PathInfo = kept
			res.Page = &info
			return res, nil
		}
	}
	res.PathInfo = jsonOrString(out.Stdout)
	return res, nil
}

// StoreGCParams configures nix store gc.
type StoreGCParams struct {
	DryRun   bool
	MaxFreed string // e.g. "1G"
}

// StoreGCResult reports garbage collection output.
type StoreGCResult struct {
	Success bool          `json:"success"`
	Stdout  limit.Limited `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// StoreGC runs the store garbage collector.
func (e *Engine) StoreGC(ctx context.Context, p StoreGCParams) (*StoreGCResult, error) {
	args := []string{"store", "gc"}
	if p.DryRun {
		args = append(args, "--dry-run")
	}
	if p.MaxFreed != "" {
		if err := validate.NoShellMeta(p.MaxFreed); err != nil {
			return nil, err
		}
		args = append(args, "--max", p.MaxFreed)
	}

	out, err := e.runNix(ctx, "", args...)
	if err != nil {
		return nil, err
	}
	return &StoreGCResult{
		Success: out.Succeeded,
		Stdout:  limit.Stderr(out.Stdout),
		Stderr:  limit.Stderr(out.Stderr),
	}, nil
}

// CopyParams configures nix copy.
type CopyParams struct {
	Installable string // store path or installable
	To          string // destination store URL
	From        string // source store URL
}

// CopyResult reports copy output.
type CopyResult struct {
	Success bool          `json:"success"`
	Stdout  string        `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// Copy transfers store paths between stores.
func (e *Engine) Copy(ctx context.Context, p CopyParams) (*CopyResult, error) {
	args := []string{"copy"}
	if p.To != "" {
		if err := validate.NoShellMeta(p.To); err != nil {
			return nil, err
		}
		args = append(args, "--to", p.To)
	}
	if p.From != "" {
		if err := validate.NoShellMeta(p.From); err != nil {
			return nil, err
		}
		args = append(args, "--from", p.From)
	}
	if err := validateStoreTarget(p.Installable); err != nil {
		return nil, err
	}
	args = append(args, p.Installable)

	out, err := e.runNix(ctx, "", args...)
	if err != nil {
		return nil, err
	}
	return &CopyResult{
		Success: out.Succeeded,
		Stdout:  out.Stdout,
		Stderr:  limit.Stderr(out.Stderr),
	}, nil
}

// StoreLsParams configures a store directory listing.
type StoreLsParams struct {
	Path   string
	Long   bool // include file sizes
	Offset int
	Limit  int
}

// StoreEntry is one directory entry inside a store path.
type StoreEntry struct {
	Name string `json:"name"`
	Type string `json:"entry_type"` // file, directory or symlink
	Size *int64 `json:"size,omitempty"`
}

// StoreLsResult lists the contents of a store directory.
type StoreLsResult struct {
	Path    string          `json:"path"`
	Entries []StoreEntry    `json:"entries"`
	Page    *limit.PageInfo `json:"pagination,omitempty"`
}

// StoreLs lists a directory under /nix/store. The path is resolved
// through symlinks and re-validated afterwards, so a result symlink
// cannot escape the store.
func (e *Engine) StoreLs(ctx context.Context, p StoreLsParams) (*StoreLsResult, error) {
	canonical, err := resolveStoreSubpath(p.Path)
	if err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(canonical)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", canonical, err)
	}

	entries := make([]StoreEntry, 0, len(dirents))
	for _, d := range dirents {
		entry := StoreEntry{Name: d.Name(), Type: "file"}
		if d.IsDir() {
			entry.Type = "directory"
		} else if d.Type()&os.ModeSymlink != 0 {
			entry.Type = "symlink"
		}
		if p.Long && entry.Type == "file" {
			if info, err := d.Info(); err == nil {
				size := info.Size()
				entry.Size = &size
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	res := &StoreLsResult{Path: canonical, Entries: entries}
	if p.Offset > 0 || p.Limit > 0 {
		kept, info := limit.Page(entries, p.Offset, p.Limit)
		res.Entries = kept
		res.Page = &info
	}
	return res, nil
}

// StoreCatParams configures reading a file from the store.
type StoreCatParams struct {
	Path   string
	Offset int // starting line
	Limit  int // line count
}

// StoreCatResult carries file content, windowed by line.
type StoreCatResult struct {
	Path    string          `json:"path"`
	Content string          `json:"content"`
	Page    *limit.PageInfo `json:"pagination,omitempty"`
}

// StoreCat reads a file under /nix/store with line-based pagination.
func (e *Engine) StoreCat(ctx context.Context, p StoreCatParams) (*StoreCatResult, error) {
	canonical, err := resolveStoreSubpath(p.Path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(canonical)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", canonical, err)
	}

	res := &StoreCatResult{Path: canonical, Content: string(data)}
	if p.Offset > 0 || p.Limit > 0 {
		lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		kept, info := limit.Page(lines, p.Offset, p.Limit)
		res.Content = strings.Join(kept, "\n")
		res.Page = &info
	}
	return res, nil
}

// resolveStoreSubpath canonicalises path and verifies the result still
// lies inside /nix/store. Validation must run on the resolved path, not
// the input, or a symlink could point anywhere.
func resolveStoreSubpath(path string) (string, error) {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", path, err)
	}
	canonical, err = filepath.Abs(canonical)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", path, err)
	}
	if err := validate.StoreSubpath(canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

// validateStoreTarget accepts either a literal store path or a flake
// installable, validating whichever form the argument takes.
func validateStoreTarget(target string) error {
	if strings.HasPrefix(target, "/nix/store/") {
		return validate.StorePath(target)
	}
	return validate.FlakeRef(target)
}
