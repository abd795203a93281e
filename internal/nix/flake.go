package nix

import (
	"context"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// FlakeShowParams configures nix flake show.
type FlakeShowParams struct {
	FlakeRef   string // defaults to "."
	AllSystems bool
	FlakeDir   string
	Head       int
	Tail       int
	MaxBytes   int
}

// FlakeShowResult carries the flake's output tree.
type FlakeShowResult struct {
	Success   bool          `json:"success"`
	Outputs   any           `json:"outputs"`
	Stderr    limit.Limited `json:"stderr"`
	Truncated bool          `json:"truncated,omitempty"`
	Info      *limit.Info   `json:"truncation_info,omitempty"`
}

// FlakeShow lists the outputs a flake provides.
func (e *Engine) FlakeShow(ctx context.Context, p FlakeShowParams) (*FlakeShowResult, error) {
	flakeRef, dir, err := e.flakeTarget(p.FlakeRef, p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"flake", "show", "--json"}
	if p.AllSystems {
		args = append(args, "--all-systems")
	}
	args = append(args, flakeRef)

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	if !out.Succeeded {
		return &FlakeShowResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	limited := limit.Text(out.Stdout, e.limits(p.Head, p.Tail, p.MaxBytes))
	return &FlakeShowResult{
		Success:   true,
		Outputs:   jsonOrString(limited.Content),
		Stderr:    limit.Stderr(out.Stderr),
		Truncated: limited.Truncated,
		Info:      limited.Info,
	}, nil
}

// FlakeCheckParams configures nix flake check.
type FlakeCheckParams struct {
	FlakeRef  string // defaults to "."
	KeepGoing *bool  // defaults to true
	FlakeDir  string
	Head      int
	Tail      int
	MaxBytes  int
}

// FlakeCheckResult reports evaluation and build check results.
type FlakeCheckResult struct {
	Success bool          `json:"success"`
	Stdout  limit.Limited `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// FlakeCheck runs the flake's checks.
func (e *Engine) FlakeCheck(ctx context.Context, p FlakeCheckParams) (*FlakeCheckResult, error) {
	flakeRef, dir, err := e.flakeTarget(p.FlakeRef, p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"flake", "check"}
	if p.KeepGoing == nil || *p.KeepGoing {
		args = append(args, "--keep-going")
	}
	args = append(args, flakeRef)

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	limits := e.limits(p.Head, p.Tail, p.MaxBytes)
	return &FlakeCheckResult{
		Success: out.Succeeded,
		Stdout:  limit.Text(out.Stdout, limits),
		Stderr:  limit.Text(out.Stderr, limits),
	}, nil
}

// FlakeMetadataParams configures nix flake metadata.
type FlakeMetadataParams struct {
	FlakeRef string // defaults to "."
	FlakeDir string
	Head     int
	Tail     int
	MaxBytes int
}

// FlakeMetadataResult carries resolved flake metadata and lock info.
type FlakeMetadataResult struct {
	Success  bool          `json:"success"`
	Metadata any           `json:"metadata"`
	Stderr   limit.Limited `json:"stderr"`
}

// FlakeMetadata shows a flake's resolved URL, inputs and locks.
func (e *Engine) FlakeMetadata(ctx context.Context, p FlakeMetadataParams) (*FlakeMetadataResult, error) {
	flakeRef, dir, err := e.flakeTarget(p.FlakeRef, p.FlakeDir)
	if err != nil {
		return nil, err
	}

	out, err := e.runNix(ctx, dir, "flake", "metadata", "--json", flakeRef)
	if err != nil {
		return nil, err
	}
	if !out.Succeeded {
		return &FlakeMetadataResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	limited := limit.Text(out.Stdout, e.limits(p.Head, p.Tail, p.MaxBytes))
	return &FlakeMetadataResult{
		Success:  true,
		Metadata: jsonOrString(limited.Content),
		Stderr:   limit.Stderr(out.Stderr),
	}, nil
}

// FlakeUpdateParams configures nix flake update.
type FlakeUpdateParams struct {
	FlakeRef string // defaults to "."
	Inputs   []string
	FlakeDir string
	Head     int
	Tail     int
	MaxBytes int
}

// FlakeUpdateResult reports lock file update output.
type FlakeUpdateResult struct {
	Success bool          `json:"success"`
	Stdout  limit.Limited `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// FlakeUpdate updates the flake's lock file, optionally for specific
// inputs only.
func (e *Engine) FlakeUpdate(ctx context.Context, p FlakeUpdateParams) (*FlakeUpdateResult, error) {
	flakeRef, dir, err := e.flakeTarget(p.FlakeRef, p.FlakeDir)
	if err != nil {
		return nil, err
	}
	if err := validate.Args(p.Inputs); err != nil {
		return nil, err
	}

	args := []string{"flake", "update"}
	args = append(args, p.Inputs...)
	args = append(args, "--flake", flakeRef)

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	limits := e.limits(p.Head, p.Tail, p.MaxBytes)
	return &FlakeUpdateResult{
		Success: out.Succeeded,
		Stdout:  limit.Text(out.Stdout, limits),
		Stderr:  limit.Text(out.Stderr, limits),
	}, nil
}

// FlakeLockParams configures nix flake lock.
type FlakeLockParams struct {
	FlakeRef       string // defaults to "."
	UpdateInputs   []string
	OverrideInputs map[string]string
	FlakeDir       string
	Head           int
	Tail           int
	MaxBytes       int
}

// FlakeLockResult reports lock file creation output.
type FlakeLockResult struct {
	Success bool          `json:"success"`
	Stdout  limit.Limited `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// FlakeLock creates or amends the flake's lock file without updating
// all inputs.
func (e *Engine) FlakeLock(ctx context.Context, p FlakeLockParams) (*FlakeLockResult, error) {
	flakeRef, dir, err := e.flakeTarget(p.FlakeRef, p.FlakeDir)
	if err != nil {
		return nil, err
	}
	if err := validate.Args(p.UpdateInputs); err != nil {
		return nil, err
	}

	args := []string{"flake", "lock"}
	for _, input := range p.UpdateInputs {
		args = append(args, "--update-input", input)
	}
	for name, ref := range p.OverrideInputs {
		if err := validate.NoShellMeta(name); err != nil {
			return nil, err
		}
		if err := validate.NoShellMeta(ref); err != nil {
			return nil, err
		}
		args = append(args, "--override-input", name, ref)
	}
	args = append(args, flakeRef)

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	limits := e.limits(p.Head, p.Tail, p.MaxBytes)
	return &FlakeLockResult{
		Success: out.Succeeded,
		Stdout:  limit.Text(out.Stdout, limits),
		Stderr:  limit.Text(out.Stderr, limits),
	}, nil
}

// FlakeInitParams configures nix flake init.
type FlakeInitParams struct {
	Template string
	FlakeDir string
}

// FlakeInitResult reports template instantiation output.
type FlakeInitResult struct {
	Success bool          `json:"success"`
	Stdout  string        `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// FlakeInit scaffolds a new flake, optionally from a template.
func (e *Engine) FlakeInit(ctx context.Context, p FlakeInitParams) (*FlakeInitResult, error) {
	dir, err := e.resolveDir(p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"flake", "init"}
	if p.Template != "" {
		if err := validate.FlakeRef(p.Template); err != nil {
			return nil, err
		}
		args = append(args, "--template", p.Template)
	}

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return &FlakeInitResult{
		Success: out.Succeeded,
		Stdout:  out.Stdout,
		Stderr:  limit.Stderr(out.Stderr),
	}, nil
}

// flakeTarget validates the common flake_ref + flake_dir parameter
// pair, defaulting the ref to ".".
func (e *Engine) flakeTarget(flakeRef, flakeDir string) (string, string, error) {
	if flakeRef == "" {
		flakeRef = "."
	}
	if err := validate.FlakeRef(flakeRef); err != nil {
		return "", "", err
	}
	dir, err := e.resolveDir(flakeDir)
	if err != nil {
		return "", "", err
	}
	return flakeRef, dir, nil
}
