package nix

import (
	"context"
	"errors"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// EvalParams configures a nix eval invocation. At least one of
// Installable and Expr must be set.
type EvalParams struct {
	Installable string
	Expr        string
	Apply       string
	FlakeDir    string
	Head        int
	Tail        int
	MaxBytes    int
}

// EvalResult carries the evaluated value. Value is the decoded JSON,
// or the raw (possibly truncated) text when it no longer parses.
type EvalResult struct {
	Success   bool          `json:"success"`
	Value     any           `json:"value"`
	Stderr    limit.Limited `json:"stderr"`
	Truncated bool          `json:"truncated,omitempty"`
	Info      *limit.Info   `json:"truncation_info,omitempty"`
}

// Eval runs nix eval --json.
func (e *Engine) Eval(ctx context.Context, p EvalParams) (*EvalResult, error) {
	if p.Installable == "" && p.Expr == "" {
		return nil, errors.New("either 'installable' or 'expr' must be provided")
	}
	dir, err := e.resolveDir(p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"eval", "--json"}
	if p.Installable != "" {
		if err := validate.Installable(p.Installable); err != nil {
			return nil, err
		}
		args = append(args, p.Installable)
	}
	if p.Expr != "" {
		if err := validate.Expression(p.Expr); err != nil {
			return nil, err
		}
		args = append(args, "--expr", p.Expr)
	}
	if p.Apply != "" {
		if err := validate.Expression(p.Apply); err != nil {
			return nil, err
		}
		args = append(args, "--apply", p.Apply)
	}

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	if !out.Succeeded {
		return &EvalResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	limited := limit.Text(out.Stdout, e.limits(p.Head, p.Tail, p.MaxBytes))
	return &EvalResult{
		Success:   true,
		Value:     jsonOrString(limited.Content),
		Stderr:    limit.Stderr(out.Stderr),
		Truncated: limited.Truncated,
		Info:      limited.Info,
	}, nil
}
