package nix

import (
	"context"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// LogParams configures a nix log invocation.
type LogParams struct {
	Installable string
	Head        int
	Tail        int
	MaxBytes    int
}

// LogResult carries a stored build log.
type LogResult struct {
	Success bool          `json:"success"`
	Log     limit.Limited `json:"log"`
	Stderr  limit.Limited `json:"stderr"`
}

// Log fetches the stored build log for an installable or store path.
func (e *Engine) Log(ctx context.Context, p LogParams) (*LogResult, error) {
	if err := validate.Installable(p.Installable); err != nil {
		return nil, err
	}

	out, err := e.runNix(ctx, "", "log", p.Installable)
	if err != nil {
		return nil, err
	}
	return &LogResult{
		Success: out.Succeeded,
		Log:     limit.Text(out.Stdout, e.limits(p.Head, p.Tail, p.MaxBytes)),
		Stderr:  limit.Stderr(out.Stderr),
	}, nil
}
