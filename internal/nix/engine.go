// Package nix wraps the nix, cachix and fh command-line tools behind
// typed operations. It is consumed by both the MCP server and the CLI
// commands.
package nix

import (
	"context"
	"encoding/json"

	"github.com/deixis/chix/internal/config"
	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/logstore"
	"github.com/deixis/chix/internal/runner"
	"github.com/deixis/chix/internal/validate"
)

// CommandRunner executes commands with bounded lifetime.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, spec runner.Command) (*runner.Outcome, error)
	RunSequence(ctx context.Context, steps []runner.Step) *runner.SequenceResult
}

// Engine holds shared dependencies for all nix operations.
type Engine struct {
	Config    *config.Config
	Runner    CommandRunner
	Logs      logstore.Store
	FlakeRoot string // commands run from here unless a flake_dir overrides it
}

// resolveDir validates an explicit working directory, falling back to
// the flake root when none is given.
func (e *Engine) resolveDir(dir string) (string, error) {
	if dir == "" {
		return e.FlakeRoot, nil
	}
	if err := validate.Path(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (e *Engine) runNix(ctx context.Context, dir string, args ...string) (*runner.Outcome, error) {
	return e.Runner.Run(ctx, runner.Command{Program: "nix", Args: args, Dir: dir})
}

func (e *Engine) runCachix(ctx context.Context, env []string, args ...string) (*runner.Outcome, error) {
	return e.Runner.Run(ctx, runner.Command{Program: "cachix", Args: args, Env: env})
}

func (e *Engine) runFh(ctx context.Context, args ...string) (*runner.Outcome, error) {
	return e.Runner.Run(ctx, runner.Command{Program: "fh", Args: args})
}

// limits builds text limits from per-call head/tail/max_bytes params.
func (e *Engine) limits(head, tail, maxBytes int) limit.Limits {
	if maxBytes <= 0 {
		maxBytes = e.Config.MaxBytes()
	}
	return limit.Limits{Head: head, Tail: tail, MaxBytes: maxBytes}
}

// jsonOrString decodes s as JSON, falling back to the raw string when
// it does not parse (typically because it was truncated).
func jsonOrString(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
