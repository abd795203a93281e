package nix

import (
	"context"
	"errors"
	"strings"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/runner"
	"github.com/deixis/chix/internal/validate"
)

// RunParams configures a nix run invocation.
type RunParams struct {
	Installable string // defaults to ".#default"
	Args        []string
	FlakeDir    string
}

// RunResult reports the outcome of running a flake app.
type RunResult struct {
	Success  bool          `json:"success"`
	Stdout   string        `json:"stdout"`
	Stderr   limit.Limited `json:"stderr"`
	ExitCode *int          `json:"exit_code"`
}

// Run executes a flake app via nix run.
func (e *Engine) Run(ctx context.Context, p RunParams) (*RunResult, error) {
	installable := p.Installable
	if installable == "" {
		installable = ".#default"
	}
	if err := validate.Installable(installable); err != nil {
		return nil, err
	}
	if err := validate.Args(p.Args); err != nil {
		return nil, err
	}
	dir, err := e.resolveDir(p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"run", installable}
	if len(p.Args) > 0 {
		args = append(args, "--")
		args = append(args, p.Args...)
	}

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return &RunResult{
		Success:  out.Succeeded,
		Stdout:   out.Stdout,
		Stderr:   limit.Stderr(out.Stderr),
		ExitCode: out.ExitCode,
	}, nil
}

// CommandEntry is one command to run inside the dev shell.
type CommandEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// DevelopRunParams configures a sequence of commands inside nix develop.
type DevelopRunParams struct {
	FlakeRef string // defaults to "."
	Commands []CommandEntry
	FlakeDir string
	Head     int
	Tail     int
	MaxBytes int
}

// CommandOutcome is the result of one command in the sequence.
type CommandOutcome struct {
	Command  string        `json:"command"`
	Success  bool          `json:"success"`
	Stdout   limit.Limited `json:"stdout"`
	Stderr   limit.Limited `json:"stderr"`
	ExitCode *int          `json:"exit_code"`
	Reason   string        `json:"reason,omitempty"`
}

// DevelopRunResult aggregates the sequence. Results ends at the first
// failing command; commands after it were never attempted.
type DevelopRunResult struct {
	Success bool             `json:"success"`
	Results []CommandOutcome `json:"results"`
}

// DevelopRun executes commands sequentially inside the flake's dev
// shell, stopping at the first failure.
func (e *Engine) DevelopRun(ctx context.Context, p DevelopRunParams) (*DevelopRunResult, error) {
	flakeRef := p.FlakeRef
	if flakeRef == "" {
		flakeRef = "."
	}
	if err := validate.FlakeRef(flakeRef); err != nil {
		return nil, err
	}
	dir, err := e.resolveDir(p.FlakeDir)
	if err != nil {
		return nil, err
	}
	if len(p.Commands) == 0 {
		return nil, errors.New("commands array must not be empty")
	}

	steps := make([]runner.Step, 0, len(p.Commands))
	for _, entry := range p.Commands {
		display := entry.Command
		if len(entry.Args) > 0 {
			display += " " + strings.Join(entry.Args, " ")
		}
		args := append([]string{"develop", flakeRef, "-c", entry.Command}, entry.Args...)
		steps = append(steps, runner.Step{
			Display: display,
			Command: runner.Command{Program: "nix", Args: args, Dir: dir},
		})
	}

	seq := e.Runner.RunSequence(ctx, steps)

	limits := e.limits(p.Head, p.Tail, p.MaxBytes)
	res := &DevelopRunResult{Success: seq.Succeeded}
	for _, so := range seq.Outcomes {
		res.Results = append(res.Results, CommandOutcome{
			Command:  so.Command,
			Success:  so.Succeeded,
			Stdout:   limit.Text(so.Stdout, limits),
			Stderr:   so.Stderr,
			ExitCode: so.ExitCode,
			Reason:   so.Reason,
		})
	}
	return res, nil
}
