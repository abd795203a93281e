package runner

import (
	"context"
	"errors"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// Step is one entry in a sequential execution: the command plus the
// display form shown in its outcome (which may omit wrapper argv such
// as "nix develop -c").
type Step struct {
	Display string
	Command Command
}

// StepOutcome is the serialisable record of one attempted step. Stderr
// is always passed through the limiter before it leaves the process;
// stdout is shaped by the caller.
type StepOutcome struct {
	Command   string        `json:"command"`
	Succeeded bool          `json:"success"`
	Stdout    string        `json:"stdout"`
	Stderr    limit.Limited `json:"stderr"`
	ExitCode  *int          `json:"exit_code"`
	Reason    string        `json:"reason,omitempty"`
}

// SequenceResult aggregates an ordered run of steps. Outcomes holds a
// prefix of the requested steps: it ends at (and includes) the first
// failing step and never contains unattempted steps after it.
type SequenceResult struct {
	Succeeded bool          `json:"success"`
	Outcomes  []StepOutcome `json:"results"`
}

// RunSequence executes steps in order with logical-AND semantics,
// stopping at the first failure. Each step's argv is validated before
// spawning; a validation failure records a failed outcome without
// running the command. An empty step list is vacuous success with zero
// outcomes. Later steps may depend on filesystem side effects of
// earlier ones, so there is no reordering or parallel fan-out.
func (r *Runner) RunSequence(ctx context.Context, steps []Step) *SequenceResult {
	res := &SequenceResult{Succeeded: true}

	for _, step := range steps {
		display := step.Display
		if display == "" {
			display = step.Command.Display()
		}

		if err := validate.NoShellMeta(step.Command.Program); err != nil {
			res.Outcomes = append(res.Outcomes, failedStep(display, err))
			res.Succeeded = false
			return res
		}
		if err := validate.Args(step.Command.Args); err != nil {
			res.Outcomes = append(res.Outcomes, failedStep(display, err))
			res.Succeeded = false
			return res
		}

		out, err := r.Run(ctx, step.Command)
		if err != nil {
			res.Outcomes = append(res.Outcomes, failedStep(display, err))
			res.Succeeded = false
			return res
		}

		so := StepOutcome{
			Command:   display,
			Succeeded: out.Succeeded,
			Stdout:    out.Stdout,
			Stderr:    limit.Stderr(out.Stderr),
			ExitCode:  out.ExitCode,
			Reason:    string(out.Reason),
		}
		res.Outcomes = append(res.Outcomes, so)

		if !out.Succeeded {
			res.Succeeded = false
			return res
		}
	}

	return res
}

// failedStep records a step that never produced a process exit: a
// validation rejection or a spawn failure.
func failedStep(display string, err error) StepOutcome {
	reason := ""
	var verr *validate.Error
	var rerr *Error
	switch {
	case errors.As(err, &verr):
		reason = string(verr.Reason)
	case errors.As(err, &rerr):
		reason = string(rerr.Reason)
	}
	return StepOutcome{
		Command:   display,
		Succeeded: false,
		Stderr:    limit.Stderr(err.Error()),
		Reason:    reason,
	}
}
