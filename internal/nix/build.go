package nix

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/logstore"
	"github.com/deixis/chix/internal/validate"
)

// BuildParams configures a nix build invocation.
type BuildParams struct {
	Installable    string // defaults to ".#default"
	FlakeDir       string
	PrintBuildLogs *bool // defaults to true
	LogTail        int
	MaxLogBytes    int
}

// BuildResult reports the outcome of a build. The full, unlimited
// build log is archived and addressable by LogID; Stderr carries the
// limited tail for inline consumption.
type BuildResult struct {
	Success    bool          `json:"success"`
	StorePaths []string      `json:"store_paths"`
	Stderr     limit.Limited `json:"stderr"`
	LogID      string        `json:"log_id,omitempty"`
}

// Build runs nix build and collects the resulting store paths.
func (e *Engine) Build(ctx context.Context, p BuildParams) (*BuildResult, error) {
	installable := p.Installable
	if installable == "" {
		installable = ".#default"
	}
	if err := validate.Installable(installable); err != nil {
		return nil, err
	}
	dir, err := e.resolveDir(p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"build", "--json", "--print-out-paths"}
	if p.PrintBuildLogs == nil || *p.PrintBuildLogs {
		args = append(args, "-L")
	}
	args = append(args, installable)

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	paths := parseJSONStorePaths(out.Stdout)
	if len(paths) == 0 {
		paths = parseStorePaths(out.Stdout)
	}

	logID := e.archiveLog(out.Command, out.Stderr)

	tail := p.LogTail
	if tail <= 0 {
		tail = e.Config.LogTail()
	}
	limits := limit.Limits{Tail: tail, MaxBytes: p.MaxLogBytes}

	return &BuildResult{
		Success:    out.Succeeded,
		StorePaths: paths,
		Stderr:     limit.Text(out.Stderr, limits),
		LogID:      logID,
	}, nil
}

// archiveLog stores the full build log and returns its ID, or "" when
// no store is configured or the log is empty.
func (e *Engine) archiveLog(command, log string) string {
	if e.Logs == nil || log == "" {
		return ""
	}
	rec := &logstore.Record{
		ID:        uuid.NewString(),
		Command:   command,
		CreatedAt: time.Now().UTC(),
		Log:       log,
	}
	if err := e.Logs.Save(rec); err != nil {
		return ""
	}
	return rec.ID
}
