package nix

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/deixis/chix/internal/limit"
)

// DerivationShowParams configures nix derivation show.
type DerivationShowParams struct {
	Installable  string // defaults to ".#default"
	Recursive    bool
	SummaryOnly  bool
	FlakeDir     string
	InputsOffset int
	MaxInputs    int
}

// DerivationSummary condenses one derivation to its identity: full
// inputDrvs and env attributes are omitted, which matters for
// recursive queries that return hundreds of derivations.
type DerivationSummary struct {
	Path       string   `json:"path"`
	Name       string   `json:"name,omitempty"`
	Outputs    []string `json:"outputs"`
	InputCount int      `json:"input_count"`
}

// DerivationShowResult carries derivation data, either in full or
// summarised.
type DerivationShowResult struct {
	Success    bool                `json:"success"`
	Derivation any                 `json:"derivation,omitempty"`
	Summary    []DerivationSummary `json:"summary,omitempty"`
	Stderr     limit.Limited       `json:"stderr"`
	Page       *limit.PageInfo     `json:"pagination,omitempty"`
}

// DerivationShow inspects the derivation graph behind an installable.
func (e *Engine) DerivationShow(ctx context.Context, p DerivationShowParams) (*DerivationShowResult, error) {
	installable := p.Installable
	if installable == "" {
		installable = ".#default"
	}
	if err := validateStoreTarget(installable); err != nil {
		return nil, err
	}
	dir, err := e.resolveDir(p.FlakeDir)
	if err != nil {
		return nil, err
	}

	args := []string{"derivation", "show"}
	if p.Recursive {
		args = append(args, "--recursive")
	}
	args = append(args, installable)

	out, err := e.runNix(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	if !out.Succeeded {
		return &DerivationShowResult{Success: false, Stderr: limit.Stderr(out.Stderr)}, nil
	}

	res := &DerivationShowResult{Success: true, Stderr: limit.Stderr(out.Stderr)}

	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out.Stdout), &m); err != nil {
		// Not the expected drv-path-keyed object; pass through as-is.
		res.Derivation = jsonOrString(out.Stdout)
		return res, nil
	}

	paths := make([]string, 0, len(m))
	for path := range m {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	paginate := p.InputsOffset > 0 || p.MaxInputs > 0
	kept, info := limit.Page(paths, p.InputsOffset, p.MaxInputs)
	if paginate {
		res.Page = &info
	} else {
		kept = paths
	}

	if p.SummaryOnly {
		summaries := make([]DerivationSummary, 0, len(kept))
		for _, path := range kept {
			summaries = append(summaries, summarizeDerivation(path, m[path]))
		}
		res.Summary = summaries
		return res, nil
	}

	windowed := make(map[string]json.RawMessage, len(kept))
	for _, path := range kept {
		windowed[path] = m[path]
	}
	res.Derivation = windowed
	return res, nil
}

func summarizeDerivation(path string, raw json.RawMessage) DerivationSummary {
	var drv struct {
		Name      string                     `json:"name"`
		Outputs   map[string]json.RawMessage `json:"outputs"`
		InputDrvs map[string]json.RawMessage `json:"inputDrvs"`
	}
	_ = json.Unmarshal(raw, &drv)

	outputs := make([]string, 0, len(drv.Outputs))
	for name := range drv.Outputs {
		outputs = append(outputs, name)
	}
	sort.Strings(outputs)

	return DerivationSummary{
		Path:       path,
		Name:       drv.Name,
		Outputs:    outputs,
		InputCount: len(drv.InputDrvs),
	}
}
