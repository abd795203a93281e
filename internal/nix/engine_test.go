package nix

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/deixis/chix/internal/config"
	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/runner"
	"github.com/deixis/chix/internal/validate"
)

// fakeRunner records invocations and plays back scripted outcomes.
type fakeRunner struct {
	calls  []runner.Command
	script []*runner.Outcome
	err    error
}

func exitCode(code int) *int { return &code }

func okOutcome(stdout, stderr string) *runner.Outcome {
	return &runner.Outcome{Succeeded: true, ExitCode: exitCode(0), Stdout: stdout, Stderr: stderr}
}

func failOutcome(code int, stderr string) *runner.Outcome {
	return &runner.Outcome{Succeeded: false, ExitCode: exitCode(code), Stderr: stderr}
}

func (f *fakeRunner) Run(_ context.Context, spec runner.Command) (*runner.Outcome, error) {
	f.calls = append(f.calls, spec)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.script) == 0 {
		return okOutcome("", ""), nil
	}
	out := f.script[0]
	f.script = f.script[1:]
	out.Command = spec.Display()
	return out, nil
}

func (f *fakeRunner) RunSequence(ctx context.Context, steps []runner.Step) *runner.SequenceResult {
	res := &runner.SequenceResult{Succeeded: true}
	for _, step := range steps {
		display := step.Display
		if display == "" {
			display = step.Command.Display()
		}
		out, err := f.Run(ctx, step.Command)
		if err != nil {
			res.Outcomes = append(res.Outcomes, runner.StepOutcome{
				Command: display, Stderr: limit.Stderr(err.Error()), Reason: "SpawnFailed",
			})
			res.Succeeded = false
			return res
		}
		res.Outcomes = append(res.Outcomes, runner.StepOutcome{
			Command:   display,
			Succeeded: out.Succeeded,
			Stdout:    out.Stdout,
			Stderr:    limit.Stderr(out.Stderr),
			ExitCode:  out.ExitCode,
		})
		if !out.Succeeded {
			res.Succeeded = false
			return res
		}
	}
	return res
}

func newTestEngine(fake *fakeRunner) *Engine {
	return &Engine{
		Config:    &config.Config{},
		Runner:    fake,
		FlakeRoot: "/work/flake",
	}
}

func argvString(c runner.Command) string {
	return c.Program + " " + strings.Join(c.Args, " ")
}

func TestBuild_ComposesArgs(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome(
		`[{"drvPath":"/nix/store/aaa-hello.drv","outputs":{"out":"/nix/store/bbb-hello"}}]`,
		"building...\n",
	)}}
	e := newTestEngine(fake)

	res, err := e.Build(context.Background(), BuildParams{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "nix build --json --print-out-paths -L .#default"
	if got := argvString(fake.calls[0]); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
	if fake.calls[0].Dir != "/work/flake" {
		t.Errorf("Dir = %q, want the flake root", fake.calls[0].Dir)
	}
	if !res.Success {
		t.Error("Success = false, want true")
	}
	if len(res.StorePaths) != 1 || res.StorePaths[0] != "/nix/store/bbb-hello" {
		t.Errorf("StorePaths = %v", res.StorePaths)
	}
}

func TestBuild_PlainTextFallback(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome("/nix/store/ccc-tool\n", "")}}
	e := newTestEngine(fake)

	res, err := e.Build(context.Background(), BuildParams{Installable: ".#tool"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.StorePaths) != 1 || res.StorePaths[0] != "/nix/store/ccc-tool" {
		t.Errorf("StorePaths = %v", res.StorePaths)
	}
}

func TestBuild_RejectsInvalidInstallable(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	_, err := e.Build(context.Background(), BuildParams{Installable: ".#pkg; rm -rf /"})
	var verr *validate.Error
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want a validation error", err)
	}
	if verr.Reason != validate.InvalidReference {
		t.Errorf("Reason = %s, want InvalidReference", verr.Reason)
	}
}

func TestBuild_LimitsLogTail(t *testing.T) {
	log := strings.Repeat("line\n", 1000)
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome("", log)}}
	e := newTestEngine(fake)

	res, err := e.Build(context.Background(), BuildParams{LogTail: 10})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.Stderr.Truncated {
		t.Error("Stderr.Truncated = false, want true")
	}
	if got := strings.Count(res.Stderr.Content, "line"); got != 10 {
		t.Errorf("kept %d lines, want 10", got)
	}
	if res.Stderr.Info == nil || res.Stderr.Info.Position != "tail" {
		t.Errorf("Info = %+v, want tail position", res.Stderr.Info)
	}
}

func TestEval_RequiresInstallableOrExpr(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	if _, err := e.Eval(context.Background(), EvalParams{}); err == nil {
		t.Error("expected error when neither installable nor expr is given")
	}
}

func TestEval_ComposesExprArgs(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome(`{"x":1}`, "")}}
	e := newTestEngine(fake)

	res, err := e.Eval(context.Background(), EvalParams{Expr: "1 + 2", Apply: "x: x * 2"})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	want := "nix eval --json --expr 1 + 2 --apply x: x * 2"
	if got := argvString(fake.calls[0]); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
	m, ok := res.Value.(map[string]any)
	if !ok || m["x"] != float64(1) {
		t.Errorf("Value = %#v, want decoded JSON object", res.Value)
	}
}

func TestEval_FailurePreservesStderr(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{failOutcome(1, "error: attribute missing\n")}}
	e := newTestEngine(fake)

	res, err := e.Eval(context.Background(), EvalParams{Installable: ".#missing"})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if !strings.Contains(res.Stderr.Content, "attribute missing") {
		t.Errorf("Stderr = %q", res.Stderr.Content)
	}
}

func TestRun_ComposesArgsWithSeparator(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome("hi\n", "")}}
	e := newTestEngine(fake)

	_, err := e.Run(context.Background(), RunParams{Installable: ".#app", Args: []string{"--verbose", "input.txt"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "nix run .#app -- --verbose input.txt"
	if got := argvString(fake.calls[0]); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestRun_RejectsUnsafeArgs(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	_, err := e.Run(context.Background(), RunParams{Args: []string{"ok", "bad;arg"}})
	var verr *validate.Error
	if !errors.As(err, &verr) || verr.Reason != validate.UnsafeArgument {
		t.Fatalf("error = %v, want UnsafeArgument", err)
	}
}

func TestDevelopRun_RejectsEmptyCommands(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	_, err := e.DevelopRun(context.Background(), DevelopRunParams{})
	if err == nil || !strings.Contains(err.Error(), "must not be empty") {
		t.Fatalf("error = %v, want empty-commands rejection", err)
	}
}

func TestDevelopRun_WrapsCommandsInDevShell(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome("ok\n", "")}}
	e := newTestEngine(fake)

	res, err := e.DevelopRun(context.Background(), DevelopRunParams{
		Commands: []CommandEntry{{Command: "cargo", Args: []string{"test"}}},
	})
	if err != nil {
		t.Fatalf("DevelopRun: %v", err)
	}
	want := "nix develop . -c cargo test"
	if got := argvString(fake.calls[0]); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
	// The outcome shows the user's command, not the develop wrapper.
	if res.Results[0].Command != "cargo test" {
		t.Errorf("Command = %q, want %q", res.Results[0].Command, "cargo test")
	}
}

func TestDevelopRun_StopsAtFirstFailure(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{
		okOutcome("built\n", ""),
		failOutcome(1, "test failed\n"),
	}}
	e := newTestEngine(fake)

	res, err := e.DevelopRun(context.Background(), DevelopRunParams{
		Commands: []CommandEntry{
			{Command: "make"},
			{Command: "make", Args: []string{"test"}},
			{Command: "make", Args: []string{"deploy"}},
		},
	})
	if err != nil {
		t.Fatalf("DevelopRun: %v", err)
	}
	if res.Success {
		t.Error("Success = true, want false")
	}
	if len(res.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2; deploy must never run", len(res.Results))
	}
	if len(fake.calls) != 2 {
		t.Errorf("runner invoked %d times, want 2", len(fake.calls))
	}
	if res.Results[1].Success || *res.Results[1].ExitCode != 1 {
		t.Errorf("second result = %+v, want exit 1 failure", res.Results[1])
	}
}

func TestSearch_Paginates(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome(
		`{"legacyPackages.x86_64-linux.a":{"version":"1"},"legacyPackages.x86_64-linux.b":{"version":"2"},"legacyPackages.x86_64-linux.c":{"version":"3"}}`,
		"",
	)}}
	e := newTestEngine(fake)

	res, err := e.Search(context.Background(), SearchParams{Query: "tool", Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Page == nil {
		t.Fatal("Page = nil, want pagination metadata")
	}
	if res.Page.Total != 3 || !res.Page.HasMore {
		t.Errorf("Page = %+v, want total 3 with more", res.Page)
	}
	if got := argvString(fake.calls[0]); !strings.HasPrefix(got, "nix search --json nixpkgs tool") {
		t.Errorf("argv = %q", got)
	}
}

func TestHash_RejectsUnknownType(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	_, err := e.HashPath(context.Background(), HashParams{Path: "./src", HashType: "crc32"})
	if err == nil || !strings.Contains(err.Error(), "invalid hash type") {
		t.Fatalf("error = %v, want invalid hash type", err)
	}
}

func TestHashFile_ComposesArgs(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome("sha256-abc123=\n", "")}}
	e := newTestEngine(fake)

	res, err := e.HashFile(context.Background(), HashParams{Path: "./flake.lock"})
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	want := "nix hash file --sri --type sha256 ./flake.lock"
	if got := argvString(fake.calls[0]); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
	if res.Hash != "sha256-abc123=" {
		t.Errorf("Hash = %q, want trimmed stdout", res.Hash)
	}
}

func TestCachixPush_RequiresCache(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	_, err := e.CachixPush(context.Background(), CachixPushParams{
		StorePaths: []string{"/nix/store/abcdefghijklmnopqrstuvwxyz012345-pkg"},
	})
	if err == nil || !strings.Contains(err.Error(), "no default cache") {
		t.Fatalf("error = %v, want missing-cache rejection", err)
	}
}

func TestCachixPush_InjectsTokenViaEnv(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome("pushed\n", "")}}
	e := newTestEngine(fake)
	e.Config = &config.Config{Cachix: config.CachixConfig{
		AuthToken: "global-token",
		Caches:    map[string]config.CacheEntry{"work": {AuthToken: "work-token"}},
	}}

	path := "/nix/store/abcdefghijklmnopqrstuvwxyz012345-pkg"
	res, err := e.CachixPush(context.Background(), CachixPushParams{
		Cache:      "work",
		StorePaths: []string{path},
	})
	if err != nil {
		t.Fatalf("CachixPush: %v", err)
	}
	call := fake.calls[0]
	if call.Program != "cachix" {
		t.Errorf("Program = %q, want cachix", call.Program)
	}
	found := false
	for _, kv := range call.Env {
		if kv == "CACHIX_AUTH_TOKEN=work-token" {
			found = true
		}
		if strings.Contains(kv, "global-token") {
			t.Error("global token used despite a per-cache token")
		}
	}
	if !found {
		t.Error("per-cache token not injected into the environment")
	}
	for _, arg := range call.Args {
		if strings.Contains(arg, "token") {
			t.Errorf("token leaked into argv: %q", arg)
		}
	}
	if len(res.PathsPushed) != 1 || res.PathsPushed[0] != path {
		t.Errorf("PathsPushed = %v", res.PathsPushed)
	}
}

func TestPathInfo_PaginatesClosure(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome(
		`[{"path":"/nix/store/a"},{"path":"/nix/store/b"},{"path":"/nix/store/c"}]`,
		"",
	)}}
	e := newTestEngine(fake)

	res, err := e.PathInfo(context.Background(), PathInfoParams{
		Path:         "/nix/store/abcdefghijklmnopqrstuvwxyz012345-pkg",
		Closure:      true,
		ClosureLimit: 2,
	})
	if err != nil {
		t.Fatalf("PathInfo: %v", err)
	}
	if res.Page == nil || res.Page.Total != 3 || !res.Page.HasMore {
		t.Errorf("Page = %+v, want total 3 with more", res.Page)
	}
	kept, ok := res.PathInfo.([]json.RawMessage)
	if !ok || len(kept) != 2 {
		t.Errorf("PathInfo = %#v, want 2 raw entries", res.PathInfo)
	}
}

func TestDerivationShow_Summary(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome(
		`{"/nix/store/aaa-hello.drv":{"name":"hello","outputs":{"out":{}},"inputDrvs":{"/nix/store/x.drv":{},"/nix/store/y.drv":{}}}}`,
		"",
	)}}
	e := newTestEngine(fake)

	res, err := e.DerivationShow(context.Background(), DerivationShowParams{SummaryOnly: true})
	if err != nil {
		t.Fatalf("DerivationShow: %v", err)
	}
	if len(res.Summary) != 1 {
		t.Fatalf("len(Summary) = %d, want 1", len(res.Summary))
	}
	s := res.Summary[0]
	if s.Name != "hello" || s.InputCount != 2 || len(s.Outputs) != 1 || s.Outputs[0] != "out" {
		t.Errorf("Summary = %+v", s)
	}
}

func TestStoreLs_RejectsPathOutsideStore(t *testing.T) {
	e := newTestEngine(&fakeRunner{})
	_, err := e.StoreLs(context.Background(), StoreLsParams{Path: t.TempDir()})
	var verr *validate.Error
	if !errors.As(err, &verr) || verr.Reason != validate.InvalidStoreSubpath {
		t.Fatalf("error = %v, want InvalidStoreSubpath", err)
	}
}

func TestFhSearch_ComposesArgs(t *testing.T) {
	fake := &fakeRunner{script: []*runner.Outcome{okOutcome(`[{"org":"nixos"}]`, "")}}
	e := newTestEngine(fake)

	res, err := e.FhSearch(context.Background(), FhSearchParams{Query: "nixpkgs", MaxResults: 5})
	if err != nil {
		t.Fatalf("FhSearch: %v", err)
	}
	want := "fh search --json nixpkgs --max-results 5"
	if got := argvString(fake.calls[0]); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
	if !res.Success {
		t.Error("Success = false, want true")
	}
}
