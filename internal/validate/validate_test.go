package validate

import (
	"errors"
	"testing"
)

func wantReason(t *testing.T, err error, reason Reason) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", reason)
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if verr.Reason != reason {
		t.Errorf("Reason = %s, want %s", verr.Reason, reason)
	}
}

func TestInstallable_Valid(t *testing.T) {
	for _, v := range []string{
		".#default",
		"nixpkgs#hello",
		"github:NixOS/nixpkgs#hello",
		".#packages.x86_64-linux.default",
	} {
		if err := Installable(v); err != nil {
			t.Errorf("Installable(%q) = %v, want nil", v, err)
		}
	}
}

func TestInstallable_Invalid(t *testing.T) {
	for _, v := range []string{
		"$(malicious)",
		"; rm -rf /",
		"hello`whoami`",
		"",
	} {
		wantReason(t, Installable(v), InvalidReference)
	}
}

func TestNoShellMeta(t *testing.T) {
	if err := NoShellMeta("hello"); err != nil {
		t.Errorf("NoShellMeta(hello) = %v, want nil", err)
	}
	wantReason(t, NoShellMeta("hello; rm -rf"), UnsafeArgument)
	wantReason(t, NoShellMeta("$(cmd)"), UnsafeArgument)
	wantReason(t, NoShellMeta("foo | bar"), UnsafeArgument)
	wantReason(t, NoShellMeta("a > b"), UnsafeArgument)
	wantReason(t, NoShellMeta(`back\slash`), UnsafeArgument)
}

func TestArgs_NamesFirstOffender(t *testing.T) {
	err := Args([]string{"fine", "also-fine", "bad;arg", "never|checked"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if verr.Value != "bad;arg" {
		t.Errorf("Value = %q, want the first offending argument", verr.Value)
	}
}

func TestArgs_AllClean(t *testing.T) {
	if err := Args([]string{"--flag", "value", "path/to/file"}); err != nil {
		t.Errorf("Args = %v, want nil", err)
	}
	if err := Args(nil); err != nil {
		t.Errorf("Args(nil) = %v, want nil", err)
	}
}

func TestExpression(t *testing.T) {
	// Nix syntax characters are legitimate expression content.
	for _, v := range []string{
		"{ x = 1; }",
		"builtins.attrNames { a = 1; b = 2; }",
		"let x = 1; in x",
		"(import <nixpkgs> {}).hello",
		`"hello ${name}"`,
		"x: x + 1",
		"a && b || c",
		"map (x: x * 2) [1 2 3]",
	} {
		if err := Expression(v); err != nil {
			t.Errorf("Expression(%q) = %v, want nil", v, err)
		}
	}
	wantReason(t, Expression("hello\x00world"), InvalidExpression)
}

func TestCacheName(t *testing.T) {
	for _, v := range []string{"mycache", "my-cache", "cache123"} {
		if err := CacheName(v); err != nil {
			t.Errorf("CacheName(%q) = %v, want nil", v, err)
		}
	}
	wantReason(t, CacheName("-invalid"), InvalidCacheName)
	wantReason(t, CacheName(""), InvalidCacheName)
	wantReason(t, CacheName("cache;injection"), InvalidCacheName)
}

func TestStorePath(t *testing.T) {
	ok := "/nix/store/aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa-hello"
	if err := StorePath(ok); err != nil {
		t.Errorf("StorePath(%q) = %v, want nil", ok, err)
	}
	wantReason(t, StorePath("/tmp/not-store"), InvalidStorePath)
	wantReason(t, StorePath("/nix/store/short-hash"), InvalidStorePath)
}

func TestStoreSubpath(t *testing.T) {
	base := "/nix/store/aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa-hello"
	for _, v := range []string{
		base,
		base + "/bin/hello",
		base + "/.config/settings",
	} {
		if err := StoreSubpath(v); err != nil {
			t.Errorf("StoreSubpath(%q) = %v, want nil", v, err)
		}
	}
	wantReason(t, StoreSubpath("/tmp/not-store"), InvalidStoreSubpath)
	wantReason(t, StoreSubpath(base+"/../../etc/passwd"), InvalidStoreSubpath)
	wantReason(t, StoreSubpath(base+"/./bin"), InvalidStoreSubpath)
	wantReason(t, StoreSubpath(base+"/bin;whoami"), InvalidStoreSubpath)
}

func TestPath(t *testing.T) {
	for _, v := range []string{"/home/user/result", "./result", "~/project/result"} {
		if err := Path(v); err != nil {
			t.Errorf("Path(%q) = %v, want nil", v, err)
		}
	}
	wantReason(t, Path("/path;injection"), InvalidPath)
	wantReason(t, Path("/path$(cmd)"), InvalidPath)
}
