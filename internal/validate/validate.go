// Package validate classifies caller-supplied strings before any process
// is spawned. All checks are allow-list grammars except the shell
// metacharacter block-list, which is defense in depth: commands are always
// executed directly, so metacharacters are rejected rather than escaped.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason is a stable identifier for a validation failure. Callers branch
// on these codes rather than parsing prose.
type Reason string

const (
	InvalidReference    Reason = "InvalidReference"
	InvalidPath         Reason = "InvalidPath"
	UnsafeArgument      Reason = "UnsafeArgument"
	InvalidExpression   Reason = "InvalidExpression"
	InvalidAttrPath     Reason = "InvalidAttrPath"
	InvalidCacheName    Reason = "InvalidCacheName"
	InvalidStorePath    Reason = "InvalidStorePath"
	InvalidStoreSubpath Reason = "InvalidStoreSubpath"
)

// Error is a validation failure carrying the offending value.
type Error struct {
	Reason Reason
	Value  string
}

func (e *Error) Error() string {
	switch e.Reason {
	case InvalidReference:
		return fmt.Sprintf("invalid flake reference: %q", e.Value)
	case InvalidPath:
		return fmt.Sprintf("invalid path: %q", e.Value)
	case UnsafeArgument:
		return fmt.Sprintf("shell metacharacters not allowed: %q. Retry with the metacharacters removed — use separate array entries or tool parameters instead of shell operators", e.Value)
	case InvalidExpression:
		return fmt.Sprintf("nix expression contains invalid characters (null bytes): %q", e.Value)
	case InvalidAttrPath:
		return fmt.Sprintf("invalid attribute path: %q", e.Value)
	case InvalidCacheName:
		return fmt.Sprintf("invalid cache name: %q", e.Value)
	case InvalidStorePath:
		return fmt.Sprintf("invalid store path: %q", e.Value)
	case InvalidStoreSubpath:
		return fmt.Sprintf("invalid store subpath: %q", e.Value)
	}
	return fmt.Sprintf("invalid input: %q", e.Value)
}

func fail(reason Reason, value string) error {
	return &Error{Reason: reason, Value: value}
}

var (
	flakeRefPattern  = regexp.MustCompile(`^[a-zA-Z0-9._\-/:#+]+$`)
	attrPathPattern  = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)
	shellMetaPattern = regexp.MustCompile("[;&|`$(){}\\\\<>!]")

	// Cachix cache names: alphanumeric with hyphens, must start alphanumeric.
	cacheNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-]*$`)

	// Nix store paths: /nix/store/<32-char-hash>-<name>.
	storePathPattern = regexp.MustCompile(`^/nix/store/[a-z0-9]{32}-[a-zA-Z0-9._\-]+$`)

	// Store subpaths allow dotfiles; . and .. segments are rejected separately.
	storeSubpathPattern = regexp.MustCompile(`^/nix/store/[a-z0-9]{32}-[a-zA-Z0-9._\-]+(/[a-zA-Z0-9._\-]+)*$`)

	pathPattern = regexp.MustCompile(`^[a-zA-Z0-9._\-/~]+$`)
)

// Installable checks a flake installable reference (e.g. "nixpkgs#hello",
// ".#packages.x86_64-linux.default").
func Installable(v string) error {
	if !flakeRefPattern.MatchString(v) {
		return fail(InvalidReference, v)
	}
	return nil
}

// FlakeRef checks a flake reference (same grammar as Installable).
func FlakeRef(v string) error {
	if !flakeRefPattern.MatchString(v) {
		return fail(InvalidReference, v)
	}
	return nil
}

// AttrPath checks a dotted attribute path.
func AttrPath(v string) error {
	if !attrPathPattern.MatchString(v) {
		return fail(InvalidAttrPath, v)
	}
	return nil
}

// NoShellMeta rejects any string containing a shell metacharacter
// (sequencing, piping, substitution, redirection, grouping, escaping).
func NoShellMeta(v string) error {
	if shellMetaPattern.MatchString(v) {
		return fail(UnsafeArgument, v)
	}
	return nil
}

// Args applies NoShellMeta to every element, failing on the first
// offending argument.
func Args(args []string) error {
	for _, a := range args {
		if err := NoShellMeta(a); err != nil {
			return err
		}
	}
	return nil
}

// Expression checks a Nix expression destined for --expr or --apply.
//
// Commands are spawned directly (no shell), so Nix syntax characters like
// $, {} and () are passed as literal argv bytes. Only NUL is rejected,
// since it cannot appear in argv.
func Expression(v string) error {
	if strings.ContainsRune(v, 0) {
		return fail(InvalidExpression, v)
	}
	return nil
}

// CacheName checks a Cachix cache name.
func CacheName(v string) error {
	if !cacheNamePattern.MatchString(v) {
		return fail(InvalidCacheName, v)
	}
	return nil
}

// StorePath checks a full /nix/store path.
func StorePath(v string) error {
	if !storePathPattern.MatchString(v) {
		return fail(InvalidStorePath, v)
	}
	return nil
}

// StorePaths applies StorePath to every element.
func StorePaths(paths []string) error {
	for _, p := range paths {
		if err := StorePath(p); err != nil {
			return err
		}
	}
	return nil
}

// StoreSubpath checks a path inside a store entry. Dotfiles are allowed;
// "." and ".." segments are not.
func StoreSubpath(v string) error {
	if !storeSubpathPattern.MatchString(v) {
		return fail(InvalidStoreSubpath, v)
	}
	for _, seg := range strings.Split(v, "/") {
		if seg == "." || seg == ".." {
			return fail(InvalidStoreSubpath, v)
		}
	}
	return nil
}

// Path checks a plain filesystem path (absolute, relative, or ~-prefixed).
func Path(v string) error {
	if !pathPattern.MatchString(v) {
		return fail(InvalidPath, v)
	}
	return nil
}
