package nix

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// HashParams configures a nix hash invocation.
type HashParams struct {
	Path     string
	HashType string // sha256 (default), sha512, sha1 or md5
	SRI      *bool  // SRI format; defaults to true
	Base32   bool   // nix base32 format; overrides SRI
}

// HashResult carries the computed hash.
type HashResult struct {
	Success bool          `json:"success"`
	Hash    string        `json:"hash"`
	Stderr  limit.Limited `json:"stderr"`
}

// HashPath hashes a path recursively in NAR serialisation, the form
// used for fixed-output derivations.
func (e *Engine) HashPath(ctx context.Context, p HashParams) (*HashResult, error) {
	return e.hash(ctx, "path", p)
}

// HashFile hashes the flat contents of a single file.
func (e *Engine) HashFile(ctx context.Context, p HashParams) (*HashResult, error) {
	return e.hash(ctx, "file", p)
}

var validHashTypes = []string{"sha256", "sha512", "sha1", "md5"}

func (e *Engine) hash(ctx context.Context, mode string, p HashParams) (*HashResult, error) {
	if err := validate.Path(p.Path); err != nil {
		return nil, err
	}

	hashType := p.HashType
	if hashType == "" {
		hashType = "sha256"
	}
	valid := false
	for _, t := range validHashTypes {
		if hashType == t {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("invalid hash type: %s (must be one of %s)",
			hashType, strings.Join(validHashTypes, ", "))
	}

	args := []string{"hash", mode}
	if p.Base32 {
		args = append(args, "--base32")
	} else if p.SRI == nil || *p.SRI {
		args = append(args, "--sri")
	}
	args = append(args, "--type", hashType, p.Path)

	out, err := e.runNix(ctx, "", args...)
	if err != nil {
		return nil, err
	}
	return &HashResult{
		Success: out.Succeeded,
		Hash:    strings.TrimSpace(out.Stdout),
		Stderr:  limit.Stderr(out.Stderr),
	}, nil
}
