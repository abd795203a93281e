package nix

import (
	"context"
	"errors"
	"strings"

	"github.com/deixis/chix/internal/limit"
	"github.com/deixis/chix/internal/validate"
)

// CachixPushParams configures pushing store paths to a binary cache.
type CachixPushParams struct {
	Cache      string // defaults to the configured default cache
	StorePaths []string
}

// CachixPushResult reports which paths were pushed.
type CachixPushResult struct {
	Success     bool          `json:"success"`
	PathsPushed []string      `json:"paths_pushed"`
	Stdout      string        `json:"stdout"`
	Stderr      limit.Limited `json:"stderr"`
}

// CachixPush uploads store paths to a cachix cache. The auth token is
// resolved from config (per-cache, then global, then the environment)
// and passed to the subprocess via its environment, never via argv.
func (e *Engine) CachixPush(ctx context.Context, p CachixPushParams) (*CachixPushResult, error) {
	cache := p.Cache
	if cache == "" {
		cache = e.Config.DefaultCache()
		if cache == "" {
			return nil, errors.New("no cache name provided and no default cache configured")
		}
	}
	if err := validate.CacheName(cache); err != nil {
		return nil, err
	}
	if len(p.StorePaths) == 0 {
		return nil, errors.New("no store paths provided")
	}
	if err := validate.StorePaths(p.StorePaths); err != nil {
		return nil, err
	}

	var env []string
	if token := e.Config.CachixToken(cache); token != "" {
		env = append(env, "CACHIX_AUTH_TOKEN="+token)
	}

	args := append([]string{"push", cache}, p.StorePaths...)
	out, err := e.runCachix(ctx, env, args...)
	if err != nil {
		return nil, err
	}

	pushed := p.StorePaths
	if !out.Succeeded {
		pushed = nil
	}
	return &CachixPushResult{
		Success:     out.Succeeded,
		PathsPushed: pushed,
		Stdout:      out.Stdout,
		Stderr:      limit.Stderr(out.Stderr),
	}, nil
}

// CachixUseResult reports configuring a cache as a substituter.
type CachixUseResult struct {
	Success bool          `json:"success"`
	Cache   string        `json:"cache_name"`
	Stdout  string        `json:"stdout"`
	Stderr  limit.Limited `json:"stderr"`
}

// CachixUse adds a cache to the local nix substituter configuration.
func (e *Engine) CachixUse(ctx context.Context, cache string) (*CachixUseResult, error) {
	if err := validate.CacheName(cache); err != nil {
		return nil, err
	}
	out, err := e.runCachix(ctx, nil, "use", cache)
	if err != nil {
		return nil, err
	}
	return &CachixUseResult{
		Success: out.Succeeded,
		Cache:   cache,
		Stdout:  out.Stdout,
		Stderr:  limit.Stderr(out.Stderr),
	}, nil
}

// CachixStatusResult reports the local cachix authentication state.
type CachixStatusResult struct {
	Success       bool          `json:"success"`
	Authenticated bool          `json:"authenticated"`
	Stdout        string        `json:"stdout"`
	Stderr        limit.Limited `json:"stderr"`
}

// CachixStatus probes authentication via cachix authtoken.
func (e *Engine) CachixStatus(ctx context.Context) (*CachixStatusResult, error) {
	out, err := e.runCachix(ctx, nil, "authtoken")
	if err != nil {
		return nil, err
	}
	authenticated := out.Succeeded ||
		strings.Contains(out.Stdout, "token") ||
		!strings.Contains(out.Stderr, "not authenticated")
	return &CachixStatusResult{
		Success:       true,
		Authenticated: authenticated,
		Stdout:        out.Stdout,
		Stderr:        limit.Stderr(out.Stderr),
	}, nil
}
