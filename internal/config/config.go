// Package config loads the daemon's own configuration: lock directory,
// worktree roots, Remote endpoint, OAuth client id/scopes, and rsync
// exclude patterns (spec §1a, new). Grounded on
// cmd/git-preflight/git-preflight.go's readConfig/validateConfig: a JSONC
// file decoded with DisallowUnknownFields so a typo'd key fails loudly
// instead of silently falling back to a default.
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/msolo/jsonc"
)

// Config is the daemon's on-disk configuration, loaded from
// ~/.mcp-gas/config.jsonc (spec §1a).
type Config struct {
	// LockDir is where per-scriptId lock records live (spec §6
	// "~/.auth/mcp-gas/locks/"). Defaults to ~/.auth/mcp-gas/locks.
	LockDir string `json:"lockDir"`

	// WorktreeRoot is the parent of gas-repos/ and .mcp-gas/worktrees/
	// (spec §6 persistent state layout). Defaults to the user's home.
	WorktreeRoot string `json:"worktreeRoot"`

	// RemoteEndpoint is the base URL of the Remote's API.
	RemoteEndpoint string `json:"remoteEndpoint"`

	// OAuthClientID and OAuthScopes configure the PKCE Acquirer (spec §4.6).
	OAuthClientID string   `json:"oauthClientId"`
	OAuthScopes   []string `json:"oauthScopes"`

	// OAuthAuthURL and OAuthTokenURL are the provider's authorization and
	// token endpoints.
	OAuthAuthURL  string `json:"oauthAuthUrl"`
	OAuthTokenURL string `json:"oauthTokenUrl"`

	// RedirectPort is the loopback port the OAuth callback listens on.
	// Defaults to 3000 (spec §4.6 step 3).
	RedirectPort int `json:"redirectPort"`

	// RsyncExcludePatterns are extra glob patterns (beyond the fixed set in
	// spec §4.5 step 1) applied when walking the local tree.
	RsyncExcludePatterns []string `json:"rsyncExcludePatterns"`

	// MetricsEnabled allows the daemon's `metrics` subcommand to serve
	// internal/lock's Prometheus handler (spec SPEC_FULL.md §4.7).
	MetricsEnabled bool `json:"metricsEnabled"`
}

// Default returns the configuration used when no config file exists, based
// on home (typically os.UserHomeDir()).
func Default(home string) *Config {
	return &Config{
		LockDir:       filepath.Join(home, ".auth", "mcp-gas", "locks"),
		WorktreeRoot:  home,
		OAuthAuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		OAuthTokenURL: "https://oauth2.googleapis.com/token",
		OAuthScopes: []string{
			"projects", "processes", "deployments", "scriptapp",
			"userinfo.email", "userinfo.profile",
		},
		RedirectPort: 3000,
	}
}

// Load reads and validates the config file at path, filling any unset
// field from Default(home). Returns Default(home) unchanged if path
// doesn't exist — an operator need not create a config file to run the
// daemon at all.
func Load(configPath, home string) (*Config, error) {
	cfg := Default(home)
	f, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("opening config %s: %w", configPath, err)
	}
	defer f.Close()

	dec := jsonc.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", configPath, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded patterns are well-formed globs and required
// fields are present, mirroring git-preflight's validateConfig/
// validateTrigger shape.
func Validate(cfg *Config) error {
	if cfg.LockDir == "" {
		return fmt.Errorf("config: lockDir must not be empty")
	}
	if cfg.WorktreeRoot == "" {
		return fmt.Errorf("config: worktreeRoot must not be empty")
	}
	if cfg.RedirectPort <= 0 || cfg.RedirectPort > 65535 {
		return fmt.Errorf("config: redirectPort %d out of range", cfg.RedirectPort)
	}
	for _, pat := range cfg.RsyncExcludePatterns {
		if _, err := path.Match(pat, ""); err != nil {
			return fmt.Errorf("config: invalid rsyncExcludePatterns entry %q: %w", pat, err)
		}
	}
	return nil
}

// DefaultPath returns the conventional config file location under home.
func DefaultPath(home string) string {
	return filepath.Join(home, ".mcp-gas", "config.jsonc")
}
