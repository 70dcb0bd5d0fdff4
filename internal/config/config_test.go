package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(filepath.Join(home, "nonexistent.jsonc"), home)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RedirectPort != 3000 {
		t.Fatalf("expected default redirectPort 3000, got %d", cfg.RedirectPort)
	}
	if cfg.WorktreeRoot != home {
		t.Fatalf("expected default worktreeRoot %q, got %q", home, cfg.WorktreeRoot)
	}
}

func TestLoadOverridesDefaultsAndToleratesComments(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.jsonc")
	body := `{
  // operator notes are fine in this format
  "remoteEndpoint": "https://script.google.com",
  "oauthClientId": "test-client-id",
  "rsyncExcludePatterns": ["*.bak"]
}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, home)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RemoteEndpoint != "https://script.google.com" {
		t.Fatalf("unexpected remoteEndpoint: %q", cfg.RemoteEndpoint)
	}
	if cfg.OAuthClientID != "test-client-id" {
		t.Fatalf("unexpected oauthClientId: %q", cfg.OAuthClientID)
	}
	if cfg.RedirectPort != 3000 {
		t.Fatalf("expected untouched default redirectPort, got %d", cfg.RedirectPort)
	}
	if len(cfg.RsyncExcludePatterns) != 1 || cfg.RsyncExcludePatterns[0] != "*.bak" {
		t.Fatalf("unexpected rsyncExcludePatterns: %v", cfg.RsyncExcludePatterns)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.jsonc")
	if err := os.WriteFile(path, []byte(`{"typoedField": true}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, home); err == nil {
		t.Fatal("expected an error for an unknown config field")
	}
}

func TestValidateRejectsBadRedirectPort(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.RedirectPort = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for redirectPort 0")
	}
}

func TestValidateRejectsBadGlobPattern(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.RsyncExcludePatterns = []string{"[invalid"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected an error for a malformed glob pattern")
	}
}
