// Package worktree resolves a (scriptId, sessionToken) pair to a concrete
// local working directory, creating the repo/branch on first use but never
// deleting one (spec §4.8, new). Generalized from gitapi's original
// getGitWorkdir()/gitWorkDir idiom of "find the repo containing cwd" to
// "resolve or create the repo for a given id".
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/msolo/mcp-gas/gitapi"
	"github.com/msolo/mcp-gas/internal/logging"
)

// Resolver maps a scriptId, optionally scoped to a session, to the working
// directory it should be written under.
type Resolver interface {
	Resolve(ctx context.Context, scriptID string, sessionToken string) (dir string, branch string, err error)
}

// FS is the default Resolver, rooted at a home directory the way the
// original daemon lays out ~/gas-repos and ~/.mcp-gas.
type FS struct {
	Home string
}

// NewFS creates a Resolver rooted at home (typically os.UserHomeDir()).
func NewFS(home string) *FS {
	return &FS{Home: home}
}

func (f *FS) projectDir(scriptID string) string {
	return filepath.Join(f.Home, "gas-repos", "project-"+scriptID)
}

func (f *FS) sessionDir(scriptID, sessionToken string) string {
	return filepath.Join(f.Home, ".mcp-gas", "worktrees", scriptID, sessionToken)
}

// Resolve implements Resolver.
func (f *FS) Resolve(ctx context.Context, scriptID string, sessionToken string) (string, string, error) {
	if sessionToken == "" {
		return f.resolvePrimary(scriptID)
	}
	return f.resolveSession(scriptID, sessionToken)
}

func (f *FS) resolvePrimary(scriptID string) (string, string, error) {
	dir := f.projectDir(scriptID)
	wd := gitapi.NewWorkDir(dir)
	if err := wd.Init(); err != nil {
		return "", "", err
	}
	branch, err := wd.CurrentBranch()
	if err != nil {
		return "", "", err
	}
	if branch == "master" || branch == "main" || branch == "" {
		feature := fmt.Sprintf("llm-feature-%d", time.Now().UnixNano())
		if err := wd.CreateBranch(feature); err != nil {
			return "", "", err
		}
		branch = feature
	}
	return dir, branch, nil
}

func (f *FS) resolveSession(scriptID, sessionToken string) (string, string, error) {
	primaryDir, _, err := f.resolvePrimary(scriptID)
	if err != nil {
		return "", "", err
	}
	dir := f.sessionDir(scriptID, sessionToken)
	branch := "session/" + sessionToken
	if _, err := os.Stat(dir); err == nil {
		return dir, branch, nil
	} else if !os.IsNotExist(err) {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return "", "", err
	}
	primary := gitapi.NewWorkDir(primaryDir)
	logging.Infof("creating session worktree for %s/%s", scriptID, sessionToken)
	if primary.BranchExists(branch) {
		if err := primary.AddWorktreeExistingBranch(dir, branch); err != nil {
			return "", "", err
		}
		return dir, branch, nil
	}
	if err := primary.AddWorktree(dir, branch); err != nil {
		return "", "", err
	}
	return dir, branch, nil
}
