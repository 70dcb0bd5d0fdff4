package gitops

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/msolo/mcp-gas/gitapi"
	"github.com/msolo/mcp-gas/internal/lock"
	"github.com/msolo/mcp-gas/internal/logging"
	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/pathfilter"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/worktree"
)

const defaultLockTimeout = 30 * time.Second

// Manager wires the Lock Manager, the session/primary worktree resolver,
// and the Remote client together and runs strategies through the nine-phase
// pipeline (spec §4.2).
type Manager struct {
	Locks    *lock.Manager
	Resolver worktree.Resolver
	Client   remote.Client
}

func New(locks *lock.Manager, resolver worktree.Resolver, client remote.Client) *Manager {
	return &Manager{Locks: locks, Resolver: resolver, Client: client}
}

// Execute runs strategy through the full write pipeline and returns its
// result, or a wrapped+rolled-back error.
func (m *Manager) Execute(ctx context.Context, strategy Strategy, p Params) (*Result, error) {
	// Phase: intra/cross-process mutual exclusion (P1).
	handle, err := m.Locks.Acquire(p.ScriptID, strategy.Name(), defaultLockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	// Phase 1: resolve path.
	dir, branch, err := m.Resolver.Resolve(ctx, p.ScriptID, p.SessionToken)
	if err != nil {
		return nil, mcperr.IO("failed to resolve working directory", err)
	}
	wd := gitapi.NewWorkDir(dir)

	// Phase 2: ensure repo. The resolver already ran git init on first use;
	// this is a cheap idempotent confirmation for a worktree that might have
	// been removed by something else between calls.
	if err := wd.Init(); err != nil {
		return nil, mcperr.IO("failed to ensure repository", err)
	}

	env := &Env{Client: m.Client, ScriptID: p.ScriptID, ExpectedHash: p.ExpectedHash, Force: p.Force, ChangeReason: p.ChangeReason}

	// Phase 3: compute (includes strategy-internal conflict detection).
	changes, err := strategy.ComputeChanges(ctx, env)
	if err != nil {
		return nil, err
	}

	paths, err := m.writeLocal(dir, changes)
	if err != nil {
		return nil, m.rollback(ctx, strategy, env, wd, nil, err)
	}

	if err := wd.Add(paths); err != nil {
		return nil, m.rollback(ctx, strategy, env, wd, paths, err)
	}

	staged, err := wd.StagedFiles()
	if err != nil {
		return nil, m.rollback(ctx, strategy, env, wd, paths, err)
	}
	if len(staged) == 0 {
		if err := m.validateEmptyStageIsDeleteOnly(dir, changes); err != nil {
			return nil, m.rollback(ctx, strategy, env, wd, paths, err)
		}
	}

	// Phase 6: hook read-back.
	validated, err := m.readBackHooks(dir, changes)
	if err != nil {
		return nil, m.rollback(ctx, strategy, env, wd, paths, err)
	}

	if p.Mode == ModeLocalOnly {
		return m.respond(wd, branch, nil)
	}

	// Phase 7: apply to Remote.
	applied, err := strategy.ApplyChanges(ctx, env, validated)
	if err != nil {
		return nil, m.rollback(ctx, strategy, env, wd, paths, err)
	}

	// Phase 8: reconcile local with wrapped bytes.
	reconciledPaths, err := m.reconcileLocal(dir, applied)
	if err != nil {
		// Re-stage failure is explicitly non-fatal (spec §4.2 step 8); a
		// write failure writing the wrapped bytes back, however, means local
		// no longer matches Remote (I2) and must roll back.
		return nil, m.rollback(ctx, strategy, env, wd, paths, err)
	}
	if err := wd.Add(reconciledPaths); err != nil {
		logging.Warningf("non-fatal: failed to re-stage reconciled files for %s: %s", p.ScriptID, err)
	}

	return m.respond(wd, branch, applied)
}

func (m *Manager) respond(wd *gitapi.WorkDir, branch string, applied []AppliedChange) (*Result, error) {
	staged, err := wd.StagedFiles()
	if err != nil {
		return nil, mcperr.IO("failed to query status", err)
	}
	action := "commit"
	if len(staged) == 0 {
		action = "finish"
	}
	return &Result{
		Applied: applied,
		Hint: GitHint{
			Branch:            branch,
			UncommittedCount:  len(staged),
			RecommendedAction: action,
		},
	}, nil
}

// writeLocal implements phase 4: write unwrapped content to disk, skipping
// git-breadcrumb paths, returning the set of on-disk paths touched.
func (m *Manager) writeLocal(dir string, changes []Change) ([]string, error) {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		rel := localPath(c.Kind, c.Name)
		if pathfilter.IsBreadcrumb(rel) {
			continue
		}
		abs := filepath.Join(dir, rel)
		if c.Delete {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return paths, mcperr.IO("failed to remove local file", err)
			}
			paths = append(paths, rel)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return paths, mcperr.IO("failed to create parent directory", err)
		}
		if err := os.WriteFile(abs, []byte(c.Content), 0644); err != nil {
			return paths, mcperr.IO("failed to write local file", err)
		}
		paths = append(paths, rel)
	}
	return paths, nil
}

// validateEmptyStageIsDeleteOnly implements phase 5's guard: an empty
// `diff --cached` is only valid for a delete strategy whose targeted files
// genuinely don't exist locally anymore.
func (m *Manager) validateEmptyStageIsDeleteOnly(dir string, changes []Change) error {
	for _, c := range changes {
		if !c.Delete {
			return mcperr.Fatal("staging produced no changes for a non-delete operation", nil)
		}
		abs := filepath.Join(dir, localPath(c.Kind, c.Name))
		if _, err := os.Stat(abs); err == nil {
			return mcperr.Fatal("staging produced no changes but deleted file still exists locally", nil)
		}
	}
	return nil
}

// readBackHooks implements phase 6: re-read each written (non-delete) file
// and adopt any bytes that changed since writeLocal as the user text to
// apply remotely. The daemon installs no git hooks of its own; this exists
// for whatever the operator's own working copy does to a file after it
// lands on disk (an editor's format-on-save, a pre-commit hook the
// operator maintains independently of this module) so that a local
// mutation it didn't originate still makes it to the Remote instead of
// being silently overwritten by reconcileLocal's phase 8.
func (m *Manager) readBackHooks(dir string, changes []Change) ([]Change, error) {
	out := make([]Change, len(changes))
	copy(out, changes)
	for i, c := range out {
		if c.Delete {
			continue
		}
		abs := filepath.Join(dir, localPath(c.Kind, c.Name))
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, mcperr.IO("failed to read back local file", err)
		}
		if string(data) != c.Content {
			logging.Infof("hook modified %s before apply", c.Name)
			out[i].Content = string(data)
		}
	}
	return out, nil
}

// reconcileLocal implements phase 8: overwrite local files with the exact
// wrapped bytes sent to the Remote, preserving invariant I2.
func (m *Manager) reconcileLocal(dir string, applied []AppliedChange) ([]string, error) {
	paths := make([]string, 0, len(applied))
	for _, a := range applied {
		rel := localPath(a.Kind, a.Name)
		if pathfilter.IsBreadcrumb(rel) {
			continue
		}
		abs := filepath.Join(dir, rel)
		if a.Delete {
			paths = append(paths, rel)
			continue
		}
		if err := os.WriteFile(abs, []byte(a.Content), 0644); err != nil {
			return paths, mcperr.IO("failed to reconcile local file with wrapped content", err)
		}
		paths = append(paths, rel)
	}
	return paths, nil
}

// rollback implements the spec §4.2 rollback branch: unstage whatever was
// staged, ask the strategy to undo any partial Remote effect, and wrap the
// cause.
func (m *Manager) rollback(ctx context.Context, strategy Strategy, env *Env, wd *gitapi.WorkDir, paths []string, cause error) error {
	if len(paths) > 0 {
		if err := wd.ResetHead(paths); err != nil {
			logging.Warningf("rollback: failed to unstage %v: %s", paths, err)
		}
	}
	if err := strategy.Rollback(ctx, env); err != nil {
		logging.Warningf("rollback: strategy rollback failed: %s", err)
	}
	return mcperr.RolledBack(cause)
}
