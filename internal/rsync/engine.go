// Package rsync implements the stateless, unidirectional Rsync Engine
// (spec §4.5): a fresh three-way diff on every call, no server-side plan
// storage, applied atomically to whichever side is the destination.
//
// Grounded on cmd/git-sync/sync.go's fullSync()/getChangesViaStatus shape:
// collection of "what changed" (here the local listing, then the Remote
// listing, one after the other), then a single apply step — generalized from "ship a git diff to a remote host via
// rsync(1)" to "diff a local tree against the Remote's flat file listing
// and apply the result directly", since the Remote has no rsync protocol
// of its own to shell out to.
package rsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/msolo/mcp-gas/gitapi"
	"github.com/msolo/mcp-gas/internal/gitops"
	"github.com/msolo/mcp-gas/internal/lock"
	"github.com/msolo/mcp-gas/internal/logging"
	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/worktree"
	"github.com/msolo/mcp-gas/internal/wrapper"
)

const defaultLockTimeout = 30 * time.Second

// Engine runs rsync operations under the Lock Manager for the target
// scriptId, the same lock a write pipeline run takes, so the two serialize
// (spec §4.5 "Concurrency").
type Engine struct {
	Locks    *lock.Manager
	Resolver worktree.Resolver
	Client   remote.Client
}

func New(locks *lock.Manager, resolver worktree.Resolver, client remote.Client) *Engine {
	return &Engine{Locks: locks, Resolver: resolver, Client: client}
}

// Request is the `rsync` tool's input (spec §6).
type Request struct {
	ScriptID         string
	SessionToken     string
	Operation        Operation
	Dryrun           bool
	ConfirmDeletions bool
	Force            bool
	ExcludePatterns  []string
}

// Result covers both the dryrun preview and the execution outcome; Ops and
// Summary are always populated, NextStep only for a preview, and
// RecoveryCommand only after a real apply.
type Result struct {
	Summary         Summary
	Ops             []FileOp
	NextStep        string `json:"nextStep,omitempty"`
	RecoveryCommand string `json:"recoveryCommand,omitempty"`
}

// Run executes req under the project's lock and returns its preview or
// execution result.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	handle, err := e.Locks.Acquire(req.ScriptID, "rsync", defaultLockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	dir, _, err := e.Resolver.Resolve(ctx, req.ScriptID, req.SessionToken)
	if err != nil {
		return nil, mcperr.IO("failed to resolve working directory", err)
	}

	manifestPath := filepath.Join(dir, ManifestName)
	manifest, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, mcperr.IO("failed to read manifest", err)
	}
	isBootstrap := manifest == nil

	local, err := walkLocal(dir, req.ExcludePatterns)
	if err != nil {
		return nil, mcperr.IO("failed to list local files", err)
	}
	remoteFiles, err := e.Client.GetProjectContent(ctx, req.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}

	ops := diff(req.Operation, local, remoteFiles)
	if isBootstrap {
		// P7: a bootstrap sync never deletes on either side, regardless of
		// confirmDeletions.
		ops = filterOutDeletes(ops)
	}
	summary := summarize(ops, isBootstrap)

	if req.Dryrun {
		nextStep := fmt.Sprintf("rsync({operation: 'pull', scriptId: %q}) or rsync({operation: 'push', scriptId: %q, confirmDeletions: true})", req.ScriptID, req.ScriptID)
		return &Result{Summary: summary, Ops: ops, NextStep: nextStep}, nil
	}

	if summary.Deletions > 0 && !req.ConfirmDeletions {
		names := make([]string, 0, summary.Deletions)
		for _, o := range ops {
			if o.Op == Delete {
				names = append(names, o.Name)
			}
		}
		return nil, mcperr.DeletionRequiresConfirmation(names)
	}

	wd := gitapi.NewWorkDir(dir)
	var recovery string
	if req.Operation == OpPull {
		recovery, err = e.applyPull(ctx, wd, dir, req.ScriptID, ops, local, remoteFiles, manifest)
	} else {
		recovery, err = e.applyPush(ctx, wd, dir, req.ScriptID, ops, local, remoteFiles)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Summary: summary, Ops: ops, RecoveryCommand: recovery}, nil
}

func filterOutDeletes(ops []FileOp) []FileOp {
	out := ops[:0:0]
	for _, o := range ops {
		if o.Op == Delete {
			continue
		}
		out = append(out, o)
	}
	return out
}

// applyPull writes Remote bytes to disk (they're already stored wrapped,
// no rewrap needed), commits, and rewrites the manifest (spec §4.5 "Apply
// (pull)").
func (e *Engine) applyPull(ctx context.Context, wd *gitapi.WorkDir, dir, scriptID string, ops []FileOp, local map[string]localEntry, remoteFiles []remote.File, prevManifest *Manifest) (string, error) {
	preHeadHash := ""
	if wd.HasCommits() {
		if h, err := gitHeadHash(wd); err == nil {
			preHeadHash = h
		}
	}

	remoteIdx := make(map[string]remote.File, len(remoteFiles))
	for _, f := range remoteFiles {
		remoteIdx[f.Name] = f
	}

	changedPaths := make([]string, 0, len(ops))
	for _, op := range ops {
		rel := op.Name + op.Kind.Extension()
		abs := filepath.Join(dir, rel)
		switch op.Op {
		case Add, Update:
			f := remoteIdx[op.Name]
			if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				return "", mcperr.IO("failed to create parent directory", err)
			}
			if err := os.WriteFile(abs, []byte(f.Source), 0644); err != nil {
				return "", mcperr.IO("failed to write local file", err)
			}
			changedPaths = append(changedPaths, rel)
		case Delete:
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return "", mcperr.IO("failed to remove local file", err)
			}
			changedPaths = append(changedPaths, rel)
		}
	}

	if err := wd.Add(changedPaths); err != nil {
		return "", mcperr.IO("failed to stage synced files", err)
	}
	if err := wd.Commit(fmt.Sprintf("rsync pull: %d file(s)", len(changedPaths))); err != nil {
		return "", mcperr.IO("failed to commit synced files", err)
	}

	newLocal, err := walkLocal(dir, nil)
	if err != nil {
		return "", mcperr.IO("failed to relist local files after pull", err)
	}
	headHash, _ := gitHeadHash(wd)
	if err := writeManifestFromLocal(filepath.Join(dir, ManifestName), scriptID, "pull", newLocal, headHash); err != nil {
		logging.Warningf("failed to rewrite manifest after pull: %s", err)
	}

	if preHeadHash == "" {
		return "git reset --hard HEAD~1", nil
	}
	return "git reset --hard " + preHeadHash, nil
}

// applyPush builds the full new Remote listing by applying the diff onto
// the existing listing already read at diff time (no re-fetch) and issues
// one atomic UpdateProjectContent (spec §4.5 "Apply (push)"). A local file
// that round-tripped through the Git Operation Manager's write/edit path
// already carries wrapped bytes (invariant I2), but nothing guarantees that
// for a file that was created or hand-edited outside those tools and
// picked up here for the first time. So every Add/Update first unwraps
// whatever is on disk (a no-op if it was never wrapped) to recover the
// user-facing body, then runs that body through the same wrap-fresh/
// unwrap-preserve step the Git Operation Manager's strategies use
// (spec.md:149): gitops.WrapForStore unwraps the existing Remote content
// (if any) to recover its module options before rewrapping the body with
// them.
func (e *Engine) applyPush(ctx context.Context, wd *gitapi.WorkDir, dir, scriptID string, ops []FileOp, local map[string]localEntry, remoteFiles []remote.File) (string, error) {
	remoteIdx := make(map[string]remote.File, len(remoteFiles))
	for _, f := range remoteFiles {
		remoteIdx[f.Name] = f
	}

	newFiles := make([]remote.File, 0, len(remoteFiles)+len(ops))
	keep := make(map[string]bool, len(remoteFiles))
	for _, f := range remoteFiles {
		keep[f.Name] = true
	}

	for _, op := range ops {
		switch op.Op {
		case Delete:
			keep[op.Name] = false
		case Add, Update:
			entry := local[op.Name]
			data, err := readLocalFile(dir, entry)
			if err != nil {
				return "", mcperr.IO("failed to read local file for push", err)
			}
			var existing *remote.File
			if f, ok := remoteIdx[op.Name]; ok {
				existing = &f
			}
			body, _ := wrapper.Unwrap(string(data))
			wrapped := gitops.WrapForStore(op.Kind, op.Name, body, existing)
			keep[op.Name] = true
			remoteIdx[op.Name] = remote.File{Name: op.Name, Kind: op.Kind, Source: wrapped}
		}
	}

	for name, f := range remoteIdx {
		if keep[name] {
			newFiles = append(newFiles, f)
		}
	}

	if err := e.Client.UpdateProjectContent(ctx, scriptID, newFiles); err != nil {
		return "", mcperr.Remote("failed to push project content", err)
	}

	headHash, _ := gitHeadHash(wd)
	if err := writeManifestFromRemote(filepath.Join(dir, ManifestName), scriptID, newFiles, headHash); err != nil {
		logging.Warningf("failed to rewrite manifest after push: %s", err)
	}

	return "git reset --hard HEAD~1 && rsync({operation: 'push', scriptId: " + scriptID + "})", nil
}

func gitHeadHash(wd *gitapi.WorkDir) (string, error) {
	return gitapi.GetHeadCommitHash(wd.Dir)
}

func writeManifestFromLocal(path, scriptID, direction string, local map[string]localEntry, commitSha string) error {
	files := make([]ManifestFile, 0, len(local))
	for _, e := range local {
		files = append(files, ManifestFile{Filename: e.Name, Hash: e.Hash})
	}
	return WriteManifest(path, &Manifest{ScriptID: scriptID, Direction: direction, Files: files, CommitSha: commitSha})
}

func writeManifestFromRemote(path, scriptID string, files []remote.File, commitSha string) error {
	mf := make([]ManifestFile, 0, len(files))
	for _, f := range files {
		mf = append(mf, ManifestFile{Filename: f.Name, Hash: contentHash(f.Source)})
	}
	return WriteManifest(path, &Manifest{ScriptID: scriptID, Direction: "push", Files: mf, CommitSha: commitSha})
}
