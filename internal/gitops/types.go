// Package gitops implements the Git Operation Manager (spec §4.2): the
// atomic pipeline that turns a mutation strategy (edit/aider/write/mv/cp/rm)
// into a consistent (remote, local-fs, local-index) triple, or leaves all
// three unchanged.
//
// Grounded on cmd/git-sync/sync.go's fullSync() for the phased
// compute/stage/apply/reconcile shape, and on its rollback-on-error
// structure; generalized from "reconcile two git remotes" to "reconcile one
// Remote project against one local working tree under a strategy".
package gitops

import (
	"context"

	"github.com/msolo/mcp-gas/internal/remote"
)

// Change is one entry of a strategy's computed plan: either new content for
// Name, or a deletion.
type Change struct {
	Name    string
	Kind    remote.FileKind
	Content string // Unwrapped user text for write/edit/aider; the source file's stored bytes, verbatim, for mv/cp. Ignored when Delete is true.
	Delete  bool
}

// AppliedChange is what a strategy actually wrote to the Remote: the bytes
// in Content are in *wrapped* form for wrap-eligible files, so the pipeline
// can reconcile local disk to match exactly (invariant I2).
type AppliedChange struct {
	Name    string
	Kind    remote.FileKind
	Content string
	Delete  bool
}

// Env is the shared context a Strategy needs to compute and apply its
// changes: the Remote client, the target project, and conflict-detection
// inputs supplied by the caller.
type Env struct {
	Client       remote.Client
	ScriptID     string
	ExpectedHash map[string]string // filename -> caller's expected wrapped-content hash
	Force        bool
	ChangeReason string
}

// Strategy implements one mutation kind's three phases (spec §2 item 7).
type Strategy interface {
	// Name identifies the strategy for locking/tracing ("edit", "aider",
	// "write", "mv", "cp", "rm").
	Name() string

	// ComputeChanges reads the Remote and determines what should change
	// (unwrapped content, except that mv/cp carry stored bytes as they
	// are; see Change.Content). Must perform conflict detection itself
	// (via CheckConflict) when Env.ExpectedHash is non-empty.
	ComputeChanges(ctx context.Context, env *Env) ([]Change, error)

	// ApplyChanges writes validated (possibly hook-modified) content to the
	// Remote in a single atomic project-content update, returning the bytes
	// actually stored (wrapped for wrap-eligible files).
	ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error)

	// Rollback best-effort undoes any partial Remote effect. Called when any
	// phase after ComputeChanges fails (local write, staging, hook
	// read-back, ApplyChanges, or reconciliation).
	Rollback(ctx context.Context, env *Env) error
}

// Mode controls how much of the pipeline runs (spec §4.2 "Sync modes").
type Mode int

const (
	ModeSimple Mode = iota
	ModeLocalOnly
)

// Params is the caller-supplied request for Execute.
type Params struct {
	ScriptID     string
	SessionToken string
	Mode         Mode
	ChangeReason string
	ExpectedHash map[string]string
	Force        bool
}

// GitHint is the compact status the pipeline returns alongside a result,
// advising the caller on what to do next (spec §4.2 step 9).
type GitHint struct {
	Branch            string `json:"branch"`
	UncommittedCount  int    `json:"uncommittedCount"`
	RecommendedAction string `json:"action"`
	Command           string `json:"command,omitempty"`
}

// Result bundles a pipeline run's outcome.
type Result struct {
	Applied []AppliedChange
	Hint    GitHint
}
