// Package gitapi is the shared git-plumbing toolkit the write/sync core
// builds on: restricted-env subprocess execution, porcelain status parsing,
// blob hashing, and the small set of git subcommands the Git Operation
// Manager and Rsync Engine need to stage, inspect, and roll back changes.
//
// Every invocation goes through internal/gitexec so tracing and error
// wrapping stay consistent with the rest of the module (spec §5,
// "Subprocess discipline": argument lists, never shell string
// concatenation; an allow-listed set of git subcommands).
package gitapi

import (
	"bytes"
	"os"
	"os/exec"
	"path"
	"strings"
	"syscall"

	log "github.com/msolo/go-bis/glug"
	"github.com/pkg/errors"

	"github.com/msolo/mcp-gas/internal/gitexec"
)

// allowedSubcommands is the allow-list referenced by spec §5; gitCommand
// panics if asked to run anything outside of it, since every caller in this
// module is internal and a typo here is a programming error, not user input.
var allowedSubcommands = map[string]bool{
	"init": true, "add": true, "rm": true, "reset": true, "commit": true,
	"status": true, "diff": true, "diff-tree": true, "rev-parse": true,
	"merge-base": true, "cat-file": true, "hash-object": true,
	"check-ignore": true, "config": true, "remote": true, "checkout": true,
	"branch": true, "worktree": true, "clean": true, "ls-files": true,
	"show-ref": true,
}

// GitWorkdir walks up from the current directory looking for a .git
// directory, the way `git rev-parse --show-toplevel` would, without
// shelling out.
func GitWorkdir() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err) // Fatal: cwd is gone out from under us.
	}
	return findGitWorkdirFrom(wd)
}

func findGitWorkdirFrom(wd string) string {
	for wd != "/" {
		if _, err := os.Stat(path.Join(wd, ".git")); err == nil {
			return wd
		} else if !os.IsNotExist(err) {
			panic(err)
		}
		wd = path.Dir(wd)
	}
	return ""
}

// WorkDir is a handle on a specific repository root, used to scope every
// subprocess call to that directory via `git -C <dir>`.
type WorkDir struct {
	Dir string
}

func NewWorkDir(dir string) *WorkDir { return &WorkDir{Dir: dir} }

func (wd *WorkDir) gitCommand(args ...string) *gitexec.Cmd {
	if len(args) == 0 || !allowedSubcommands[args[0]] {
		panic("gitapi: subcommand not in allow-list: " + strings.Join(args, " "))
	}
	gitArgs := []string{}
	if wd.Dir != "" {
		gitArgs = append(gitArgs, "-C", wd.Dir)
	}
	gitArgs = append(gitArgs, args...)
	cmd := gitexec.Command("git", gitArgs...)
	cmd.Env = GetRestrictedEnv()
	return cmd
}

// GitConfig is a read-only view over `git config -l` output.
type GitConfig interface {
	Get(key string) string
}

type gitConfig map[string]string

// Get normalizes git config keys per `man git-config`: subsections are
// case-sensitive, section and key names are not.
func (gc gitConfig) Get(key string) string {
	kf := strings.Split(key, ".")
	if len(kf) == 3 {
		kf[0] = strings.ToLower(kf[0])
		kf[2] = strings.ToLower(kf[2])
		key = strings.Join(kf, ".")
	} else {
		key = strings.ToLower(key)
	}
	return gc[key]
}

func (wd *WorkDir) GitConfig() (GitConfig, error) {
	out, err := wd.gitCommand("config", "-z", "-l").Output()
	if err != nil {
		return nil, errors.WithMessage(err, "git config failed")
	}
	cfg := make(gitConfig)
	for _, ent := range SplitNullTerminated(string(out)) {
		kv := strings.SplitN(ent, "\n", 2)
		if len(kv) != 2 {
			log.Warningf("invalid git config tuple: %d %v", len(kv), kv)
			continue
		}
		cfg[kv[0]] = kv[1]
	}
	return cfg, nil
}

// GetRestrictedEnv builds a minimal, explicit environment for git
// subprocesses: only a fixed allow-list of ambient variables passes
// through, plus GIT_TRACE* for debugging. Unlike the daemon's original
// preflight tooling, a missing variable here is simply omitted rather than
// fatal, since the write/sync core runs headless (no SSH_AUTH_SOCK, often
// no LOGNAME) and must not crash for want of an interactive shell's env
// (spec §5 subprocess discipline).
func GetRestrictedEnv() []string {
	keys := []string{"PATH", "USER", "LOGNAME", "HOME", "SSH_AUTH_SOCK"}
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "GIT_TRACE") {
			env = append(env, kv)
		}
	}
	return env
}

// Init creates a git repository at wd.Dir if one doesn't already exist, and
// commits a .gitkeep placeholder so subsequent index operations have a
// valid HEAD to diff against (spec §4.2 step 2, "Ensure repo").
func (wd *WorkDir) Init() error {
	if _, err := os.Stat(path.Join(wd.Dir, ".git")); err == nil {
		return nil
	}
	if err := os.MkdirAll(wd.Dir, 0755); err != nil {
		return err
	}
	if err := wd.gitCommand("init", "-q").Run(); err != nil {
		return err
	}
	keep := path.Join(wd.Dir, ".gitkeep")
	if err := os.WriteFile(keep, nil, 0644); err != nil {
		return err
	}
	if err := wd.gitCommand("add", "--", ".gitkeep").Run(); err != nil {
		return err
	}
	return wd.Commit("initial commit")
}

// Commit runs `git commit` with a fixed message; the write/sync core never
// calls this as part of a write pipeline (writes never auto-commit, spec
// §4.2/I4) — it exists only for repo bootstrap (Init) and the Rsync
// Engine's explicit synthetic commits (spec §4.5).
func (wd *WorkDir) Commit(message string) error {
	cmd := wd.gitCommand("commit", "-q", "-m", message, "--allow-empty")
	return cmd.Run()
}

// Add stages the given paths (relative to wd.Dir). Never commits.
func (wd *WorkDir) Add(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	return wd.gitCommand(args...).Run()
}

// ResetHead unstages the given paths, preferring `reset HEAD --` when the
// repo has history and falling back to `rm --cached --` on a repo with no
// commits yet (spec §4.2 rollback).
func (wd *WorkDir) ResetHead(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if wd.HasCommits() {
		args := append([]string{"reset", "HEAD", "--"}, paths...)
		return wd.gitCommand(args...).Run()
	}
	args := append([]string{"rm", "--cached", "--"}, paths...)
	return wd.gitCommand(args...).Run()
}

// HasCommits reports whether HEAD resolves to a real commit.
func (wd *WorkDir) HasCommits() bool {
	err := wd.gitCommand("rev-parse", "--verify", "-q", "HEAD").Run()
	return err == nil
}

// StagedFiles returns the name-only list of `git diff --cached`.
func (wd *WorkDir) StagedFiles() ([]string, error) {
	out, err := wd.gitCommand("diff", "-z", "--cached", "--name-only").Output()
	if err != nil {
		return nil, err
	}
	return SplitNullTerminated(string(out)), nil
}

// CurrentBranch returns the symbolic name of HEAD, or "" if detached.
func (wd *WorkDir) CurrentBranch() (string, error) {
	out, err := wd.gitCommand("rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return "", err
	}
	branch := string(bytes.TrimSpace(out))
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// BranchExists reports whether a local branch with the given name exists.
func (wd *WorkDir) BranchExists(name string) bool {
	err := wd.gitCommand("show-ref", "--verify", "-q", "refs/heads/"+name).Run()
	return err == nil
}

// CreateBranch creates and checks out a new branch from the current HEAD.
func (wd *WorkDir) CreateBranch(name string) error {
	return wd.gitCommand("checkout", "-qb", name).Run()
}

// AddWorktree creates a new worktree at dir on a fresh branch, from the
// current HEAD, the way a session worktree is created (spec §4.8).
func (wd *WorkDir) AddWorktree(dir, branch string) error {
	return wd.gitCommand("worktree", "add", "-q", "-b", branch, dir).Run()
}

// AddWorktreeExistingBranch creates a worktree at dir checking out an
// already-existing branch, for the case where a session's worktree
// directory was removed externally but its branch survives.
func (wd *WorkDir) AddWorktreeExistingBranch(dir, branch string) error {
	return wd.gitCommand("worktree", "add", "-q", dir, branch).Run()
}

// HashObject computes the git blob SHA-1 for content by shelling out to the
// real plumbing, for tooling that wants to cross-check internal/hashutil's
// pure-Go implementation (P5) rather than to compute the hash on the write
// path itself (internal/hashutil.Hash is the hot path). Nothing in this
// module calls it; hashutil's own test runs `git hash-object` directly.
func (wd *WorkDir) HashObject(content []byte) (string, error) {
	cmd := wd.gitCommand("hash-object", "--stdin")
	cmd.Stdin = bytes.NewReader(content)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(out)), nil
}

func GetMergeBaseCommitHash(workdir string) (string, error) {
	wd := &WorkDir{workdir}
	out, err := wd.gitCommand("merge-base", "origin/master", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(out)), nil
}

func GetHeadCommitHash(workdir string) (string, error) {
	wd := &WorkDir{workdir}
	out, err := wd.gitCommand("rev-parse", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(out)), nil
}

// ParsePorcelainStatus parses `git status -z --porcelain` output into
// modified, untracked, renamed, and unstaged buckets.
func ParsePorcelainStatus(data []byte) (modifiedFiles []string, untrackedFiles []string, renamedFiles []string, unstagedFiles []string, err error) {
	entries := SplitNullTerminated(string(data))
	modifiedFiles = make([]string, 0, 16)
	unstagedFiles = make([]string, 0, 16)
	untrackedFiles = make([]string, 0, 16)
	renamedFiles = make([]string, 0, 16)
	for i := 0; i < len(entries); i++ {
		entry := entries[i]
		if len(entry) < 3 {
			continue
		}
		status, fname := entry[:2], entry[3:]
		if status == "UU" {
			// Ignore merge conflicts. They have to be resolved by hand,
			// which requires another sync anyway.
			log.Warningf("ignoring unmerged file: %s", fname)
			continue
		}

		modifiedFiles = append(modifiedFiles, fname)
		if status[0] == 'R' {
			// Rename is encoded as two consecutive entries:
			// R  twinsies-2\0twinsies\0
			i++
			renamedFile := entries[i]
			modifiedFiles = append(modifiedFiles, renamedFile)
			renamedFiles = append(renamedFiles, renamedFile)
		} else if status == "??" {
			untrackedFiles = append(untrackedFiles, fname)
		} else if status[1] != ' ' {
			unstagedFiles = append(unstagedFiles, fname)
		}
	}
	return modifiedFiles, untrackedFiles, renamedFiles, unstagedFiles, nil
}

func (wd *WorkDir) Status() (changedFiles []string, err error) {
	out, err := wd.gitCommand("status", "-z", "--porcelain", "--untracked-files=all").Output()
	if err != nil {
		return nil, err
	}
	changedFiles, _, _, _, err = ParsePorcelainStatus(out)
	return changedFiles, err
}

func GetGitStatus(workdir string) (changedFiles []string, err error) {
	return (&WorkDir{workdir}).Status()
}

// GetGitCommitChanges returns all files changed in a given commit.
func GetGitCommitChanges(workdir string, commitHash string) (changedFiles []string, err error) {
	wd := &WorkDir{workdir}
	out, err := wd.gitCommand("diff-tree", "--no-commit-id", "-z", "-r", "--name-only", commitHash).Output()
	if err != nil {
		return nil, err
	}
	return SplitNullTerminated(string(out)), nil
}

// GetGitDiffChanges returns all files changed on HEAD relative to mergeBaseHash.
func GetGitDiffChanges(workdir string, mergeBaseHash string) (changedFiles []string, err error) {
	wd := &WorkDir{workdir}
	out, err := wd.gitCommand("diff", "-z", "--no-renames", "--name-only", "HEAD", mergeBaseHash).Output()
	if err != nil {
		return nil, err
	}
	return SplitNullTerminated(string(out)), nil
}

func GetGitStagedChanges(workdir string) (changedFiles []string, err error) {
	return (&WorkDir{workdir}).StagedFiles()
}

func GetGitUnstagedChanges(workdir string) (changedFiles []string, err error) {
	wd := &WorkDir{workdir}
	out, err := wd.gitCommand("diff", "-z", "--no-renames", "--name-only").Output()
	if err != nil {
		return nil, err
	}
	return SplitNullTerminated(string(out)), nil
}

// GitCheckIgnore returns the subset of filePaths that are gitignored.
func GitCheckIgnore(workdir string, filePaths []string) ([]string, error) {
	wd := &WorkDir{workdir}
	cmd := wd.gitCommand("check-ignore", "-z", "--stdin", "--no-index")
	cmd.Stdin = bytes.NewReader([]byte(JoinNullTerminated(filePaths)))
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := errors.Cause(err).(*exec.ExitError); ok {
			switch exitErr.ProcessState.Sys().(syscall.WaitStatus).ExitStatus() {
			case 0, 1:
				// 0: all paths ignored, 1: some/none ignored — both expected.
			default:
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	return SplitNullTerminated(string(out)), nil
}

// GitRenamedFiles returns the subset of filePaths git considers renames.
func GitRenamedFiles(workdir string, filePaths []string) ([]string, error) {
	wd := &WorkDir{workdir}
	args := append([]string{"status", "-z", "--porcelain", "--untracked-files=normal"}, filePaths...)
	out, err := wd.gitCommand(args...).Output()
	if err != nil {
		return nil, err
	}
	_, _, renamedFiles, _, err := ParsePorcelainStatus(out)
	return renamedFiles, err
}

func GetGitRemoteNames(workdir string) (remoteNames []string, err error) {
	wd := &WorkDir{workdir}
	out, err := wd.gitCommand("remote").Output()
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

// BashQuote quotes each argument for safe shell copy-paste, used by
// diagnostic/dry-run output.
func BashQuote(args ...string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = gitexec.BashQuoteWord(a)
	}
	return out
}

func JoinNullTerminated(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return strings.Join(ss, "\000") + "\000"
}

func SplitNullTerminated(s string) []string {
	if s == "" {
		return nil
	}
	if s[len(s)-1] == '\000' {
		s = s[:len(s)-1]
	}
	return strings.Split(s, "\000")
}
