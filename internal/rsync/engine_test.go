package rsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/msolo/mcp-gas/internal/lock"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/worktree"
)

const testScriptID = "abcdefghijklmnopqrstuvwxy0123456789"

func newTestEngine(t *testing.T) (*Engine, *remote.Fake, *worktree.FS) {
	t.Helper()
	home := t.TempDir()
	locks, err := lock.New(filepath.Join(home, "locks"), nil)
	if err != nil {
		t.Fatal(err)
	}
	client := remote.NewFake()
	resolver := worktree.NewFS(home)
	return New(locks, resolver, client), client, resolver
}

func TestBootstrapPullNeverDeletesNorRequiresConfirmation(t *testing.T) {
	e, client, resolver := newTestEngine(t)
	ctx := context.Background()
	wrapped := "function _main(module, exports, require){return 1}\n__defineModule__(_main);"
	client.Seed(testScriptID, []remote.File{{Name: "Utils", Kind: remote.KindServerScript, Source: wrapped}})

	dir, _, err := resolver.Resolve(ctx, testScriptID, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Stale.gs"), []byte("function _main(module, exports, require){old}\n__defineModule__(_main);"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull})
	if err != nil {
		t.Fatalf("bootstrap pull should never require deletion confirmation: %v", err)
	}
	if !res.Summary.IsBootstrap {
		t.Fatalf("expected IsBootstrap, got %+v", res.Summary)
	}
	if res.Summary.Deletions != 0 {
		t.Fatalf("bootstrap sync must never delete, got %+v", res.Summary)
	}
	if _, err := os.Stat(filepath.Join(dir, "Stale.gs")); err != nil {
		t.Fatalf("Stale.gs should survive a bootstrap pull: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Utils.gs"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != wrapped {
		t.Fatalf("pulled content mismatch: %q", data)
	}
	if _, err := ReadManifest(filepath.Join(dir, ManifestName)); err != nil {
		t.Fatalf("manifest read error: %v", err)
	}
}

func TestDryrunDoesNotTouchDisk(t *testing.T) {
	e, client, resolver := newTestEngine(t)
	ctx := context.Background()
	client.Seed(testScriptID, []remote.File{{Name: "Utils", Kind: remote.KindServerScript, Source: "function _main(module, exports, require){}\n__defineModule__(_main);"}})

	res, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull, Dryrun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.NextStep == "" {
		t.Fatal("expected a populated NextStep for a dryrun preview")
	}
	if res.RecoveryCommand != "" {
		t.Fatalf("dryrun must not produce a RecoveryCommand, got %q", res.RecoveryCommand)
	}
	dir, _, _ := resolver.Resolve(ctx, testScriptID, "")
	if _, err := os.Stat(filepath.Join(dir, "Utils.gs")); !os.IsNotExist(err) {
		t.Fatalf("dryrun must not write to disk, stat err = %v", err)
	}
}

func TestPostBootstrapDeletionRequiresConfirmation(t *testing.T) {
	e, client, resolver := newTestEngine(t)
	ctx := context.Background()
	client.Seed(testScriptID, []remote.File{{Name: "Utils", Kind: remote.KindServerScript, Source: "function _main(module, exports, require){}\n__defineModule__(_main);"}})

	if _, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull}); err != nil {
		t.Fatalf("bootstrap pull failed: %v", err)
	}

	client.Seed(testScriptID, nil)

	_, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull})
	if err == nil {
		t.Fatal("expected DeletionRequiresConfirmation error")
	}

	res, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull, ConfirmDeletions: true})
	if err != nil {
		t.Fatalf("confirmed deletion pull should succeed: %v", err)
	}
	if res.Summary.Deletions != 1 {
		t.Fatalf("expected 1 deletion, got %+v", res.Summary)
	}
	dir, _, _ := resolver.Resolve(ctx, testScriptID, "")
	if _, err := os.Stat(filepath.Join(dir, "Utils.gs")); !os.IsNotExist(err) {
		t.Fatalf("Utils.gs should have been deleted locally")
	}
}

func TestPushPreservesModuleOptionsOnUpdate(t *testing.T) {
	e, client, resolver := newTestEngine(t)
	ctx := context.Background()
	existing := "function _main(module, exports, require){old}\n__defineModule__(_main, {\"loadNow\":true});"
	client.Seed(testScriptID, []remote.File{{Name: "Utils", Kind: remote.KindServerScript, Source: existing}})

	if _, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull}); err != nil {
		t.Fatalf("bootstrap pull failed: %v", err)
	}

	dir, _, _ := resolver.Resolve(ctx, testScriptID, "")
	// the local tree mirrors wrapped bytes byte-for-byte (I2); simulate an
	// edit made through the Git Operation Manager, which already rewrapped
	// the body while preserving the {"loadNow":true} module options.
	edited := "function _main(module, exports, require){new}\n__defineModule__(_main, {\"loadNow\":true});"
	if err := os.WriteFile(filepath.Join(dir, "Utils.gs"), []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPush})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if res.Summary.Updates != 1 {
		t.Fatalf("expected 1 update, got %+v", res.Summary)
	}
	files, _ := client.GetProjectContent(ctx, testScriptID)
	if len(files) != 1 {
		t.Fatalf("expected 1 remote file, got %d", len(files))
	}
	if files[0].Source != edited {
		t.Fatalf("pushed content mismatch:\n got: %q\nwant: %q", files[0].Source, edited)
	}
}

// TestPushWrapsRawLocalEditNeverRoundTrippedThroughGitOps covers a local
// file that was hand-edited (or created) outside the Git Operation
// Manager's write/edit tools, so the copy on disk holds raw user text
// rather than wrapped bytes. A push must still wrap it, preserving
// whatever module options the existing Remote content carries, instead of
// shipping the raw body verbatim as if it were already wrapped.
func TestPushWrapsRawLocalEditNeverRoundTrippedThroughGitOps(t *testing.T) {
	e, client, resolver := newTestEngine(t)
	ctx := context.Background()
	existing := "function _main(module, exports, require){old}\n__defineModule__(_main, {\"loadNow\":true});"
	client.Seed(testScriptID, []remote.File{{Name: "Utils", Kind: remote.KindServerScript, Source: existing}})

	if _, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPull}); err != nil {
		t.Fatalf("bootstrap pull failed: %v", err)
	}

	dir, _, _ := resolver.Resolve(ctx, testScriptID, "")
	// Overwrite with raw, never-wrapped user text, simulating an edit made
	// directly on disk rather than through write/edit.
	rawBody := "return 42"
	if err := os.WriteFile(filepath.Join(dir, "Utils.gs"), []byte(rawBody), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := e.Run(ctx, Request{ScriptID: testScriptID, Operation: OpPush})
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if res.Summary.Updates != 1 {
		t.Fatalf("expected 1 update, got %+v", res.Summary)
	}
	files, err := client.GetProjectContent(ctx, testScriptID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 remote file, got %d", len(files))
	}
	want := "function _main(module, exports, require){" + rawBody + "}\n__defineModule__(_main, {\"loadNow\":true});"
	if files[0].Source != want {
		t.Fatalf("raw local edit was not wrapped with preserved options:\n got: %q\nwant: %q", files[0].Source, want)
	}
}
