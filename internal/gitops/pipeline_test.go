package gitops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/msolo/mcp-gas/internal/lock"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/worktree"
)

func newTestManager(t *testing.T) (*Manager, *remote.Fake, string) {
	t.Helper()
	home := t.TempDir()
	lockDir := filepath.Join(home, "locks")
	locks, err := lock.New(lockDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	client := remote.NewFake()
	resolver := worktree.NewFS(home)
	return New(locks, resolver, client), client, home
}

const testScriptID = "abcdefghijklmnopqrstuvwxy0123456789"

func TestWriteStrategyS1(t *testing.T) {
	m, client, home := newTestManager(t)
	client.Seed(testScriptID, nil)
	ctx := context.Background()

	strategy := NewWriteStrategy("Utils.gs", "function f(){return 1}")
	res, err := m.Execute(ctx, strategy, Params{ScriptID: testScriptID})
	if err != nil {
		t.Fatal(err)
	}

	wantWrapped := "function _main(module, exports, require){function f(){return 1}}\n__defineModule__(_main);"

	files, err := client.GetProjectContent(ctx, testScriptID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "Utils" || files[0].Source != wantWrapped {
		t.Fatalf("unexpected remote state: %+v", files)
	}

	dir, _, err := worktree.NewFS(home).Resolve(ctx, testScriptID, "")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Utils.gs"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != wantWrapped {
		t.Fatalf("local bytes mismatch:\n got: %q\nwant: %q", data, wantWrapped)
	}

	if res.Hint.UncommittedCount != 1 {
		t.Fatalf("expected 1 uncommitted file, got %d", res.Hint.UncommittedCount)
	}
	if res.Hint.RecommendedAction != "commit" {
		t.Fatalf("expected action=commit, got %s", res.Hint.RecommendedAction)
	}
}

func TestEditStrategyExactReplace(t *testing.T) {
	m, client, _ := newTestManager(t)
	client.Seed(testScriptID, nil)
	ctx := context.Background()

	if _, err := m.Execute(ctx, NewWriteStrategy("Utils.gs", "function f(){return 1}"), Params{ScriptID: testScriptID}); err != nil {
		t.Fatal(err)
	}

	res, err := m.Execute(ctx, NewEditStrategy("Utils.gs", []ExactEdit{{SearchText: "return 1", ReplaceText: "return 2"}}), Params{ScriptID: testScriptID})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied) != 1 {
		t.Fatalf("expected 1 applied change, got %d", len(res.Applied))
	}
	files, _ := client.GetProjectContent(ctx, testScriptID)
	if !strings.Contains(files[0].Source, "return 2") {
		t.Fatalf("expected updated content, got %q", files[0].Source)
	}
}

func TestEditStrategyConflict(t *testing.T) {
	m, client, _ := newTestManager(t)
	client.Seed(testScriptID, nil)
	ctx := context.Background()

	if _, err := m.Execute(ctx, NewWriteStrategy("Utils.gs", "function f(){return 1}"), Params{ScriptID: testScriptID}); err != nil {
		t.Fatal(err)
	}

	staleHash := "0000000000000000000000000000000000000f"
	_, err := m.Execute(ctx, NewEditStrategy("Utils.gs", []ExactEdit{{SearchText: "return 1", ReplaceText: "return 2"}}),
		Params{ScriptID: testScriptID, ExpectedHash: map[string]string{"Utils": staleHash}})
	if err == nil {
		t.Fatal("expected conflict error")
	}
}
