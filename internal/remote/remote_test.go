package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidScriptID(t *testing.T) {
	valid := strings.Repeat("a", 30)
	if !ValidScriptID(valid) {
		t.Errorf("expected %q to be valid", valid)
	}
	if ValidScriptID(strings.Repeat("a", 24)) {
		t.Error("24 chars should be too short")
	}
	if ValidScriptID(strings.Repeat("a", 61)) {
		t.Error("61 chars should be too long")
	}
	if ValidScriptID(strings.Repeat("a", 30) + "!") {
		t.Error("expected invalid character to be rejected")
	}
}

func TestFakeUpdateProjectContentIsFullReplace(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	id := strings.Repeat("s", 30)
	f.Seed(id, []File{{Name: "A", Kind: KindServerScript, Source: "a"}, {Name: "B", Kind: KindServerScript, Source: "b"}})

	if err := f.UpdateProjectContent(ctx, id, []File{{Name: "A", Kind: KindServerScript, Source: "a2"}}); err != nil {
		t.Fatal(err)
	}
	files, err := f.GetProjectContent(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Source != "a2" {
		t.Fatalf("expected full replace, got %+v", files)
	}
}

func TestFakeGetProjectContentNotFound(t *testing.T) {
	f := NewFake()
	_, err := f.GetProjectContent(context.Background(), strings.Repeat("x", 30))
	if err == nil {
		t.Fatal("expected ErrNotFound")
	}
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}
