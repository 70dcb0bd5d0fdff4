package gitops

import (
	"context"

	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/remote"
)

// MoveStrategy implements `mv`: rename From to To. Per SPEC_FULL.md's
// resolved open question, a pre-existing destination is an error, never a
// silent overwrite.
type MoveStrategy struct {
	From, To string

	fromName string
	toName   string
	kind     remote.FileKind
}

func NewMoveStrategy(from, to string) *MoveStrategy {
	fromName, kind := SplitPath(from)
	toName, _ := SplitPath(to)
	return &MoveStrategy{From: from, To: to, fromName: fromName, toName: toName, kind: kind}
}

func (s *MoveStrategy) Name() string { return "mv" }

func (s *MoveStrategy) ComputeChanges(ctx context.Context, env *Env) ([]Change, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	existing := findFile(files, s.fromName)
	if existing == nil {
		return nil, mcperr.Validation("no such file: " + s.fromName)
	}
	if findFile(files, s.toName) != nil {
		return nil, mcperr.Validation("destination already exists: " + s.toName)
	}
	if expected, ok := env.ExpectedHash[s.fromName]; ok {
		if err := CheckConflict(s.fromName, existing, expected, env.Force, s.Name()); err != nil {
			return nil, err
		}
	}
	return []Change{
		{Name: s.fromName, Kind: s.kind, Delete: true},
		{Name: s.toName, Kind: s.kind, Content: existing.Source},
	}, nil
}

func (s *MoveStrategy) ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	var content string
	for _, c := range validated {
		if !c.Delete {
			content = c.Content
		}
	}
	newFiles := removeByName(files, s.fromName)
	newFiles = replaceOrAppend(newFiles, remote.File{Name: s.toName, Kind: s.kind, Source: content})
	if err := env.Client.UpdateProjectContent(ctx, env.ScriptID, newFiles); err != nil {
		return nil, mcperr.Remote("failed to update project content", err)
	}
	return []AppliedChange{
		{Name: s.fromName, Kind: s.kind, Delete: true},
		{Name: s.toName, Kind: s.kind, Content: content},
	}, nil
}

func (s *MoveStrategy) Rollback(ctx context.Context, env *Env) error { return nil }

// CopyStrategy implements `cp`: duplicate From's content to To, wrapped
// bytes preserved verbatim (a copy, not a re-wrap).
type CopyStrategy struct {
	From, To string

	fromName string
	toName   string
	kind     remote.FileKind
}

func NewCopyStrategy(from, to string) *CopyStrategy {
	fromName, kind := SplitPath(from)
	toName, _ := SplitPath(to)
	return &CopyStrategy{From: from, To: to, fromName: fromName, toName: toName, kind: kind}
}

func (s *CopyStrategy) Name() string { return "cp" }

func (s *CopyStrategy) ComputeChanges(ctx context.Context, env *Env) ([]Change, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	existing := findFile(files, s.fromName)
	if existing == nil {
		return nil, mcperr.Validation("no such file: " + s.fromName)
	}
	if findFile(files, s.toName) != nil {
		return nil, mcperr.Validation("destination already exists: " + s.toName)
	}
	return []Change{{Name: s.toName, Kind: s.kind, Content: existing.Source}}, nil
}

func (s *CopyStrategy) ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	c := validated[0]
	newFiles := replaceOrAppend(files, remote.File{Name: c.Name, Kind: c.Kind, Source: c.Content})
	if err := env.Client.UpdateProjectContent(ctx, env.ScriptID, newFiles); err != nil {
		return nil, mcperr.Remote("failed to update project content", err)
	}
	return []AppliedChange{{Name: c.Name, Kind: c.Kind, Content: c.Content}}, nil
}

func (s *CopyStrategy) Rollback(ctx context.Context, env *Env) error { return nil }

// DeleteStrategy implements `rm`.
type DeleteStrategy struct {
	From string

	name string
	kind remote.FileKind
}

func NewDeleteStrategy(from string) *DeleteStrategy {
	name, kind := SplitPath(from)
	return &DeleteStrategy{From: from, name: name, kind: kind}
}

func (s *DeleteStrategy) Name() string { return "rm" }

func (s *DeleteStrategy) ComputeChanges(ctx context.Context, env *Env) ([]Change, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	existing := findFile(files, s.name)
	if existing == nil {
		// Remote-only delete of an already-absent file is valid (spec §4.2
		// step 5) as long as it's not present locally either; the pipeline's
		// validateEmptyStageIsDeleteOnly enforces that side.
		return []Change{{Name: s.name, Kind: s.kind, Delete: true}}, nil
	}
	if expected, ok := env.ExpectedHash[s.name]; ok {
		if err := CheckConflict(s.name, existing, expected, env.Force, s.Name()); err != nil {
			return nil, err
		}
	}
	return []Change{{Name: s.name, Kind: s.kind, Delete: true}}, nil
}

func (s *DeleteStrategy) ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	newFiles := removeByName(files, s.name)
	if err := env.Client.UpdateProjectContent(ctx, env.ScriptID, newFiles); err != nil {
		return nil, mcperr.Remote("failed to update project content", err)
	}
	return []AppliedChange{{Name: s.name, Kind: s.kind, Delete: true}}, nil
}

func (s *DeleteStrategy) Rollback(ctx context.Context, env *Env) error { return nil }
