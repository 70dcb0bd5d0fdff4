package gitops

import (
	"context"

	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/remote"
)

// WriteStrategy implements the `write` tool: full-file replacement or
// creation (spec §6 tool surface).
type WriteStrategy struct {
	Path    string
	Content string

	name string
	kind remote.FileKind
}

func NewWriteStrategy(path, content string) *WriteStrategy {
	name, kind := SplitPath(path)
	return &WriteStrategy{Path: path, Content: content, name: name, kind: kind}
}

func (s *WriteStrategy) Name() string { return "write" }

func (s *WriteStrategy) ComputeChanges(ctx context.Context, env *Env) ([]Change, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	existing := findFile(files, s.name)
	if expected, ok := env.ExpectedHash[s.name]; ok {
		if err := CheckConflict(s.name, existing, expected, env.Force, s.Name()); err != nil {
			return nil, err
		}
	}
	return []Change{{Name: s.name, Kind: s.kind, Content: s.Content}}, nil
}

func (s *WriteStrategy) ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	c := validated[0]
	existing := findFile(files, c.Name)
	wrapped := WrapForStore(c.Kind, c.Name, c.Content, existing)

	newFiles := replaceOrAppend(files, remote.File{Name: c.Name, Kind: c.Kind, Source: wrapped})
	if err := env.Client.UpdateProjectContent(ctx, env.ScriptID, newFiles); err != nil {
		return nil, mcperr.Remote("failed to update project content", err)
	}
	return []AppliedChange{{Name: c.Name, Kind: c.Kind, Content: wrapped}}, nil
}

func (s *WriteStrategy) Rollback(ctx context.Context, env *Env) error {
	// ApplyChanges performs a single atomic UpdateProjectContent; if it
	// failed, the Remote was never touched, so there's nothing to undo. If a
	// later phase failed, the Remote already holds the new content and
	// rolling it back would require another full-replace with the prior
	// listing, which the pipeline's rollback doesn't have cached — so the
	// Remote is left as it is and nothing is undone here.
	return nil
}

// replaceOrAppend returns files with any entry named f.Name replaced by f,
// or f appended if no such entry exists.
func replaceOrAppend(files []remote.File, f remote.File) []remote.File {
	out := make([]remote.File, len(files))
	copy(out, files)
	for i, existing := range out {
		if existing.Name == f.Name {
			out[i] = f
			return out
		}
	}
	return append(out, f)
}

// removeByName returns files with the entry named name removed, if present.
func removeByName(files []remote.File, name string) []remote.File {
	out := make([]remote.File, 0, len(files))
	for _, f := range files {
		if f.Name == name {
			continue
		}
		out = append(out, f)
	}
	return out
}
