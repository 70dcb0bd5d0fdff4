package gitops

import (
	"context"
	"sort"
	"strings"

	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/wrapper"
)

// ExactEdit is one exact-match find/replace (spec §6 `edit` tool).
type ExactEdit struct {
	SearchText  string
	ReplaceText string
}

// EditStrategy implements the `edit` tool: exact find/replace through the
// pipeline, applied against the current unwrapped (user-text) body.
type EditStrategy struct {
	Path  string
	Edits []ExactEdit

	name string
	kind remote.FileKind
}

func NewEditStrategy(path string, edits []ExactEdit) *EditStrategy {
	name, kind := SplitPath(path)
	return &EditStrategy{Path: path, Edits: edits, name: name, kind: kind}
}

func (s *EditStrategy) Name() string { return "edit" }

func (s *EditStrategy) ComputeChanges(ctx context.Context, env *Env) ([]Change, error) {
	if len(s.Edits) == 0 {
		return nil, mcperr.Validation("edits must not be empty")
	}
	if len(s.Edits) > 20 {
		return nil, mcperr.Validation("edits must not exceed 20 entries")
	}
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	existing := findFile(files, s.name)
	if existing == nil {
		return nil, mcperr.Validation("no such file: " + s.name)
	}
	if expected, ok := env.ExpectedHash[s.name]; ok {
		if err := CheckConflict(s.name, existing, expected, env.Force, s.Name()); err != nil {
			return nil, err
		}
	}

	userText, _ := wrapper.Unwrap(existing.Source)
	newText, err := applyExactEdits(userText, s.Edits)
	if err != nil {
		return nil, err
	}
	return []Change{{Name: s.name, Kind: s.kind, Content: newText}}, nil
}

// applyExactEdits finds each edit's SearchText exactly once and rejects
// overlapping replacement ranges (spec §7 "overlap detected").
func applyExactEdits(text string, edits []ExactEdit) (string, error) {
	type span struct {
		start, end int
		replace    string
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		idx := strings.Index(text, e.SearchText)
		if idx < 0 {
			return "", mcperr.Validation("searchText not found: " + truncate(e.SearchText, 80))
		}
		if strings.Count(text, e.SearchText) > 1 {
			return "", mcperr.Validation("searchText is ambiguous (matches more than once): " + truncate(e.SearchText, 80))
		}
		spans = append(spans, span{start: idx, end: idx + len(e.SearchText), replace: e.ReplaceText})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return "", mcperr.Validation("overlap detected between edits")
		}
	}
	var buf strings.Builder
	cursor := 0
	for _, sp := range spans {
		buf.WriteString(text[cursor:sp.start])
		buf.WriteString(sp.replace)
		cursor = sp.end
	}
	buf.WriteString(text[cursor:])
	return buf.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (s *EditStrategy) ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error) {
	return applySingleFileChange(ctx, env, validated[0])
}

func (s *EditStrategy) Rollback(ctx context.Context, env *Env) error { return nil }

// applySingleFileChange is the apply-phase shared by the edit and aider
// strategies: wrap (preserving options), full-replace the project
// listing, return the applied bytes.
func applySingleFileChange(ctx context.Context, env *Env, c Change) ([]AppliedChange, error) {
	files, err := env.Client.GetProjectContent(ctx, env.ScriptID)
	if err != nil {
		return nil, mcperr.Remote("failed to read project content", err)
	}
	existing := findFile(files, c.Name)
	wrapped := WrapForStore(c.Kind, c.Name, c.Content, existing)
	newFiles := replaceOrAppend(files, remote.File{Name: c.Name, Kind: c.Kind, Source: wrapped})
	if err := env.Client.UpdateProjectContent(ctx, env.ScriptID, newFiles); err != nil {
		return nil, mcperr.Remote("failed to update project content", err)
	}
	return []AppliedChange{{Name: c.Name, Kind: c.Kind, Content: wrapped}}, nil
}
