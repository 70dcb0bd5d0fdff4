package gitops

import (
	"context"

	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/remote"
	"github.com/msolo/mcp-gas/internal/wrapper"
)

// FuzzyEdit is one similarity-matched find/replace (spec §6 `aider` tool).
type FuzzyEdit struct {
	SearchText          string
	ReplaceText         string
	SimilarityThreshold float64 // Defaults to 0.8 if zero.
}

// AiderStrategy implements the `aider` tool: similarity-matched edits,
// tolerant of minor drift between an LLM's recollection of a snippet and the
// current file contents. Similarity is difflib's SequenceMatcher ratio over
// runes (see findFuzzyMatch), not a Levenshtein edit distance.
type AiderStrategy struct {
	Path  string
	Edits []FuzzyEdit

	name string
	kind remote.FileKind
}

func NewAiderStrategy(path string, edits []FuzzyEdit) *AiderStrategy {
	name, kind := SplitPath(path)
	return &AiderStrategy{Path: path, Edits: edits, name: name, kind: kind}
}

func (s *AiderStrategy) Name() string { return "aider" }

func (s *AiderStrategy) ComputeChanges(ctx context.Context, env *Env) ([]Change, error) {
	if len(s.Edits) == 0 {
		return nil, mcperr.Validation("edits must not be empty")
	}
	if len(s.Edits) > 20 {
		return nil, mcperr.Validation("edits must not exceed 20 entries")
	}
	for _, e := range s.Edits {
		if len(e.SearchText) > 1000 {
			return nil, mcperr.Validation("searchText must not exceed 1000 characters")
		}
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
	newText, _, err := applyFuzzyEdits(userText, s.Edits)
	if err != nil {
		return nil, err
	}
	return []Change{{Name: s.name, Kind: s.kind, Content: newText}}, nil
}

// applyFuzzyEdits applies each edit in order against the current text,
// re-searching after each replacement so edits can target text that only
// exists after an earlier edit in the same batch. Returns the edited text
// and the count actually applied.
func applyFuzzyEdits(text string, edits []FuzzyEdit) (string, int, error) {
	applied := 0
	for _, e := range edits {
		threshold := e.SimilarityThreshold
		if threshold == 0 {
			threshold = 0.8
		}
		start, end, ratio := findFuzzyMatch(text, e.SearchText)
		if ratio < threshold {
			return "", applied, mcperr.Validation("no match above threshold")
		}
		runes := []rune(text)
		text = string(runes[:start]) + e.ReplaceText + string(runes[end:])
		applied++
	}
	return text, applied, nil
}

func (s *AiderStrategy) ApplyChanges(ctx context.Context, env *Env, validated []Change) ([]AppliedChange, error) {
	return applySingleFileChange(ctx, env, validated[0])
}

func (s *AiderStrategy) Rollback(ctx context.Context, env *Env) error { return nil }
