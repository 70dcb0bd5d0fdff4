package gitops

import (
	"github.com/msolo/mcp-gas/internal/hashutil"
	"github.com/msolo/mcp-gas/internal/mcperr"
	"github.com/msolo/mcp-gas/internal/remote"
)

// CheckConflict implements the Content-Hash Conflict Detector (spec §4.4):
// compares the caller's expectedHash against the hash of current's stored
// (wrapped) bytes. If current is nil (file doesn't exist remotely yet),
// there is nothing to conflict with. force=true always bypasses the check.
func CheckConflict(filename string, current *remote.File, expectedHash string, force bool, operation string) error {
	if expectedHash == "" || force || current == nil {
		return nil
	}
	currentHash := hashutil.HashString(current.Source)
	if hashutil.Equal(expectedHash, currentHash) {
		return nil
	}
	preview := current.Source
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return mcperr.Conflict(mcperr.ConflictDetails{
		ScriptID:     "",
		Filename:     filename,
		Operation:    operation,
		ExpectedHash: expectedHash,
		CurrentHash:  currentHash,
		DiffPreview:  preview,
	})
}

// findFile looks up name in a Remote file listing.
func findFile(files []remote.File, name string) *remote.File {
	for i := range files {
		if files[i].Name == name {
			return &files[i]
		}
	}
	return nil
}
