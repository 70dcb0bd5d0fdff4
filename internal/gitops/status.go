package gitops

import (
	"context"

	"github.com/msolo/mcp-gas/gitapi"
	"github.com/msolo/mcp-gas/internal/status"
)

// Name implements status.Inspector.
func (m *Manager) Name() string { return "git" }

// Inspect implements status.Inspector: reports the primary working tree's
// current branch and uncommitted-file count for scriptID (spec §6 status
// tool, "git" section).
func (m *Manager) Inspect(ctx context.Context, scriptID string) (status.Section, error) {
	dir, branch, err := m.Resolver.Resolve(ctx, scriptID, "")
	if err != nil {
		return status.Section{}, err
	}
	changed, err := gitapi.NewWorkDir(dir).Status()
	if err != nil {
		return status.Section{}, err
	}
	return status.Section{
		Name:    "git",
		Healthy: true,
		Detail: map[string]any{
			"branch":           branch,
			"uncommittedCount": len(changed),
			"dir":              dir,
		},
	}, nil
}
