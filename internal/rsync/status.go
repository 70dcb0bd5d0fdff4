package rsync

import (
	"context"

	"github.com/msolo/mcp-gas/internal/status"
)

// Name implements status.Inspector.
func (e *Engine) Name() string { return "sync" }

// Inspect implements status.Inspector: a dryrun pull preview, so checking
// status never writes project files locally or to the Remote (spec §6
// status tool, "sync" section). It still takes the project lock, and
// resolving the working directory creates the repo on first use.
func (e *Engine) Inspect(ctx context.Context, scriptID string) (status.Section, error) {
	res, err := e.Run(ctx, Request{ScriptID: scriptID, Operation: OpPull, Dryrun: true})
	if err != nil {
		return status.Section{}, err
	}
	healthy := res.Summary.Updates == 0 && res.Summary.Adds == 0 && res.Summary.Deletions == 0
	return status.Section{
		Name:    "sync",
		Healthy: healthy,
		Detail: map[string]any{
			"unchanged":   res.Summary.Unchanged,
			"updates":     res.Summary.Updates,
			"adds":        res.Summary.Adds,
			"deletions":   res.Summary.Deletions,
			"isBootstrap": res.Summary.IsBootstrap,
		},
	}, nil
}
