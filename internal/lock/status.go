package lock

import (
	"context"

	"github.com/msolo/mcp-gas/internal/status"
)

// Name implements status.Inspector.
func (m *Manager) Name() string { return "locks" }

// Inspect implements status.Inspector: a non-blocking read of scriptID's
// current lock state (spec §6 status tool, "locks" section).
func (m *Manager) Inspect(ctx context.Context, scriptID string) (status.Section, error) {
	s := m.StatusOf(scriptID)
	detail := map[string]any{"locked": s.Locked}
	if s.Holder != nil {
		detail["holder"] = map[string]any{
			"pid":       s.Holder.PID,
			"hostname":  s.Holder.Hostname,
			"operation": s.Holder.Operation,
			"timestamp": s.Holder.Timestamp,
		}
	}
	return status.Section{Name: "locks", Healthy: !s.Locked, Detail: detail}, nil
}
