// Package status implements the `status` tool's aggregation (spec §6,
// "Aggregated health (auth, project, git, locks, cache, sync)"): a thin
// fan-out over per-concern Inspectors, kept independently testable from
// the real collaborators each one wraps.
package status

import (
	"context"
	"sync"
)

// Section is one named slice of the aggregated health report.
type Section struct {
	Name    string         `json:"name"`
	Healthy bool           `json:"healthy"`
	Detail  map[string]any `json:"detail,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Inspector reports one section of the `status` tool's output.
type Inspector interface {
	Name() string
	Inspect(ctx context.Context, scriptID string) (Section, error)
}

// Aggregate runs the requested inspectors concurrently (one goroutine per
// inspector, each writing its own slot of a result slice, joined with a
// sync.WaitGroup) and returns one
// Section per inspector whose Name() was requested. An empty sections list
// means "all of them". An inspector that errors still produces a Section
// (Healthy=false, Error populated) rather than failing the whole report.
func Aggregate(ctx context.Context, inspectors []Inspector, scriptID string, sections []string) []Section {
	want := make(map[string]bool, len(sections))
	for _, s := range sections {
		want[s] = true
	}

	selected := make([]Inspector, 0, len(inspectors))
	for _, insp := range inspectors {
		if len(want) == 0 || want[insp.Name()] {
			selected = append(selected, insp)
		}
	}

	results := make([]Section, len(selected))
	var wg sync.WaitGroup
	for i, insp := range selected {
		wg.Add(1)
		go func(i int, insp Inspector) {
			defer wg.Done()
			sec, err := insp.Inspect(ctx, scriptID)
			if err != nil {
				results[i] = Section{Name: insp.Name(), Healthy: false, Error: err.Error()}
				return
			}
			results[i] = sec
		}(i, insp)
	}
	wg.Wait()
	return results
}
