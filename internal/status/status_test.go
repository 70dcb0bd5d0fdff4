package status

import (
	"context"
	"errors"
	"sort"
	"testing"
)

type fakeInspector struct {
	name    string
	section Section
	err     error
}

func (f fakeInspector) Name() string { return f.name }
func (f fakeInspector) Inspect(ctx context.Context, scriptID string) (Section, error) {
	return f.section, f.err
}

func TestAggregateAllSectionsWhenNoneRequested(t *testing.T) {
	inspectors := []Inspector{
		fakeInspector{name: "locks", section: Section{Name: "locks", Healthy: true}},
		fakeInspector{name: "git", section: Section{Name: "git", Healthy: true}},
	}
	got := Aggregate(context.Background(), inspectors, "script123", nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(got))
	}
}

func TestAggregateFiltersBySection(t *testing.T) {
	inspectors := []Inspector{
		fakeInspector{name: "locks", section: Section{Name: "locks", Healthy: true}},
		fakeInspector{name: "git", section: Section{Name: "git", Healthy: true}},
		fakeInspector{name: "sync", section: Section{Name: "sync", Healthy: true}},
	}
	got := Aggregate(context.Background(), inspectors, "script123", []string{"git", "sync"})
	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Name
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "git" || names[1] != "sync" {
		t.Fatalf("unexpected sections: %v", names)
	}
}

func TestAggregateTurnsInspectorErrorIntoUnhealthySection(t *testing.T) {
	inspectors := []Inspector{
		fakeInspector{name: "sync", err: errors.New("remote unreachable")},
	}
	got := Aggregate(context.Background(), inspectors, "script123", nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d", len(got))
	}
	if got[0].Healthy {
		t.Fatal("expected an errored inspector to report Healthy=false")
	}
	if got[0].Error == "" {
		t.Fatal("expected the error message to be populated")
	}
}
