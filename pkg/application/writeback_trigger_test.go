package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

func at(t time.Time) *time.Time { return &t }

func newTrigger(c *countingConnector, now time.Time) *WriteBackTrigger {
	connectors := connectorsFor("tracker", c)
	catalog := NewFieldCatalog(time.Minute)
	sync := NewSyncService(connectors, catalog, WithSyncClock(func() time.Time { return now }))
	trigger := NewWriteBackTrigger(sync, NewWriteBackService(connectors, catalog, nil), nil)
	trigger.now = func() time.Time { return now }
	return trigger
}

func TestWriteBackTrigger_ResolveTeamUpdates(t *testing.T) {
	trigger := newTrigger(seededConnector(), jan(10))
	mappings := []writeback.Mapping{
		{ValueSource: writeback.SourceWorkItemAge, AppliesTo: writeback.ScopeTeam, TargetFieldReference: "age"},
		{ValueSource: writeback.SourceCycleTime, AppliesTo: writeback.ScopeTeam, TargetFieldReference: "cycle"},
		{ValueSource: writeback.SourceWorkItemAge, AppliesTo: writeback.ScopePortfolio, TargetFieldReference: "ignored"},
	}
	items := []workitem.WorkItem{
		{ReferenceID: "1", StateCategory: workitem.Doing, StartedDate: at(jan(5))},
		{ReferenceID: "2", StateCategory: workitem.Done, StartedDate: at(jan(3)), ClosedDate: at(jan(8))},
		{ReferenceID: "3", StateCategory: workitem.ToDo},
	}

	updates := trigger.ResolveTeamUpdates(mappings, items)
	want := []writeback.FieldUpdate{
		{WorkItemID: "1", TargetFieldReference: "age", Value: "6"},
		{WorkItemID: "2", TargetFieldReference: "cycle", Value: "6"},
	}
	if len(updates) != len(want) {
		t.Fatalf("got %+v, want %+v", updates, want)
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Errorf("update %d = %+v, want %+v", i, updates[i], want[i])
		}
	}
}

func TestWriteBackTrigger_ResolvePortfolioUpdates(t *testing.T) {
	trigger := newTrigger(seededConnector(), jan(10))
	mappings := []writeback.Mapping{
		{ValueSource: writeback.SourceFeatureSize, AppliesTo: writeback.ScopePortfolio, TargetFieldReference: "size"},
	}
	features := []workitem.WorkItem{{ReferenceID: "F1"}, {ReferenceID: "F2"}}
	teamItems := []workitem.WorkItem{
		{ReferenceID: "1", ParentReferenceID: "F1"},
		{ReferenceID: "2", ParentReferenceID: "F1"},
		{ReferenceID: "2", ParentReferenceID: "F1"},
		{ReferenceID: "3"},
	}

	updates := trigger.ResolvePortfolioUpdates(mappings, features, teamItems)
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %+v", updates)
	}
	if updates[0] != (writeback.FieldUpdate{WorkItemID: "F1", TargetFieldReference: "size", Value: "2"}) {
		t.Errorf("unexpected update %+v", updates[0])
	}
}

func TestWriteBackTrigger_TriggerTeam(t *testing.T) {
	c := seededConnector()
	conn := testConnection()
	conn.WriteBackMappings = []writeback.Mapping{
		{ValueSource: writeback.SourceWorkItemAge, AppliesTo: writeback.ScopeTeam, TargetFieldReference: "Story Points"},
	}

	result, err := newTrigger(c, jan(10)).TriggerTeam(context.Background(), testTeam(conn))
	if err != nil {
		t.Fatalf("TriggerTeam: %v", err)
	}
	if !result.AllSucceeded() || result.SuccessCount() != 1 {
		t.Fatalf("unexpected result: %+v", result.ItemResults)
	}
	item, _ := c.Item("1")
	if got := item.Fields["cf_points"]; len(got) != 1 || got[0] != "6" {
		t.Errorf("age not written back: %v", got)
	}
}

func TestWriteBackTrigger_TriggerPortfolio(t *testing.T) {
	c := seededConnector()
	c.Add(workitem.RawItem{ID: "100", Name: "Auth epic", Type: "Epic", State: "In Progress"})

	conn := testConnection()
	conn.WriteBackMappings = []writeback.Mapping{
		{ValueSource: writeback.SourceFeatureSize, AppliesTo: writeback.ScopePortfolio, TargetFieldReference: "Story Points"},
	}
	team := testTeam(conn)
	team.WorkItemTypes = []string{"Bug"}
	portfolio := &connection.Portfolio{QuerySettings: testTeam(conn).QuerySettings}
	portfolio.WorkItemTypes = []string{"Epic"}

	result, err := newTrigger(c, jan(10)).TriggerPortfolio(context.Background(), portfolio, []connection.Team{*team})
	if err != nil {
		t.Fatalf("TriggerPortfolio: %v", err)
	}
	if result.SuccessCount() != 1 {
		t.Fatalf("unexpected result: %+v", result.ItemResults)
	}
	epic, _ := c.Item("100")
	if got := epic.Fields["cf_points"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("feature size not written back: %v", got)
	}
}

func TestWriteBackTrigger_Errors(t *testing.T) {
	trigger := newTrigger(seededConnector(), jan(10))
	ctx := context.Background()

	if _, err := trigger.TriggerTeam(ctx, nil); !errors.Is(err, ErrSettingsRequired) {
		t.Errorf("expected ErrSettingsRequired, got %v", err)
	}
	if _, err := trigger.TriggerPortfolio(ctx, nil, nil); !errors.Is(err, ErrSettingsRequired) {
		t.Errorf("expected ErrSettingsRequired, got %v", err)
	}

	team := testTeam(testConnection())
	team.Connection = nil
	if _, err := trigger.TriggerTeam(ctx, team); !errors.Is(err, connection.ErrConnectionRequired) {
		t.Errorf("expected ErrConnectionRequired, got %v", err)
	}
}
