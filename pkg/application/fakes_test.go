package application

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/connector/memory"
	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// fakeConnectors hands out pre-built connectors by connection name.
type fakeConnectors struct {
	byName map[string]plugin.Connector
	err    error
	calls  atomic.Int32
}

func connectorsFor(name string, c plugin.Connector) *fakeConnectors {
	return &fakeConnectors{byName: map[string]plugin.Connector{name: c}}
}

func (f *fakeConnectors) Connect(_ context.Context, conn *connection.Connection) (plugin.Connector, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.byName[conn.Name]
	if !ok {
		return nil, fmt.Errorf("no connector for %s", conn.Name)
	}
	return c, nil
}

// countingConnector wraps the memory connector and counts remote calls.
type countingConnector struct {
	*memory.Connector
	fieldCalls   atomic.Int32
	historyCalls atomic.Int32
	fieldsErr    error
	authDelay    time.Duration
	fetchErr     error
	lastQuery    plugin.Query
}

func newCounting() *countingConnector {
	return &countingConnector{Connector: memory.New()}
}

func (c *countingConnector) Fields(ctx context.Context) ([]plugin.RemoteField, error) {
	c.fieldCalls.Add(1)
	if c.fieldsErr != nil {
		return nil, c.fieldsErr
	}
	return c.Connector.Fields(ctx)
}

func (c *countingConnector) FetchHistory(ctx context.Context, id string) ([]workitem.StateHistoryEntry, error) {
	c.historyCalls.Add(1)
	return c.Connector.FetchHistory(ctx, id)
}

func (c *countingConnector) FetchItems(ctx context.Context, q plugin.Query) ([]workitem.RawItem, error) {
	c.lastQuery = q
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.Connector.FetchItems(ctx, q)
}

func (c *countingConnector) CheckAuth(ctx context.Context) error {
	if c.authDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.authDelay):
		}
	}
	return c.Connector.CheckAuth(ctx)
}

var (
	jan = func(day int) time.Time { return time.Date(2025, 1, day, 9, 0, 0, 0, time.UTC) }

	testStates = workitem.StateClassification{
		ToDoStates:  []string{"To Do"},
		DoingStates: []string{"In Progress"},
		DoneStates:  []string{"Done"},
	}
)

func testConnection() *connection.Connection {
	return &connection.Connection{
		Name:    "tracker",
		Kind:    memory.Kind,
		Options: []connection.Option{{Key: connection.OptionURL, Value: "https://tracker.example.com/"}},
		AdditionalFieldDefinitions: []connection.AdditionalFieldDefinition{
			{ID: 1, DisplayName: "Points", Reference: "story points"},
			{ID: 2, DisplayName: "Team", Reference: "cf_team"},
			{ID: 3, DisplayName: "Epic", Reference: "Epic Link"},
		},
	}
}

func testTeam(conn *connection.Connection) *connection.Team {
	return &connection.Team{QuerySettings: connection.QuerySettings{
		Name:           "Platform",
		ConnectionName: conn.Name,
		Connection:     conn,
		States:         testStates,
		BlockedTags:    []string{"blocked"},

		DoneItemsCutoffDays: 30,
	}}
}

func intPtr(i int) *int { return &i }

func seededConnector() *countingConnector {
	c := newCounting()
	c.AddFields(
		plugin.RemoteField{ID: "cf_points", Name: "Story Points", Kind: writeback.KindNumber},
		plugin.RemoteField{ID: "cf_team", Name: "Team", Kind: writeback.KindText},
		plugin.RemoteField{ID: "cf_epic", Name: "Epic Link", Kind: writeback.KindText},
		plugin.RemoteField{ID: "cf_start", Name: "Start Date", Kind: writeback.KindDate, Layout: "2006-01-02"},
	)
	c.Add(
		workitem.RawItem{
			ID: "1", Name: "Login", Type: "Story", State: "In Progress",
			Fields: map[string][]string{"cf_points": {"5"}, "cf_epic": {"100"}},
			History: []workitem.StateHistoryEntry{
				{Timestamp: jan(2), State: "To Do"},
				{Timestamp: jan(5), State: "In Progress"},
			},
		},
		workitem.RawItem{
			ID: "2", Name: "Logout", Type: "Story", State: "Done", Tags: []string{"Blocked"},
			History: []workitem.StateHistoryEntry{
				{Timestamp: jan(3), State: "In Progress"},
				{Timestamp: jan(8), State: "Done"},
			},
		},
		workitem.RawItem{ID: "3", Name: "Signup", Type: "Bug", State: "To Do", ParentID: "100"},
		workitem.RawItem{ID: "4", Name: "Archived", Type: "Story", State: "Won't Do"},
	)
	return c
}
