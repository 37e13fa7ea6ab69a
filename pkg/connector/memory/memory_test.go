package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

func seeded() *Connector {
	c := New()
	c.AddFields(plugin.RemoteField{ID: "due", Name: "Due Date", Kind: writeback.KindDate})
	c.Add(
		workitem.RawItem{ID: "1", Name: "Login page", Type: "Story", State: "Active",
			History: []workitem.StateHistoryEntry{{Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), State: "Active"}}},
		workitem.RawItem{ID: "2", Name: "Logout bug", Type: "Bug", State: "Closed"},
		workitem.RawItem{ID: "3", Name: "Billing epic", Type: "Epic", State: "New"},
	)
	return c
}

func TestConnector_FetchItemsFilters(t *testing.T) {
	c := seeded()
	ctx := context.Background()

	tests := []struct {
		name  string
		query plugin.Query
		want  []string
	}{
		{"everything", plugin.Query{}, []string{"1", "2", "3"}},
		{"wildcard", plugin.Query{Expression: "*"}, []string{"1", "2", "3"}},
		{"name substring", plugin.Query{Expression: "LOG"}, []string{"1", "2"}},
		{"types", plugin.Query{WorkItemTypes: []string{"bug", "epic"}}, []string{"2", "3"}},
		{"states", plugin.Query{States: []string{"active"}}, []string{"1"}},
		{"ids", plugin.Query{IDs: []string{"3", "1"}}, []string{"1", "3"}},
		{"limit", plugin.Query{Limit: 2}, []string{"1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := c.FetchItems(ctx, tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != len(tt.want) {
				t.Fatalf("expected %v, got %d items", tt.want, len(items))
			}
			for i, id := range tt.want {
				if items[i].ID != id {
					t.Errorf("expected %s at %d, got %s", id, i, items[i].ID)
				}
			}
		})
	}
}

func TestConnector_LazyHistory(t *testing.T) {
	c := seeded()
	if err := c.Init(map[string]string{OptionLazyHistory: "true"}); err != nil {
		t.Fatal(err)
	}

	items, _ := c.FetchItems(context.Background(), plugin.Query{IDs: []string{"1"}})
	if items[0].HistoryLoaded || len(items[0].History) != 0 {
		t.Fatalf("expected history to be withheld, got %+v", items[0])
	}

	history, err := c.FetchHistory(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].State != "Active" {
		t.Errorf("unexpected history %+v", history)
	}

	if _, err := c.FetchHistory(context.Background(), "404"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestConnector_InitFailures(t *testing.T) {
	c := New()
	if err := c.Init(map[string]string{OptionFail: "true"}); err == nil {
		t.Error("expected fail=true to fail Init")
	}
	if err := c.Init(map[string]string{OptionIDPattern: "("}); err == nil {
		t.Error("expected invalid pattern to fail Init")
	}

	if err := c.Init(map[string]string{OptionFailAuth: "true"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CheckAuth(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestConnector_ValidateItemID(t *testing.T) {
	c := New()
	if err := c.ValidateItemID("123"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := c.ValidateItemID("abc")
	if err == nil || !strings.Contains(err.Error(), "abc") {
		t.Errorf("expected error naming the id, got %v", err)
	}

	if err := c.Init(map[string]string{OptionIDPattern: `^[A-Z]+-\d+$`}); err != nil {
		t.Fatal(err)
	}
	if err := c.ValidateItemID("PROJ-1"); err != nil {
		t.Errorf("expected custom pattern to accept key, got %v", err)
	}
}

func TestConnector_UpdateField(t *testing.T) {
	c := seeded()
	ctx := context.Background()

	if err := c.UpdateField(ctx, "1", "due", writeback.Value{Kind: writeback.KindDate, Text: "2025-03-07"}); err != nil {
		t.Fatal(err)
	}
	item, _ := c.Item("1")
	if item.Fields["due"][0] != "2025-03-07" {
		t.Errorf("expected stored value, got %v", item.Fields["due"])
	}

	if err := c.UpdateField(ctx, "1", "nope", writeback.Value{Text: "x"}); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("expected ErrFieldNotFound, got %v", err)
	}
	if err := c.UpdateField(ctx, "9", "due", writeback.Value{Text: "x"}); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
	if got := c.Updates(); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("expected one recorded update, got %+v", got)
	}
}

func TestConnector_FetchReturnsCopies(t *testing.T) {
	c := seeded()
	items, _ := c.FetchItems(context.Background(), plugin.Query{IDs: []string{"1"}})
	items[0].History[0].State = "mutated"

	stored, _ := c.Item("1")
	if stored.History[0].State != "Active" {
		t.Error("expected FetchItems to return a copy")
	}
}

func TestConnector_LoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	data := `
fields:
  - id: points
    name: Story Points
    kind: number
items:
  - id: "10"
    name: Checkout
    type: Story
    state: Done
    tags: [payments]
    parent: "1"
    created: "2025-01-02"
    fields:
      points: ["5"]
    history:
      - at: "2025-01-03T09:00:00Z"
        state: Doing
        from: ToDo
      - at: "2025-01-05T17:00:00Z"
        state: Done
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	c := New()
	if err := c.Init(map[string]string{OptionFixture: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	item, ok := c.Item("10")
	if !ok {
		t.Fatal("expected fixture item")
	}
	if item.ParentID != "1" || item.Fields["points"][0] != "5" || len(item.History) != 2 {
		t.Errorf("unexpected item %+v", item)
	}
	if item.History[0].From != "ToDo" || item.History[1].Timestamp.Hour() != 17 {
		t.Errorf("unexpected history %+v", item.History)
	}
	if item.CreatedAt.Day() != 2 {
		t.Errorf("unexpected created date %v", item.CreatedAt)
	}

	fields, _ := c.Fields(context.Background())
	if len(fields) != 1 || fields[0].Kind != writeback.KindNumber {
		t.Errorf("unexpected fields %+v", fields)
	}

	if err := New().LoadFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing fixture")
	}
}

func TestConnector_Boards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	data := `
boards:
  - id: "7"
    name: Platform
    query: team = platform
    types: [Story, Bug]
    states:
      todo_states: [New]
      doing_states: [Active]
      done_states: [Closed]
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	c := New()
	if err := c.LoadFixture(path); err != nil {
		t.Fatalf("LoadFixture failed: %v", err)
	}

	var _ plugin.BoardDiscoverer = c
	ctx := context.Background()

	boards, err := c.Boards(ctx)
	if err != nil {
		t.Fatalf("Boards failed: %v", err)
	}
	if len(boards) != 1 || boards[0] != (plugin.Board{ID: "7", Name: "Platform"}) {
		t.Errorf("unexpected boards %+v", boards)
	}

	info, err := c.BoardInfo(ctx, "7")
	if err != nil {
		t.Fatalf("BoardInfo failed: %v", err)
	}
	if info.Query != "team = platform" || strings.Join(info.WorkItemTypes, ",") != "Story,Bug" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.States.Categorize("active") != workitem.Doing {
		t.Errorf("expected Active to be doing, got %+v", info.States)
	}

	if _, err := c.BoardInfo(ctx, "8"); !errors.Is(err, ErrBoardNotFound) {
		t.Errorf("expected ErrBoardNotFound, got %v", err)
	}
}
