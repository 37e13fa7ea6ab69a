package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

const fieldsJSON = `[
  {"id": "summary", "key": "summary", "name": "Summary", "custom": false, "schema": {"type": "string"}},
  {"id": "customfield_10019", "key": "customfield_10019", "name": "Rank", "custom": true, "schema": {"type": "any", "custom": "com.pyxis.greenhopper.jira:gh-lexo-rank"}},
  {"id": "customfield_10021", "key": "customfield_10021", "name": "Flagged", "custom": true, "schema": {"type": "array", "custom": "com.atlassian.jira.plugin.system.customfieldtypes:multicheckboxes"}},
  {"id": "customfield_10014", "key": "customfield_10014", "name": "Epic Link", "custom": true, "schema": {"type": "any", "custom": "com.pyxis.greenhopper.jira:gh-epic-link"}},
  {"id": "customfield_10016", "key": "customfield_10016", "name": "Story Points", "custom": true, "schema": {"type": "number"}},
  {"id": "customfield_10015", "key": "customfield_10015", "name": "Start date", "custom": true, "schema": {"type": "date"}},
  {"id": "customfield_10030", "key": "customfield_10030", "name": "Reviewed at", "custom": true, "schema": {"type": "datetime"}}
]`

const searchJSON = `{
  "startAt": 0, "maxResults": 100, "total": 2,
  "issues": [
    {
      "id": "10001", "key": "PROJ-1",
      "fields": {
        "summary": "Checkout flow",
        "issuetype": {"name": "Story"},
        "status": {"name": "Done"},
        "labels": ["payments", "web"],
        "parent": {"key": "PROJ-100"},
        "created": "2025-01-02T09:00:00.000+0000",
        "customfield_10019": "0|i0001:",
        "customfield_10021": [{"value": "Impediment"}],
        "customfield_10016": 5,
        "customfield_10015": null
      },
      "changelog": {
        "total": 2,
        "histories": [
          {"created": "2025-01-05T17:00:00.000+0000", "items": [{"field": "status", "fromString": "In Progress", "toString": "Done"}]},
          {"created": "2025-01-03T09:00:00.000+0000", "items": [
            {"field": "assignee", "fromString": "", "toString": "dev"},
            {"field": "status", "fromString": "To Do", "toString": "In Progress"}
          ]}
        ]
      }
    },
    {
      "id": "10002", "key": "PROJ-2",
      "fields": {
        "summary": "Legacy bug",
        "issuetype": {"name": "Bug"},
        "status": {"name": "To Do"},
        "labels": [],
        "customfield_10014": "PROJ-200",
        "customfield_10021": null
      },
      "changelog": {"total": 45, "histories": []}
    }
  ]
}`

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	auth   string
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
			auth:   r.Header.Get("Authorization"),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func clearEnv(t *testing.T) {
	for _, key := range []string{"JIRA_URL", "JIRA_USERNAME", "JIRA_API_TOKEN", "JIRA_ACCESS_TOKEN"} {
		t.Setenv(key, "")
	}
}

func newConnector(t *testing.T, baseURL string, extra map[string]string) *Connector {
	t.Helper()
	clearEnv(t)
	options := map[string]string{
		OptionURL:      baseURL + "/",
		OptionUsername: "bot@example.com",
		OptionAPIToken: "token",
	}
	for k, v := range extra {
		options[k] = v
	}
	c := New()
	if err := c.Init(options); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return c
}

func TestConnector_InitValidation(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		options map[string]string
	}{
		{"missing url", map[string]string{OptionUsername: "u", OptionAPIToken: "t"}},
		{"missing credentials", map[string]string{OptionURL: "example.atlassian.net"}},
		{"bad timeout", map[string]string{OptionURL: "x", OptionAccessToken: "t", OptionRequestTimeout: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New().Init(tt.options); err == nil {
				t.Error("expected Init to fail")
			}
		})
	}

	c := New()
	if err := c.Init(map[string]string{OptionURL: "example.atlassian.net", OptionAccessToken: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.baseURL != "https://example.atlassian.net" {
		t.Errorf("expected https prefix, got %q", c.baseURL)
	}
}

func TestConnector_InitFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_URL", "https://env.atlassian.net")
	t.Setenv("JIRA_ACCESS_TOKEN", "pat")

	c := New()
	if err := c.Init(map[string]string{}); err != nil {
		t.Fatalf("expected env fallback to configure the connector: %v", err)
	}
	if c.baseURL != "https://env.atlassian.net" {
		t.Errorf("unexpected base URL %q", c.baseURL)
	}
}

func TestConnector_CheckAuth(t *testing.T) {
	srv, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/myself" {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot@example.com" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorMessages":["unauthorized"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"accountId": "abc"}`))
	})

	if err := newConnector(t, srv.URL, nil).CheckAuth(context.Background()); err != nil {
		t.Fatalf("CheckAuth failed: %v", err)
	}

	bad := newConnector(t, srv.URL, map[string]string{OptionAPIToken: "wrong"})
	err := bad.CheckAuth(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 APIError, got %v", err)
	}
	if len(*requests) != 2 {
		t.Errorf("expected 2 requests, got %d", len(*requests))
	}
}

func TestConnector_BearerAuth(t *testing.T) {
	srv, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "bot"}`))
	})
	clearEnv(t)

	c := New()
	if err := c.Init(map[string]string{OptionURL: srv.URL, OptionAccessToken: "pat-123"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CheckAuth(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := (*requests)[0].auth; got != "Bearer pat-123" {
		t.Errorf("expected bearer header, got %q", got)
	}
}

func TestConnector_Fields(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fieldsJSON))
	})

	fields, err := newConnector(t, srv.URL, nil).Fields(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	byID := make(map[string]plugin.RemoteField)
	for _, f := range fields {
		byID[f.ID] = f
	}
	if byID["customfield_10016"].Kind != writeback.KindNumber {
		t.Errorf("expected number kind, got %+v", byID["customfield_10016"])
	}
	if f := byID["customfield_10015"]; f.Kind != writeback.KindDate || f.Layout != "2006-01-02" {
		t.Errorf("unexpected date field %+v", f)
	}
	if f := byID["customfield_10030"]; f.Kind != writeback.KindDateTime || f.Layout == "" {
		t.Errorf("unexpected datetime field %+v", f)
	}
	if byID["summary"].Kind != writeback.KindText {
		t.Errorf("expected text kind for summary")
	}
}

func searchServer(t *testing.T) (*httptest.Server, *[]recordedRequest) {
	return newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/api/2/field":
			_, _ = w.Write([]byte(fieldsJSON))
		case "/rest/api/2/search":
			_, _ = w.Write([]byte(searchJSON))
		case "/rest/api/2/issue/PROJ-2/changelog":
			if r.URL.Query().Get("startAt") == "0" {
				_, _ = w.Write([]byte(`{"startAt": 0, "maxResults": 1, "total": 2, "isLast": false, "values": [
					{"created": "2025-02-01T10:00:00.000+0000", "items": [{"field": "status", "fromString": "Backlog", "toString": "To Do"}]}
				]}`))
				return
			}
			_, _ = w.Write([]byte(`{"startAt": 1, "maxResults": 1, "total": 2, "isLast": true, "values": [
				{"created": "2025-02-03T10:00:00.000+0000", "items": [{"field": "status", "fromString": "To Do", "toString": "In Progress"}]}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestConnector_FetchItems(t *testing.T) {
	srv, requests := searchServer(t)
	c := newConnector(t, srv.URL, nil)

	items, err := c.FetchItems(context.Background(), plugin.Query{Expression: "project = PROJ ORDER BY Rank"})
	if err != nil {
		t.Fatalf("FetchItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.ID != "PROJ-1" || first.Name != "Checkout flow" || first.Type != "Story" || first.State != "Done" {
		t.Errorf("unexpected identity %+v", first)
	}
	if first.ParentID != "PROJ-100" {
		t.Errorf("expected native parent, got %q", first.ParentID)
	}
	if first.Order != "0|i0001:" {
		t.Errorf("expected rank order, got %q", first.Order)
	}
	if !first.Flagged {
		t.Error("expected flagged issue")
	}
	if len(first.Tags) != 2 || first.Tags[0] != "payments" {
		t.Errorf("unexpected tags %v", first.Tags)
	}
	if !first.CreatedAt.Equal(time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected created %v", first.CreatedAt)
	}
	if got := first.Fields["customfield_10016"]; len(got) != 1 || got[0] != "5" {
		t.Errorf("expected numeric field as string, got %v", got)
	}
	if got, ok := first.Fields["customfield_10015"]; !ok || len(got) != 1 || got[0] != "" {
		t.Errorf("expected null field to be present but empty, got %v (ok=%v)", got, ok)
	}
	if _, ok := first.Fields["customfield_99999"]; ok {
		t.Error("expected unknown field to be absent")
	}

	if !first.HistoryLoaded || len(first.History) != 2 {
		t.Fatalf("expected complete history, got %+v", first.History)
	}
	if first.History[0].State != "In Progress" || first.History[0].From != "To Do" || first.History[1].State != "Done" {
		t.Errorf("expected history sorted oldest first, got %+v", first.History)
	}

	second := items[1]
	if second.ParentID != "PROJ-200" {
		t.Errorf("expected epic link fallback, got %q", second.ParentID)
	}
	if second.Flagged {
		t.Error("did not expect null flag to count")
	}
	if second.HistoryLoaded {
		t.Error("expected truncated changelog to leave history unloaded")
	}

	var search recordedRequest
	for _, r := range *requests {
		if r.path == "/rest/api/2/search" {
			search = r
		}
	}
	if !strings.Contains(search.query, "expand=changelog") {
		t.Errorf("expected changelog expansion, got %q", search.query)
	}
	if strings.Contains(search.query, "ORDER") {
		t.Errorf("expected ORDER BY to be stripped, got %q", search.query)
	}
}

func TestConnector_FetchItemsLimit(t *testing.T) {
	srv, requests := searchServer(t)
	c := newConnector(t, srv.URL, nil)

	items, err := c.FetchItems(context.Background(), plugin.Query{Expression: "project = PROJ", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("expected limit to cap results, got %d", len(items))
	}
	for _, r := range *requests {
		if r.path == "/rest/api/2/search" && !strings.Contains(r.query, "maxResults=1") {
			t.Errorf("expected page size 1, got %q", r.query)
		}
	}
}

func TestConnector_FetchHistoryPaginates(t *testing.T) {
	srv, _ := searchServer(t)
	c := newConnector(t, srv.URL, nil)

	history, err := c.FetchHistory(context.Background(), "PROJ-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].State != "To Do" || history[1].State != "In Progress" {
		t.Errorf("unexpected history %+v", history)
	}

	if _, err := c.FetchHistory(context.Background(), "PROJ-404"); err == nil {
		t.Error("expected error for unknown issue")
	}
}

func TestConnector_UpdateField(t *testing.T) {
	srv, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newConnector(t, srv.URL, nil)
	ctx := context.Background()

	if err := c.UpdateField(ctx, "PROJ-1", "customfield_10016", writeback.Value{Kind: writeback.KindNumber, Text: "8", Number: 8}); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateField(ctx, "PROJ-1", "customfield_10015", writeback.Value{Kind: writeback.KindDate, Text: "2025-03-07"}); err != nil {
		t.Fatal(err)
	}

	var numeric, date map[string]map[string]any
	if err := json.Unmarshal([]byte((*requests)[0].body), &numeric); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte((*requests)[1].body), &date); err != nil {
		t.Fatal(err)
	}
	if v, ok := numeric["fields"]["customfield_10016"].(float64); !ok || v != 8 {
		t.Errorf("expected JSON number 8, got %#v", numeric["fields"]["customfield_10016"])
	}
	if v := date["fields"]["customfield_10015"]; v != "2025-03-07" {
		t.Errorf("expected date string, got %#v", v)
	}
	if r := (*requests)[0]; r.method != http.MethodPut || r.path != "/rest/api/2/issue/PROJ-1" {
		t.Errorf("unexpected request %s %s", r.method, r.path)
	}
}

func TestConnector_ValidateItemID(t *testing.T) {
	c := New()
	for _, id := range []string{"PROJ-1", "ab_c-42", "10001"} {
		if err := c.ValidateItemID(id); err != nil {
			t.Errorf("expected %q to be valid, got %v", id, err)
		}
	}
	for _, id := range []string{"", "PROJ", "PROJ-", "-1", "PROJ 1", "1-PROJ"} {
		err := c.ValidateItemID(id)
		if err == nil {
			t.Errorf("expected %q to be rejected", id)
			continue
		}
		if id != "" && !strings.Contains(err.Error(), id) {
			t.Errorf("expected error to name %q, got %v", id, err)
		}
	}
}

func TestConnector_NotInitialized(t *testing.T) {
	if err := New().CheckAuth(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBuildJQL(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query plugin.Query
		want  string
	}{
		{"ids only", plugin.Query{Expression: "ignored", IDs: []string{"A-1", "B-2"}}, `key in ("A-1", "B-2")`},
		{"expression", plugin.Query{Expression: "project = X"}, `(project = X)`},
		{"all clauses", plugin.Query{
			Expression:    "project = X order by rank",
			WorkItemTypes: []string{"Story", "Bug"},
			States:        []string{"In Progress"},
			CutoffDays:    30,
		}, `(project = X) AND issuetype in ("Story", "Bug") AND status in ("In Progress") AND (resolved IS EMPTY OR resolved >= '2025-05-16')`},
		{"no cutoff at zero", plugin.Query{Expression: "project = X", CutoffDays: 0}, `(project = X)`},
		{"quotes escaped", plugin.Query{States: []string{`Say "hi"`}}, `status in ("Say \"hi\"")`},
		{"empty", plugin.Query{}, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildJQL(tt.query, now); got != tt.want {
				t.Errorf("BuildJQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFieldIDByName_PrefersNonPluginFields(t *testing.T) {
	var fields []jiraField
	if err := json.Unmarshal([]byte(`[
	  {"id": "customfield_1", "name": "Flagged", "schema": {"custom": "com.atlassian.jira.plugin.system.customfieldtypes:multicheckboxes"}},
	  {"id": "customfield_2", "name": "flagged", "schema": {"custom": "com.example:flag"}}
	]`), &fields); err != nil {
		t.Fatal(err)
	}
	if got := fieldIDByName(fields, "Flagged"); got != "customfield_2" {
		t.Errorf("expected non-plugin field, got %q", got)
	}
	if got := fieldIDByName(fields, "Missing"); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}

func TestConnector_Boards(t *testing.T) {
	srv, requests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/agile/latest/board" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("startAt") == "0" {
			_, _ = w.Write([]byte(`{"isLast": false, "values": [{"id": 1, "name": "Platform"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"isLast": true, "values": [{"id": 2, "name": "Payments"}]}`))
	})

	boards, err := newConnector(t, srv.URL, nil).Boards(context.Background())
	if err != nil {
		t.Fatalf("Boards failed: %v", err)
	}
	if len(boards) != 2 || boards[0] != (plugin.Board{ID: "1", Name: "Platform"}) || boards[1].ID != "2" {
		t.Errorf("unexpected boards %+v", boards)
	}
	if len(*requests) != 2 || !strings.Contains((*requests)[1].query, "startAt=50") {
		t.Errorf("expected a second page at startAt=50, got %+v", *requests)
	}
}

func TestConnector_BoardInfo(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/agile/latest/board/7/configuration":
			_, _ = w.Write([]byte(`{
			  "filter": {"id": "10040"},
			  "subQuery": {"query": "fixVersion in unreleasedVersions()"},
			  "columnConfig": {"columns": [
			    {"name": "Backlog", "statuses": [{"id": "1"}]},
			    {"name": "Doing", "statuses": [{"id": "3"}, {"id": "4"}]},
			    {"name": "Done", "statuses": [{"id": "5"}]}
			  ]}
			}`))
		case "/rest/api/2/filter/10040":
			_, _ = w.Write([]byte(`{"jql": "project = PLAT ORDER BY Rank ASC"}`))
		case "/rest/agile/latest/board/7/issue":
			_, _ = w.Write([]byte(`{"issues": [
			  {"fields": {"issuetype": {"name": "Story"}}},
			  {"fields": {"issuetype": {"name": "Bug"}}},
			  {"fields": {"issuetype": {"name": "Story"}}}
			]}`))
		case "/rest/api/2/status":
			_, _ = w.Write([]byte(`[
			  {"id": "1", "name": "To Do", "statusCategory": {"name": "To Do"}},
			  {"id": "3", "name": "In Progress", "statusCategory": {"name": "In Progress"}},
			  {"id": "4", "name": "Review", "statusCategory": {"name": "In Progress"}},
			  {"id": "5", "name": "Done", "statusCategory": {"name": "Done"}},
			  {"id": "9", "name": "Other Board", "statusCategory": {"name": "Done"}}
			]`))
		default:
			http.NotFound(w, r)
		}
	})

	info, err := newConnector(t, srv.URL, nil).BoardInfo(context.Background(), "7")
	if err != nil {
		t.Fatalf("BoardInfo failed: %v", err)
	}
	if info.Query != "project = PLAT AND (fixVersion in unreleasedVersions())" {
		t.Errorf("unexpected query %q", info.Query)
	}
	if strings.Join(info.WorkItemTypes, ",") != "Bug,Story" {
		t.Errorf("unexpected types %v", info.WorkItemTypes)
	}
	if strings.Join(info.States.ToDoStates, ",") != "To Do" ||
		strings.Join(info.States.DoingStates, ",") != "In Progress,Review" ||
		strings.Join(info.States.DoneStates, ",") != "Done" {
		t.Errorf("unexpected states %+v", info.States)
	}
}

func TestConnector_BoardInfoMissingBoard(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	if _, err := newConnector(t, srv.URL, nil).BoardInfo(context.Background(), "404"); err == nil {
		t.Fatal("expected an error for a missing board")
	}
}
