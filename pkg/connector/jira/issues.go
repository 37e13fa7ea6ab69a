package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
)

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []issue `json:"issues"`
}

type issue struct {
	ID        string                     `json:"id"`
	Key       string                     `json:"key"`
	Fields    map[string]json.RawMessage `json:"fields"`
	Changelog *changelog                 `json:"changelog"`
}

type changelog struct {
	Total     int       `json:"total"`
	Histories []history `json:"histories"`
}

type history struct {
	Created string        `json:"created"`
	Items   []historyItem `json:"items"`
}

type historyItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

type changelogPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	IsLast     bool      `json:"isLast"`
	Values     []history `json:"values"`
}

// FetchItems runs the query as JQL and pages through the results with the
// changelog expanded.
func (c *Connector) FetchItems(ctx context.Context, query plugin.Query) ([]workitem.RawItem, error) {
	known, err := c.wellKnownFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fields: %w", err)
	}

	jql := BuildJQL(query, time.Now())
	pageSize := searchPageSize
	if query.Limit > 0 && query.Limit < pageSize {
		pageSize = query.Limit
	}

	var items []workitem.RawItem
	for startAt := 0; ; {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(pageSize))
		params.Set("expand", "changelog")
		params.Set("fields", "*all")

		var page searchResponse
		if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/search", params, nil, &page); err != nil {
			return nil, fmt.Errorf("search issues: %w", err)
		}

		for _, is := range page.Issues {
			items = append(items, toRawItem(is, known))
			if query.Limit > 0 && len(items) >= query.Limit {
				return items, nil
			}
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return items, nil
		}
	}
}

// FetchHistory pages through the full changelog of one issue.
func (c *Connector) FetchHistory(ctx context.Context, id string) ([]workitem.StateHistoryEntry, error) {
	var histories []history
	for startAt := 0; ; {
		params := url.Values{}
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(changelogSize))

		var page changelogPage
		path := "/rest/api/2/issue/" + url.PathEscape(id) + "/changelog"
		if err := c.doJSON(ctx, http.MethodGet, path, params, nil, &page); err != nil {
			return nil, fmt.Errorf("changelog of %s: %w", id, err)
		}
		histories = append(histories, page.Values...)

		startAt += len(page.Values)
		if page.IsLast || len(page.Values) == 0 || startAt >= page.Total {
			break
		}
	}
	return statusHistory(histories), nil
}

// BuildJQL turns a query into JQL. An id list selects those issues only;
// otherwise the expression is combined with type, state and cutoff clauses.
func BuildJQL(q plugin.Query, now time.Time) string {
	if len(q.IDs) > 0 {
		return "key in (" + quoteAll(q.IDs) + ")"
	}

	var clauses []string
	if expr := stripOrderBy(q.Expression); expr != "" {
		clauses = append(clauses, "("+expr+")")
	}
	if len(q.WorkItemTypes) > 0 {
		clauses = append(clauses, "issuetype in ("+quoteAll(q.WorkItemTypes)+")")
	}
	if len(q.States) > 0 {
		clauses = append(clauses, "status in ("+quoteAll(q.States)+")")
	}
	if q.CutoffDays > 0 {
		cutoff := now.UTC().AddDate(0, 0, -q.CutoffDays).Format(dateLayout)
		clauses = append(clauses, "(resolved IS EMPTY OR resolved >= '"+cutoff+"')")
	}
	return strings.Join(clauses, " AND ")
}

func stripOrderBy(jql string) string {
	jql = strings.TrimSpace(jql)
	if idx := strings.Index(strings.ToUpper(jql), "ORDER BY"); idx >= 0 {
		jql = strings.TrimSpace(jql[:idx])
	}
	return jql
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}

func toRawItem(is issue, known map[string]string) workitem.RawItem {
	item := workitem.RawItem{
		ID:     is.Key,
		Name:   stringField(is.Fields["summary"]),
		Type:   nestedString(is.Fields["issuetype"], "name"),
		State:  nestedString(is.Fields["status"], "name"),
		Tags:   nonEmpty(fieldValues(is.Fields["labels"])),
		Fields: make(map[string][]string, len(is.Fields)),
	}
	if item.ID == "" {
		item.ID = is.ID
	}

	for id, raw := range is.Fields {
		item.Fields[id] = fieldValues(raw)
	}

	if created, err := parseTime(stringField(is.Fields["created"])); err == nil {
		item.CreatedAt = created
	}

	item.ParentID = nestedString(is.Fields["parent"], "key")
	for _, link := range []string{fieldEpicLink, fieldParentLink} {
		if item.ParentID != "" {
			break
		}
		if id := known[link]; id != "" {
			item.ParentID = firstNonEmpty(fieldValues(is.Fields[id]))
		}
	}

	if id := known[fieldRank]; id != "" {
		item.Order = stringField(is.Fields[id])
	}
	if id := known[fieldFlagged]; id != "" {
		item.Flagged = len(nonEmpty(fieldValues(is.Fields[id]))) > 0
	}

	if is.Changelog != nil && is.Changelog.Total <= len(is.Changelog.Histories) {
		item.History = statusHistory(is.Changelog.Histories)
		item.HistoryLoaded = true
	}
	return item
}

// statusHistory keeps status transitions, oldest first.
func statusHistory(histories []history) []workitem.StateHistoryEntry {
	var entries []workitem.StateHistoryEntry
	for _, h := range histories {
		ts, err := parseTime(h.Created)
		if err != nil {
			continue
		}
		for _, it := range h.Items {
			if !strings.EqualFold(it.Field, "status") {
				continue
			}
			entries = append(entries, workitem.StateHistoryEntry{Timestamp: ts, State: it.ToString, From: it.FromString})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{dateTimeLayout, time.RFC3339Nano, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized jira time %q", s)
}

// fieldValues flattens a Jira field value into strings. A null value is a
// present but empty field.
func fieldValues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return []string{string(raw)}
	}
	if v == nil {
		return []string{""}
	}

	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return []string{""}
		}
		out := make([]string, 0, len(list))
		for _, elem := range list {
			out = append(out, scalarString(elem))
		}
		return out
	}
	return []string{scalarString(v)}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"value", "name", "displayName", "key", "id"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func nestedString(raw json.RawMessage, key string) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
