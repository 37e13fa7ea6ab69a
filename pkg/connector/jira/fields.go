package jira

import (
	"context"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// Layouts Jira expects for date and datetime fields.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05.000-0700"
)

// Names of custom fields the connector reads for every issue.
const (
	fieldRank       = "Rank"
	fieldFlagged    = "Flagged"
	fieldEpicLink   = "Epic Link"
	fieldParentLink = "Parent Link"
)

type jiraField struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
	Schema struct {
		Type   string `json:"type"`
		Custom string `json:"custom"`
	} `json:"schema"`
}

// Fields returns the site's field catalog.
func (c *Connector) Fields(ctx context.Context) ([]plugin.RemoteField, error) {
	raw, err := c.fetchFields(ctx)
	if err != nil {
		return nil, err
	}

	fields := make([]plugin.RemoteField, 0, len(raw))
	for _, f := range raw {
		rf := plugin.RemoteField{ID: f.ID, Key: f.Key, Name: f.Name, Kind: writeback.KindText}
		switch f.Schema.Type {
		case "number":
			rf.Kind = writeback.KindNumber
		case "date":
			rf.Kind = writeback.KindDate
			rf.Layout = dateLayout
		case "datetime":
			rf.Kind = writeback.KindDateTime
			rf.Layout = dateTimeLayout
		}
		fields = append(fields, rf)
	}
	return fields, nil
}

func (c *Connector) fetchFields(ctx context.Context) ([]jiraField, error) {
	var raw []jiraField
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/field", nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// wellKnownFields resolves the ids of the rank, flag and parent link custom
// fields once per Init.
func (c *Connector) wellKnownFields(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wellKnown != nil {
		return c.wellKnown, nil
	}

	raw, err := c.fetchFields(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, 4)
	for _, name := range []string{fieldRank, fieldFlagged, fieldEpicLink, fieldParentLink} {
		ids[name] = fieldIDByName(raw, name)
	}
	c.wellKnown = ids
	return ids, nil
}

// fieldIDByName prefers fields that are not provided by system plugins when a
// name is ambiguous.
func fieldIDByName(fields []jiraField, name string) string {
	var matches []jiraField
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	for _, f := range matches {
		if f.Schema.Custom != "" && !strings.Contains(f.Schema.Custom, "plugin.system.customfieldtypes") {
			return f.ID
		}
	}
	return matches[0].ID
}
