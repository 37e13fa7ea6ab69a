package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

const (
	boardsPath     = "/rest/agile/latest/board"
	boardsPageSize = 50
)

// Jira status category names.
const (
	categoryToDo       = "To Do"
	categoryInProgress = "In Progress"
	categoryDone       = "Done"
)

type boardPage struct {
	IsLast *bool `json:"isLast"`
	Values []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"values"`
}

type boardConfiguration struct {
	Filter *struct {
		ID string `json:"id"`
	} `json:"filter"`
	SubQuery *struct {
		Query string `json:"query"`
	} `json:"subQuery"`
	ColumnConfig struct {
		Columns []struct {
			Statuses []struct {
				ID string `json:"id"`
			} `json:"statuses"`
		} `json:"columns"`
	} `json:"columnConfig"`
}

type jiraStatus struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StatusCategory struct {
		Name string `json:"name"`
	} `json:"statusCategory"`
}

// Boards lists the agile boards visible to the configured credentials.
func (c *Connector) Boards(ctx context.Context) ([]plugin.Board, error) {
	var boards []plugin.Board
	for startAt := 0; ; startAt += boardsPageSize {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(boardsPageSize))

		var page boardPage
		if err := c.doJSON(ctx, http.MethodGet, boardsPath, q, nil, &page); err != nil {
			return nil, fmt.Errorf("boards: %w", err)
		}
		for _, b := range page.Values {
			boards = append(boards, plugin.Board{ID: strconv.Itoa(b.ID), Name: b.Name})
		}

		last := len(page.Values) < boardsPageSize
		if page.IsLast != nil {
			last = *page.IsLast
		}
		if last {
			return boards, nil
		}
	}
}

// BoardInfo reads a board's configuration: the JQL of its filter and
// sub-query, the issue types on it and its column statuses grouped by their
// Jira status category.
func (c *Connector) BoardInfo(ctx context.Context, boardID string) (plugin.BoardInfo, error) {
	var cfg boardConfiguration
	if err := c.doJSON(ctx, http.MethodGet, boardsPath+"/"+url.PathEscape(boardID)+"/configuration", nil, nil, &cfg); err != nil {
		return plugin.BoardInfo{}, fmt.Errorf("board %s configuration: %w", boardID, err)
	}

	info := plugin.BoardInfo{}
	if cfg.Filter != nil && cfg.Filter.ID != "" {
		var filter struct {
			JQL string `json:"jql"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/filter/"+url.PathEscape(cfg.Filter.ID), nil, nil, &filter); err != nil {
			return plugin.BoardInfo{}, fmt.Errorf("board %s filter: %w", boardID, err)
		}
		info.Query = stripOrderBy(filter.JQL)
	}
	if cfg.SubQuery != nil && cfg.SubQuery.Query != "" {
		sub := "(" + cfg.SubQuery.Query + ")"
		if info.Query == "" {
			info.Query = sub
		} else {
			info.Query += " AND " + sub
		}
	}

	types, err := c.boardIssueTypes(ctx, boardID)
	if err != nil {
		return plugin.BoardInfo{}, err
	}
	info.WorkItemTypes = types

	statusIDs := make(map[string]bool)
	for _, col := range cfg.ColumnConfig.Columns {
		for _, s := range col.Statuses {
			if s.ID != "" {
				statusIDs[s.ID] = true
			}
		}
	}
	var statuses []jiraStatus
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/status", nil, nil, &statuses); err != nil {
		return plugin.BoardInfo{}, fmt.Errorf("statuses: %w", err)
	}
	for _, s := range statuses {
		if !statusIDs[s.ID] {
			continue
		}
		switch s.StatusCategory.Name {
		case categoryToDo:
			info.States.ToDoStates = append(info.States.ToDoStates, s.Name)
		case categoryInProgress:
			info.States.DoingStates = append(info.States.DoingStates, s.Name)
		case categoryDone:
			info.States.DoneStates = append(info.States.DoneStates, s.Name)
		}
	}
	return info, nil
}

// boardIssueTypes returns the distinct issue type names of the board's
// issues, sorted.
func (c *Connector) boardIssueTypes(ctx context.Context, boardID string) ([]string, error) {
	q := url.Values{}
	q.Set("maxResults", "1000")
	q.Set("fields", "issuetype")

	var resp struct {
		Issues []struct {
			Fields struct {
				IssueType struct {
					Name string `json:"name"`
				} `json:"issuetype"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := c.doJSON(ctx, http.MethodGet, boardsPath+"/"+url.PathEscape(boardID)+"/issue", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("board %s issues: %w", boardID, err)
	}

	seen := make(map[string]bool)
	var types []string
	for _, is := range resp.Issues {
		name := is.Fields.IssueType.Name
		if name != "" && !seen[name] {
			seen[name] = true
			types = append(types, name)
		}
	}
	sort.Strings(types)
	return types, nil
}
