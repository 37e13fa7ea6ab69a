// Package trello implements a board connector for Trello. Lists are workflow
// states, list moves recorded in card actions are the state history and
// custom fields are the field catalog.
package trello

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// Kind is the connection kind served by this connector.
const Kind = "trello"

// CardType is the type reported for every card.
const CardType = "Card"

// Option keys understood by Init.
const (
	OptionAPIKey  = "api_key"
	OptionToken   = "token"
	OptionBoardID = "board_id"
)

// DueField is the id of the card due date in the field catalog.
const DueField = "due"

var apiBaseURL = "https://api.trello.com/1"

var cardIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

const dueLayout = "2006-01-02T15:04:05.000Z07:00"

type trelloList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type trelloLabel struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type customFieldItem struct {
	IDCustomField string            `json:"idCustomField"`
	IDValue       string            `json:"idValue"`
	Value         map[string]string `json:"value"`
}

type trelloCard struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	IDList           string            `json:"idList"`
	Labels           []trelloLabel     `json:"labels"`
	Due              *string           `json:"due"`
	Pos              float64           `json:"pos"`
	CustomFieldItems []customFieldItem `json:"customFieldItems"`
}

type customField struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Options []struct {
		ID    string            `json:"id"`
		Value map[string]string `json:"value"`
	} `json:"options"`
}

type action struct {
	Type string `json:"type"`
	Date string `json:"date"`
	Data struct {
		Card       struct{ ID string } `json:"card"`
		List       *trelloList         `json:"list"`
		ListBefore *trelloList         `json:"listBefore"`
		ListAfter  *trelloList         `json:"listAfter"`
	} `json:"data"`
}

// Connector reads one Trello board.
type Connector struct {
	apiKey  string
	token   string
	boardID string
	client  *http.Client

	mu     sync.Mutex
	fields map[string]map[string]customField
}

// New creates an uninitialized connector.
func New() *Connector {
	return &Connector{}
}

// Init reads credentials and the board id, falling back to TRELLO_API_KEY,
// TRELLO_TOKEN and TRELLO_BOARD_ID.
func (c *Connector) Init(options map[string]string) error {
	c.apiKey = optionOrEnv(options, OptionAPIKey, "TRELLO_API_KEY")
	c.token = optionOrEnv(options, OptionToken, "TRELLO_TOKEN")
	c.boardID = optionOrEnv(options, OptionBoardID, "TRELLO_BOARD_ID")

	if c.apiKey == "" {
		return fmt.Errorf("trello api_key is required (option 'api_key' or env TRELLO_API_KEY)")
	}
	if c.token == "" {
		return fmt.Errorf("trello token is required (option 'token' or env TRELLO_TOKEN)")
	}

	c.client = &http.Client{Timeout: 30 * time.Second}
	c.fields = nil
	return nil
}

func (c *Connector) Kind() string         { return Kind }
func (c *Connector) ItemViewPath() string { return "/c/" }

// CheckAuth reads the member the token belongs to.
func (c *Connector) CheckAuth(ctx context.Context) error {
	var me struct {
		ID string `json:"id"`
	}
	return c.do(ctx, http.MethodGet, "/members/me", map[string]string{"fields": "id"}, nil, &me)
}

// ValidateItemID accepts 24 character hex card ids.
func (c *Connector) ValidateItemID(id string) error {
	if !cardIDPattern.MatchString(id) {
		return fmt.Errorf("invalid trello card id %q", id)
	}
	return nil
}

// Fields returns the board's custom fields plus the card due date.
func (c *Connector) Fields(ctx context.Context) ([]plugin.RemoteField, error) {
	fields, err := c.customFields(ctx, c.boardID)
	if err != nil {
		return nil, err
	}

	out := []plugin.RemoteField{{ID: DueField, Name: "Due", Kind: writeback.KindDateTime, Layout: dueLayout}}
	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		f := fields[id]
		rf := plugin.RemoteField{ID: f.ID, Name: f.Name, Kind: writeback.KindText}
		switch f.Type {
		case "number":
			rf.Kind = writeback.KindNumber
		case "date":
			rf.Kind = writeback.KindDateTime
			rf.Layout = dueLayout
		}
		out = append(out, rf)
	}
	return out, nil
}

func (c *Connector) customFields(ctx context.Context, board string) (map[string]customField, error) {
	if board == "" {
		return nil, fmt.Errorf("trello board_id is required (option 'board_id' or query expression)")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fields, ok := c.fields[board]; ok {
		return fields, nil
	}

	var raw []customField
	if err := c.do(ctx, http.MethodGet, "/boards/"+board+"/customFields", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("custom fields: %w", err)
	}
	fields := make(map[string]customField, len(raw))
	for _, f := range raw {
		fields[f.ID] = f
	}
	if c.fields == nil {
		c.fields = make(map[string]map[string]customField)
	}
	c.fields[board] = fields
	return fields, nil
}

// FetchItems returns the open cards of the board. A non-empty expression
// overrides the configured board id.
func (c *Connector) FetchItems(ctx context.Context, query plugin.Query) ([]workitem.RawItem, error) {
	board := c.board(query.Expression)
	if board == "" {
		return nil, fmt.Errorf("trello board_id is required (option 'board_id' or query expression)")
	}

	var lists []trelloList
	if err := c.do(ctx, http.MethodGet, "/boards/"+board+"/lists", nil, nil, &lists); err != nil {
		return nil, fmt.Errorf("lists: %w", err)
	}
	listNames := make(map[string]string, len(lists))
	for _, l := range lists {
		listNames[l.ID] = l.Name
	}

	fields, err := c.customFields(ctx, board)
	if err != nil {
		return nil, err
	}

	var cards []trelloCard
	if err := c.do(ctx, http.MethodGet, "/boards/"+board+"/cards", map[string]string{
		"fields":           "id,name,idList,labels,due,pos",
		"customFieldItems": "true",
	}, nil, &cards); err != nil {
		return nil, fmt.Errorf("cards: %w", err)
	}

	var actions []action
	if err := c.do(ctx, http.MethodGet, "/boards/"+board+"/actions", map[string]string{
		"filter": "createCard,updateCard:idList",
		"limit":  "1000",
	}, nil, &actions); err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	histories := make(map[string][]action)
	for _, a := range actions {
		histories[a.Data.Card.ID] = append(histories[a.Data.Card.ID], a)
	}
	// The board action feed is capped, so only cards whose creation is in it
	// have a complete history.
	complete := len(actions) < 1000

	var items []workitem.RawItem
	for _, card := range cards {
		state := listNames[card.IDList]
		if len(query.WorkItemTypes) > 0 && !containsFold(query.WorkItemTypes, CardType) {
			continue
		}
		if len(query.States) > 0 && !containsFold(query.States, state) {
			continue
		}
		if len(query.IDs) > 0 && !containsFold(query.IDs, card.ID) {
			continue
		}

		item := toRawItem(card, state, fields)
		if complete {
			item.History = listHistory(histories[card.ID])
			item.HistoryLoaded = true
		}
		items = append(items, item)

		if query.Limit > 0 && len(items) >= query.Limit {
			break
		}
	}
	return items, nil
}

// FetchHistory reads the list moves of one card.
func (c *Connector) FetchHistory(ctx context.Context, id string) ([]workitem.StateHistoryEntry, error) {
	var actions []action
	if err := c.do(ctx, http.MethodGet, "/cards/"+id+"/actions", map[string]string{
		"filter": "createCard,updateCard:idList",
	}, nil, &actions); err != nil {
		return nil, fmt.Errorf("actions of %s: %w", id, err)
	}
	return listHistory(actions), nil
}

// UpdateField writes the due date or a custom field of a card.
func (c *Connector) UpdateField(ctx context.Context, id, fieldID string, value writeback.Value) error {
	if fieldID == DueField {
		return c.do(ctx, http.MethodPut, "/cards/"+id, map[string]string{"due": value.Text}, nil, nil)
	}

	fields, err := c.customFields(ctx, c.boardID)
	if err != nil {
		return err
	}
	f, ok := fields[fieldID]
	if !ok {
		return fmt.Errorf("unknown trello custom field %q", fieldID)
	}

	var body map[string]any
	switch f.Type {
	case "number":
		body = map[string]any{"value": map[string]string{"number": value.Text}}
	case "date":
		body = map[string]any{"value": map[string]string{"date": value.Text}}
	case "checkbox":
		body = map[string]any{"value": map[string]string{"checked": strconv.FormatBool(isTruthy(value.Text))}}
	case "list":
		optionID := ""
		for _, o := range f.Options {
			if strings.EqualFold(o.Value["text"], value.Text) {
				optionID = o.ID
			}
		}
		if optionID == "" {
			return fmt.Errorf("value %q is not an option of trello field %q", value.Text, f.Name)
		}
		body = map[string]any{"idValue": optionID}
	default:
		body = map[string]any{"value": map[string]string{"text": value.Text}}
	}
	return c.do(ctx, http.MethodPut, "/cards/"+id+"/customField/"+fieldID+"/item", nil, body, nil)
}

func (c *Connector) board(expression string) string {
	if b := strings.TrimSpace(expression); b != "" {
		return b
	}
	return c.boardID
}

func toRawItem(card trelloCard, state string, fields map[string]customField) workitem.RawItem {
	item := workitem.RawItem{
		ID:        card.ID,
		Name:      card.Name,
		Type:      CardType,
		State:     state,
		CreatedAt: createdAt(card.ID),
		Fields:    make(map[string][]string),
	}
	for _, l := range card.Labels {
		name := l.Name
		if name == "" {
			name = l.Color
		}
		if name != "" {
			item.Tags = append(item.Tags, name)
		}
	}
	if card.Due != nil {
		item.Fields[DueField] = []string{*card.Due}
	}
	for _, cf := range card.CustomFieldItems {
		item.Fields[cf.IDCustomField] = []string{customFieldValue(cf, fields[cf.IDCustomField])}
	}
	return item
}

func customFieldValue(item customFieldItem, field customField) string {
	if item.IDValue != "" {
		for _, o := range field.Options {
			if o.ID == item.IDValue {
				return o.Value["text"]
			}
		}
		return ""
	}
	for _, key := range []string{"text", "number", "date", "checked"} {
		if v, ok := item.Value[key]; ok {
			return v
		}
	}
	return ""
}

// createdAt decodes the creation time embedded in the first four bytes of a
// Trello object id.
func createdAt(id string) time.Time {
	if len(id) < 8 {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(id[:8], 16, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func listHistory(actions []action) []workitem.StateHistoryEntry {
	var entries []workitem.StateHistoryEntry
	for _, a := range actions {
		ts, err := time.Parse(time.RFC3339Nano, a.Date)
		if err != nil {
			continue
		}
		switch {
		case a.Data.ListAfter != nil:
			entry := workitem.StateHistoryEntry{Timestamp: ts.UTC(), State: a.Data.ListAfter.Name}
			if a.Data.ListBefore != nil {
				entry.From = a.Data.ListBefore.Name
			}
			entries = append(entries, entry)
		case a.Type == "createCard" && a.Data.List != nil:
			entries = append(entries, workitem.StateHistoryEntry{Timestamp: ts.UTC(), State: a.Data.List.Name})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries
}

func (c *Connector) buildURL(endpoint string, params map[string]string) string {
	v := url.Values{}
	v.Set("key", c.apiKey)
	v.Set("token", c.token)
	for k, val := range params {
		v.Set(k, val)
	}
	return apiBaseURL + endpoint + "?" + v.Encode()
}

func (c *Connector) do(ctx context.Context, method, endpoint string, params map[string]string, in, out any) error {
	if c.client == nil {
		return fmt.Errorf("trello connector not initialized")
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(endpoint, params), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("trello API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "x":
		return true
	}
	return false
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func optionOrEnv(options map[string]string, key, env string) string {
	if v := options[key]; v != "" {
		return v
	}
	return os.Getenv(env)
}

// Boards lists the open boards of the token's member.
func (c *Connector) Boards(ctx context.Context) ([]plugin.Board, error) {
	var raw []trelloList
	if err := c.do(ctx, http.MethodGet, "/members/me/boards", map[string]string{
		"fields": "id,name",
		"filter": "open",
	}, nil, &raw); err != nil {
		return nil, fmt.Errorf("boards: %w", err)
	}
	boards := make([]plugin.Board, 0, len(raw))
	for _, b := range raw {
		boards = append(boards, plugin.Board{ID: b.ID, Name: b.Name})
	}
	return boards, nil
}

// BoardInfo suggests team settings for a board. Trello lists carry no
// category, so the first list is To Do, the last is Done and every list in
// between is Doing.
func (c *Connector) BoardInfo(ctx context.Context, boardID string) (plugin.BoardInfo, error) {
	var lists []trelloList
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID+"/lists", map[string]string{"filter": "open"}, nil, &lists); err != nil {
		return plugin.BoardInfo{}, fmt.Errorf("lists: %w", err)
	}

	info := plugin.BoardInfo{Query: boardID, WorkItemTypes: []string{CardType}}
	for i, l := range lists {
		switch {
		case i == 0:
			info.States.ToDoStates = append(info.States.ToDoStates, l.Name)
		case i == len(lists)-1:
			info.States.DoneStates = append(info.States.DoneStates, l.Name)
		default:
			info.States.DoingStates = append(info.States.DoingStates, l.Name)
		}
	}
	return info, nil
}
