// Package memory provides an in-process connector backed by a fixture of work
// items. It serves tests, demos and the mock connector binary.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// Kind is the connection kind served by this connector.
const Kind = "memory"

// Option keys understood by Init.
const (
	OptionFixture     = "fixture"
	OptionFail        = "fail"
	OptionFailAuth    = "fail_auth"
	OptionLazyHistory = "lazy_history"
	OptionIDPattern   = "id_pattern"
)

var defaultIDPattern = regexp.MustCompile(`^\d+$`)

var (
	// ErrItemNotFound indicates an id with no item behind it.
	ErrItemNotFound = errors.New("work item not found")

	// ErrFieldNotFound indicates a field id missing from the catalog.
	ErrFieldNotFound = errors.New("field not found")

	// ErrBoardNotFound indicates a board id with no board behind it.
	ErrBoardNotFound = errors.New("board not found")

	// ErrUnauthorized is returned by CheckAuth when fail_auth is set.
	ErrUnauthorized = errors.New("unauthorized")
)

// Update records a successful UpdateField call.
type Update struct {
	ID      string
	FieldID string
	Value   writeback.Value
}

// Connector keeps work items and a field catalog in memory. It is safe for
// concurrent use.
type Connector struct {
	mu          sync.RWMutex
	items       map[string]workitem.RawItem
	order       []string
	fields      []plugin.RemoteField
	updates     []Update
	boards      []Board
	failAuth    bool
	lazyHistory bool
	idPattern   *regexp.Regexp
}

// New creates an empty connector that accepts numeric item ids.
func New() *Connector {
	return &Connector{
		items:     make(map[string]workitem.RawItem),
		idPattern: defaultIDPattern,
	}
}

// Init applies options. A fixture option loads items and fields from a YAML
// file; fail=true makes Init itself fail.
func (c *Connector) Init(options map[string]string) error {
	if options[OptionFail] == "true" {
		return errors.New("memory connector configured to fail")
	}

	c.mu.Lock()
	c.failAuth = options[OptionFailAuth] == "true"
	c.lazyHistory = options[OptionLazyHistory] == "true"
	if p := options[OptionIDPattern]; p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("invalid %s: %w", OptionIDPattern, err)
		}
		c.idPattern = re
	}
	c.mu.Unlock()

	if path := options[OptionFixture]; path != "" {
		return c.LoadFixture(path)
	}
	return nil
}

func (c *Connector) Kind() string         { return Kind }
func (c *Connector) ItemViewPath() string { return "/items/" }

func (c *Connector) CheckAuth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.failAuth {
		return ErrUnauthorized
	}
	return nil
}

// Add stores items, replacing any with the same id. Insertion order is the
// order FetchItems returns.
func (c *Connector) Add(items ...workitem.RawItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		if _, exists := c.items[item.ID]; !exists {
			c.order = append(c.order, item.ID)
		}
		c.items[item.ID] = item
	}
}

// AddFields extends the field catalog.
func (c *Connector) AddFields(fields ...plugin.RemoteField) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = append(c.fields, fields...)
}

// Board is a board served by Boards and BoardInfo.
type Board struct {
	plugin.Board
	Info plugin.BoardInfo
}

// AddBoards registers boards for discovery.
func (c *Connector) AddBoards(boards ...Board) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards = append(c.boards, boards...)
}

func (c *Connector) Boards(ctx context.Context) ([]plugin.Board, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]plugin.Board, 0, len(c.boards))
	for _, b := range c.boards {
		out = append(out, b.Board)
	}
	return out, nil
}

func (c *Connector) BoardInfo(ctx context.Context, boardID string) (plugin.BoardInfo, error) {
	if err := ctx.Err(); err != nil {
		return plugin.BoardInfo{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.boards {
		if b.ID == boardID {
			return b.Info, nil
		}
	}
	return plugin.BoardInfo{}, fmt.Errorf("%w: %s", ErrBoardNotFound, boardID)
}

// Item returns a stored item.
func (c *Connector) Item(id string) (workitem.RawItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// Updates returns the successful writes in call order.
func (c *Connector) Updates() []Update {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Update(nil), c.updates...)
}

func (c *Connector) Fields(ctx context.Context) ([]plugin.RemoteField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]plugin.RemoteField(nil), c.fields...), nil
}

// FetchItems returns items in insertion order. A non-empty expression matches
// item names case-insensitively by substring; "*" matches everything.
func (c *Connector) FetchItems(ctx context.Context, query plugin.Query) ([]workitem.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	expr := strings.ToLower(strings.TrimSpace(query.Expression))
	var out []workitem.RawItem
	for _, id := range c.order {
		item := c.items[id]
		if expr != "" && expr != "*" && !strings.Contains(strings.ToLower(item.Name), expr) {
			continue
		}
		if len(query.WorkItemTypes) > 0 && !containsFold(query.WorkItemTypes, item.Type) {
			continue
		}
		if len(query.States) > 0 && !containsFold(query.States, item.State) {
			continue
		}
		if len(query.IDs) > 0 && !containsFold(query.IDs, item.ID) {
			continue
		}

		item = cloneItem(item)
		if c.lazyHistory {
			item.History = nil
			item.HistoryLoaded = false
		} else {
			item.HistoryLoaded = true
		}
		out = append(out, item)

		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}
	}
	return out, nil
}

func (c *Connector) FetchHistory(ctx context.Context, id string) ([]workitem.StateHistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return append([]workitem.StateHistoryEntry(nil), item.History...), nil
}

func (c *Connector) ValidateItemID(id string) error {
	c.mu.RLock()
	pattern := c.idPattern
	c.mu.RUnlock()
	if !pattern.MatchString(id) {
		return fmt.Errorf("invalid work item id %q", id)
	}
	return nil
}

func (c *Connector) UpdateField(ctx context.Context, id, fieldID string, value writeback.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if !c.hasField(fieldID) {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}

	text := value.Text
	if value.Kind == writeback.KindNumber {
		text = strconv.FormatFloat(value.Number, 'f', -1, 64)
	}

	fields := make(map[string][]string, len(item.Fields)+1)
	for k, v := range item.Fields {
		fields[k] = v
	}
	fields[fieldID] = []string{text}
	item.Fields = fields
	c.items[id] = item

	c.updates = append(c.updates, Update{ID: id, FieldID: fieldID, Value: value})
	return nil
}

func (c *Connector) hasField(id string) bool {
	for _, f := range c.fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

// fixture is the on-disk layout read by LoadFixture.
type fixture struct {
	Fields []plugin.RemoteField `yaml:"fields"`
	Items  []fixtureItem        `yaml:"items"`
	Boards []fixtureBoard       `yaml:"boards"`
}

type fixtureItem struct {
	ID      string              `yaml:"id"`
	Name    string              `yaml:"name"`
	Type    string              `yaml:"type"`
	State   string              `yaml:"state"`
	Tags    []string            `yaml:"tags"`
	Parent  string              `yaml:"parent"`
	Flagged bool                `yaml:"flagged"`
	Order   string              `yaml:"order"`
	Created string              `yaml:"created"`
	Fields  map[string][]string `yaml:"fields"`
	History []fixtureTransition `yaml:"history"`
}

type fixtureBoard struct {
	ID     string                       `yaml:"id"`
	Name   string                       `yaml:"name"`
	Query  string                       `yaml:"query"`
	Types  []string                     `yaml:"types"`
	States workitem.StateClassification `yaml:"states"`
}

type fixtureTransition struct {
	At    string `yaml:"at"`
	State string `yaml:"state"`
	From  string `yaml:"from"`
}

// LoadFixture reads items and fields from a YAML file and adds them.
func (c *Connector) LoadFixture(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- fixture path comes from connection options
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}

	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	items := make([]workitem.RawItem, 0, len(fx.Items))
	for _, fi := range fx.Items {
		item := workitem.RawItem{
			ID:       fi.ID,
			Name:     fi.Name,
			Type:     fi.Type,
			State:    fi.State,
			Tags:     fi.Tags,
			ParentID: fi.Parent,
			Flagged:  fi.Flagged,
			Order:    fi.Order,
			Fields:   fi.Fields,
		}
		if fi.Created != "" {
			created, err := writeback.ParseDate(fi.Created)
			if err != nil {
				return fmt.Errorf("item %s created: %w", fi.ID, err)
			}
			item.CreatedAt = created.UTC()
		}
		for _, tr := range fi.History {
			at, err := writeback.ParseDate(tr.At)
			if err != nil {
				return fmt.Errorf("item %s history: %w", fi.ID, err)
			}
			item.History = append(item.History, workitem.StateHistoryEntry{Timestamp: at.UTC(), State: tr.State, From: tr.From})
		}
		items = append(items, item)
	}

	boards := make([]Board, 0, len(fx.Boards))
	for _, fb := range fx.Boards {
		boards = append(boards, Board{
			Board: plugin.Board{ID: fb.ID, Name: fb.Name},
			Info:  plugin.BoardInfo{Query: fb.Query, WorkItemTypes: fb.Types, States: fb.States},
		})
	}

	c.AddFields(fx.Fields...)
	c.Add(items...)
	c.AddBoards(boards...)
	return nil
}

func cloneItem(item workitem.RawItem) workitem.RawItem {
	item.Tags = append([]string(nil), item.Tags...)
	item.History = append([]workitem.StateHistoryEntry(nil), item.History...)
	if item.Fields != nil {
		fields := make(map[string][]string, len(item.Fields))
		for k, v := range item.Fields {
			fields[k] = append([]string(nil), v...)
		}
		item.Fields = fields
	}
	return item
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
