// Package plugin defines the capability interface every work-tracking
// connector implements and the go-plugin wiring that lets connectors run as
// separate binaries.
package plugin

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// Connector talks to one remote work-tracking system. The engine never
// branches on the system type; everything system-specific lives behind this
// interface.
type Connector interface {
	// Init configures the connector from resolved connection options.
	Init(options map[string]string) error

	// Kind names the connector, e.g. "jira".
	Kind() string

	// ItemViewPath is appended to the base URL before an item id to build a
	// browser link.
	ItemViewPath() string

	// CheckAuth verifies the remote system is reachable and accepts the
	// configured credentials.
	CheckAuth(ctx context.Context) error

	// Fields lists the remote field catalog.
	Fields(ctx context.Context) ([]RemoteField, error)

	// FetchItems returns every item matching query, pagination resolved.
	FetchItems(ctx context.Context, query Query) ([]workitem.RawItem, error)

	// FetchHistory returns the state history of one item, oldest first.
	FetchHistory(ctx context.Context, id string) ([]workitem.StateHistoryEntry, error)

	// ValidateItemID rejects ids that cannot exist in the remote system.
	ValidateItemID(id string) error

	// UpdateField writes value into the field fieldID of item id.
	UpdateField(ctx context.Context, id, fieldID string, value writeback.Value) error
}

// RemoteField is one entry of a remote field catalog.
type RemoteField struct {
	ID   string              `json:"id"`
	Key  string              `json:"key,omitempty"`
	Name string              `json:"name"`
	Kind writeback.FieldKind `json:"kind"`
	// Layout is the time layout the field expects for date kinds.
	Layout string `json:"layout,omitempty"`
}

// Query selects items from a remote system.
type Query struct {
	// Expression is the system's own query, e.g. JQL or a board id.
	Expression    string
	WorkItemTypes []string
	States        []string
	// CutoffDays lets connectors skip items closed before the retention window.
	CutoffDays int
	// Limit caps the number of items returned; 0 means no cap.
	Limit int
	// IDs restricts the result to these items.
	IDs []string
}

// ErrBoardsNotSupported is returned by connectors without board discovery.
var ErrBoardsNotSupported = errors.New("connector does not support board discovery")

// Board is a remote board a team can be configured from.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BoardInfo is what a board reveals about the team working on it: the query
// that selects its items, the item types on it and its states grouped by
// category.
type BoardInfo struct {
	Query         string                       `json:"query"`
	WorkItemTypes []string                     `json:"work_item_types"`
	States        workitem.StateClassification `json:"states"`
}

// BoardDiscoverer is implemented by connectors that can list boards and read
// their configuration to pre-fill team settings.
type BoardDiscoverer interface {
	Boards(ctx context.Context) ([]Board, error)
	BoardInfo(ctx context.Context, boardID string) (BoardInfo, error)
}
