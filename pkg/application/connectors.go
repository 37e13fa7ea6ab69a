// Package application implements the public operations of the engine:
// synchronizing teams and portfolios, validating configuration and writing
// derived values back to remote work items.
package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

var (
	// ErrFieldNotFound is returned when a field reference matches nothing in
	// the remote field catalog.
	ErrFieldNotFound = errors.New("field not found")
	// ErrSettingsRequired is returned when a team or portfolio is nil.
	ErrSettingsRequired = errors.New("team or portfolio settings required")
)

// Connectors resolves a connection to an initialized connector.
type Connectors interface {
	Connect(ctx context.Context, conn *connection.Connection) (plugin.Connector, error)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
