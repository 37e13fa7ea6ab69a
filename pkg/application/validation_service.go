package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

// DefaultValidationTimeout bounds each validation probe.
const DefaultValidationTimeout = 30 * time.Second

// ValidationQueryLimit is how many items a settings probe asks for.
const ValidationQueryLimit = 10

// ValidationService checks connections and query settings against the remote
// system. Every check is a single probe: failures are logged and reported as
// false, never retried.
type ValidationService struct {
	connectors Connectors
	catalog    *FieldCatalog
	timeout    time.Duration
	logger     *slog.Logger
}

// NewValidationService creates a validator whose probes each run within
// probeTimeout. A non-positive timeout uses DefaultValidationTimeout.
func NewValidationService(connectors Connectors, catalog *FieldCatalog, probeTimeout time.Duration, logger *slog.Logger) *ValidationService {
	if probeTimeout <= 0 {
		probeTimeout = DefaultValidationTimeout
	}
	if catalog == nil {
		catalog = NewFieldCatalog(DefaultCatalogTTL)
	}
	return &ValidationService{
		connectors: connectors,
		catalog:    catalog,
		timeout:    probeTimeout,
		logger:     loggerOrDefault(logger),
	}
}

// ValidateConnection reports whether conn can be reached with its
// credentials and every additional field reference exists remotely.
func (s *ValidationService) ValidateConnection(ctx context.Context, conn *connection.Connection) bool {
	if conn == nil {
		s.logger.Warn("connection validation failed", "error", connection.ErrConnectionRequired)
		return false
	}
	log := s.logger.With("connection", conn.Name)

	err := s.probe(ctx, func(ctx context.Context) error {
		_, err := s.checkConnection(ctx, conn)
		return err
	})
	if err != nil {
		log.Warn("connection validation failed", "error", err)
		return false
	}
	log.Info("connection valid")
	return true
}

// ValidateTeamSettings reports whether the team's connection is valid and its
// query returns at least one item.
func (s *ValidationService) ValidateTeamSettings(ctx context.Context, team *connection.Team) bool {
	if team == nil {
		s.logger.Warn("team validation failed", "error", ErrSettingsRequired)
		return false
	}
	return s.validateSettings(ctx, s.logger.With("team", team.Name), &team.QuerySettings, team.Validate)
}

// ValidatePortfolioSettings reports whether the portfolio's connection is
// valid and its query returns at least one item.
func (s *ValidationService) ValidatePortfolioSettings(ctx context.Context, portfolio *connection.Portfolio) bool {
	if portfolio == nil {
		s.logger.Warn("portfolio validation failed", "error", ErrSettingsRequired)
		return false
	}
	return s.validateSettings(ctx, s.logger.With("portfolio", portfolio.Name), &portfolio.QuerySettings, portfolio.Validate)
}

func (s *ValidationService) validateSettings(ctx context.Context, log *slog.Logger, settings *connection.QuerySettings, validate func() error) bool {
	if err := validate(); err != nil {
		log.Warn("settings invalid", "error", err)
		return false
	}

	err := s.probe(ctx, func(ctx context.Context) error {
		c, err := s.checkConnection(ctx, settings.Connection)
		if err != nil {
			return err
		}
		items, err := c.FetchItems(ctx, plugin.Query{
			Expression:    settings.Query,
			WorkItemTypes: settings.WorkItemTypes,
			States:        settings.States.States(),
			CutoffDays:    settings.DoneItemsCutoffDays,
			Limit:         ValidationQueryLimit,
		})
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if len(items) == 0 {
			return errors.New("query returned no items")
		}
		return nil
	})
	if err != nil {
		log.Warn("settings validation failed", "error", err)
		return false
	}
	log.Info("settings valid")
	return true
}

// checkConnection initializes the connector, checks credentials and resolves
// every additional field reference against a freshly loaded catalog.
func (s *ValidationService) checkConnection(ctx context.Context, conn *connection.Connection) (plugin.Connector, error) {
	c, err := s.connectors.Connect(ctx, conn)
	if err != nil {
		return nil, err
	}
	if err := c.CheckAuth(ctx); err != nil {
		return nil, fmt.Errorf("authentication: %w", err)
	}
	if len(conn.AdditionalFieldDefinitions) == 0 {
		return c, nil
	}

	s.catalog.Invalidate(conn.Name)
	for _, def := range conn.AdditionalFieldDefinitions {
		if _, err := s.catalog.Resolve(ctx, conn.Name, c, def.Reference); err != nil {
			return nil, fmt.Errorf("additional field %d: %w", def.ID, err)
		}
	}
	return c, nil
}

func (s *ValidationService) probe(ctx context.Context, fn func(context.Context) error) error {
	t := timeout.New[struct{}](timeout.Config{DefaultTimeout: s.timeout})
	_, err := t.Execute(ctx, s.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
