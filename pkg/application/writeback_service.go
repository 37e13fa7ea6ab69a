package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// WriteBackService writes field values into remote work items.
type WriteBackService struct {
	connectors Connectors
	catalog    *FieldCatalog
	logger     *slog.Logger
}

func NewWriteBackService(connectors Connectors, catalog *FieldCatalog, logger *slog.Logger) *WriteBackService {
	if catalog == nil {
		catalog = NewFieldCatalog(DefaultCatalogTTL)
	}
	return &WriteBackService{
		connectors: connectors,
		catalog:    catalog,
		logger:     loggerOrDefault(logger),
	}
}

// WriteFieldsToWorkItems applies updates in order and records one result per
// update. A failed update never stops the ones after it; the returned error
// is reserved for a missing connection.
func (s *WriteBackService) WriteFieldsToWorkItems(ctx context.Context, conn *connection.Connection, updates []writeback.FieldUpdate) (*writeback.Result, error) {
	if conn == nil {
		return nil, connection.ErrConnectionRequired
	}
	log := s.logger.With("connection", conn.Name)
	result := &writeback.Result{ItemResults: make([]writeback.ItemResult, 0, len(updates))}
	if len(updates) == 0 {
		return result, nil
	}

	c, err := s.connectors.Connect(ctx, conn)
	if err != nil {
		err = fmt.Errorf("connect %s: %w", conn.Name, err)
		log.Error("write-back aborted", "error", err, "updates", len(updates))
		for _, u := range updates {
			result.Fail(u, err)
		}
		return result, nil
	}

	for _, u := range updates {
		if err := s.apply(ctx, conn.Name, c, u); err != nil {
			log.Warn("write-back failed", "item", u.WorkItemID, "field", u.TargetFieldReference, "error", err)
			result.Fail(u, err)
			continue
		}
		result.Succeed(u)
	}

	log.Info("write-back finished", "updates", len(updates), "succeeded", result.SuccessCount())
	return result, nil
}

func (s *WriteBackService) apply(ctx context.Context, connName string, c plugin.Connector, u writeback.FieldUpdate) error {
	if err := c.ValidateItemID(u.WorkItemID); err != nil {
		return fmt.Errorf("work item %q: %w", u.WorkItemID, err)
	}

	field, err := s.catalog.Resolve(ctx, connName, c, u.TargetFieldReference)
	if err != nil {
		return fmt.Errorf("work item %s: %w", u.WorkItemID, err)
	}

	value, err := writeback.Coerce(u.Value, field.Kind, field.Layout)
	if err != nil {
		return fmt.Errorf("work item %s field %q: %w", u.WorkItemID, u.TargetFieldReference, err)
	}

	if err := c.UpdateField(ctx, u.WorkItemID, field.ID, value); err != nil {
		return fmt.Errorf("work item %s field %q: %w", u.WorkItemID, u.TargetFieldReference, err)
	}
	return nil
}
