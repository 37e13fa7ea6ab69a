package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
)

// DefaultConcurrency bounds parallel history fetches and assembly.
const DefaultConcurrency = 8

// SyncService reads work items for teams and features for portfolios.
type SyncService struct {
	connectors  Connectors
	catalog     *FieldCatalog
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *SyncService) { s.logger = l }
}

func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// WithConcurrency bounds parallel work; values below 1 are ignored.
func WithConcurrency(n int) SyncOption {
	return func(s *SyncService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewSyncService(connectors Connectors, catalog *FieldCatalog, opts ...SyncOption) *SyncService {
	s := &SyncService{
		connectors:  connectors,
		catalog:     catalog,
		now:         time.Now,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = loggerOrDefault(s.logger)
	if s.catalog == nil {
		s.catalog = NewFieldCatalog(DefaultCatalogTTL)
	}
	return s
}

// GetWorkItemsForTeam returns the team's deduplicated work items with stale
// done items removed.
func (s *SyncService) GetWorkItemsForTeam(ctx context.Context, team *connection.Team) ([]workitem.WorkItem, error) {
	if team == nil {
		return nil, ErrSettingsRequired
	}
	log := s.logger.With("run_id", uuid.NewString(), "team", team.Name)

	return s.sync(ctx, log, &team.QuerySettings, func(fields []workitem.ResolvedField, viewPath string) workitem.AssemblyRules {
		return team.AssemblyRules(fields, viewPath)
	})
}

// GetFeaturesForProject returns the portfolio's features with size estimate
// and owner applied.
func (s *SyncService) GetFeaturesForProject(ctx context.Context, portfolio *connection.Portfolio) ([]workitem.WorkItem, error) {
	if portfolio == nil {
		return nil, ErrSettingsRequired
	}
	log := s.logger.With("run_id", uuid.NewString(), "portfolio", portfolio.Name)

	return s.sync(ctx, log, &portfolio.QuerySettings, func(fields []workitem.ResolvedField, viewPath string) workitem.AssemblyRules {
		return portfolio.AssemblyRules(fields, viewPath)
	})
}

// GetParentFeaturesDetails looks up the named parent items on the
// portfolio's connection. Ids the connector rejects or cannot find are left
// out.
func (s *SyncService) GetParentFeaturesDetails(ctx context.Context, portfolio *connection.Portfolio, ids []string) ([]workitem.ParentFeature, error) {
	if portfolio == nil {
		return nil, ErrSettingsRequired
	}
	if portfolio.Connection == nil {
		return nil, fmt.Errorf("%s: %w", portfolio.Name, connection.ErrConnectionRequired)
	}
	log := s.logger.With("run_id", uuid.NewString(), "portfolio", portfolio.Name)

	conn, err := s.connectors.Connect(ctx, portfolio.Connection)
	if err != nil {
		return nil, err
	}

	var wanted []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := conn.ValidateItemID(id); err != nil {
			log.Warn("skipping invalid parent id", "id", id, "error", err)
			continue
		}
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	raw, err := conn.FetchItems(ctx, plugin.Query{IDs: wanted})
	if err != nil {
		return nil, fmt.Errorf("fetch parent features: %w", err)
	}

	base := strings.TrimRight(portfolio.Connection.BaseURL(), "/")
	features := make([]workitem.ParentFeature, 0, len(raw))
	for _, r := range raw {
		features = append(features, workitem.ParentFeature{
			ReferenceID: r.ID,
			Name:        r.Name,
			URL:         base + conn.ItemViewPath() + r.ID,
		})
	}
	log.Debug("resolved parent features", "requested", len(wanted), "found", len(features))
	return features, nil
}

type rulesFunc func(fields []workitem.ResolvedField, itemViewPath string) workitem.AssemblyRules

func (s *SyncService) sync(ctx context.Context, log *slog.Logger, settings *connection.QuerySettings, rules rulesFunc) ([]workitem.WorkItem, error) {
	if settings.Connection == nil {
		return nil, fmt.Errorf("%s: %w", settings.Name, connection.ErrConnectionRequired)
	}
	start := s.now()

	conn, err := s.connectors.Connect(ctx, settings.Connection)
	if err != nil {
		return nil, err
	}

	fields := s.resolveFields(ctx, log, settings.Connection, conn)

	raw, err := conn.FetchItems(ctx, plugin.Query{
		Expression:    settings.Query,
		WorkItemTypes: settings.WorkItemTypes,
		States:        settings.States.States(),
		CutoffDays:    settings.DoneItemsCutoffDays,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch items for %s: %w", settings.Name, err)
	}
	log.Debug("fetched raw items", "count", len(raw))

	if err := s.loadHistories(ctx, conn, raw); err != nil {
		return nil, err
	}

	items, err := s.assemble(ctx, workitem.NewAssembler(rules(fields, conn.ItemViewPath())), raw)
	if err != nil {
		return nil, err
	}

	items = dedupe(items)
	items = workitem.FilterByCutoff(items, settings.DoneItemsCutoffDays, s.now())

	log.Info("synchronized work items",
		"connection", settings.Connection.Name,
		"fetched", len(raw),
		"kept", len(items),
		"duration", s.now().Sub(start))
	return items, nil
}

// resolveFields binds additional field definitions to remote field ids.
// Definitions that do not resolve are left out, which assembles them as
// absent fields.
func (s *SyncService) resolveFields(ctx context.Context, log *slog.Logger, conn *connection.Connection, c plugin.Connector) []workitem.ResolvedField {
	if len(conn.AdditionalFieldDefinitions) == 0 {
		return nil
	}

	catalog, err := s.catalog.Fields(ctx, conn.Name, c)
	if err != nil {
		log.Warn("field catalog unavailable, additional fields skipped", "error", err)
		return nil
	}

	resolved := make([]workitem.ResolvedField, 0, len(conn.AdditionalFieldDefinitions))
	for _, def := range conn.AdditionalFieldDefinitions {
		f, ok := FindField(catalog, def.Reference)
		if !ok {
			log.Warn("additional field not found", "id", def.ID, "reference", def.Reference)
			continue
		}
		resolved = append(resolved, workitem.ResolvedField{DefinitionID: def.ID, RemoteFieldID: f.ID})
	}
	return resolved
}

func (s *SyncService) loadHistories(ctx context.Context, conn plugin.Connector, raw []workitem.RawItem) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range raw {
		if raw[i].HistoryLoaded {
			continue
		}
		item := &raw[i]
		g.Go(func() error {
			history, err := conn.FetchHistory(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("fetch history of %s: %w", item.ID, err)
			}
			item.History = history
			item.HistoryLoaded = true
			return nil
		})
	}
	return g.Wait()
}

func (s *SyncService) assemble(ctx context.Context, assembler *workitem.Assembler, raw []workitem.RawItem) ([]workitem.WorkItem, error) {
	out := make([]workitem.WorkItem, len(raw))
	keep := make([]bool, len(raw))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range raw {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i], keep[i] = assembler.Assemble(raw[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]workitem.WorkItem, 0, len(raw))
	for i, ok := range keep {
		if ok {
			items = append(items, out[i])
		}
	}
	return items, nil
}

// dedupe keeps the first item per reference id.
func dedupe(items []workitem.WorkItem) []workitem.WorkItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ReferenceID] {
			continue
		}
		seen[item.ReferenceID] = true
		out = append(out, item)
	}
	return out
}
