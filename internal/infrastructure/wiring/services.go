package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/config"
	"github.com/felixgeelhaar/worksync/pkg/application"
	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/plugin"
)

// AppServices exposes the application services wired to one workspace.
type AppServices struct {
	Workspace  *Workspace
	Settings   *config.Settings
	Logger     *slog.Logger
	Connectors *plugin.Resolver
	Catalog    *application.FieldCatalog
	Sync       *application.SyncService
	Validation *application.ValidationService
	WriteBack  *application.WriteBackService
	Trigger    *application.WriteBackTrigger
	Boards     *application.BoardService
}

// BuildAppServices wires the services for a workspace root. Problems with
// optional files (settings, plugin registry) fall back to defaults and are
// returned alongside usable services.
func BuildAppServices(root string, logger *slog.Logger) (*AppServices, error) {
	return BuildAppServicesWith(root, logger)
}

// BuildAppServicesWith is BuildAppServices with extra resolver options, such
// as additional builtin connectors.
func BuildAppServicesWith(root string, logger *slog.Logger, opts ...plugin.ResolverOption) (*AppServices, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var loadErrs []error
	workspace, err := NewWorkspace(root)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	settings, err := config.LoadSettings(root)
	if err != nil {
		loadErrs = append(loadErrs, fmt.Errorf("settings fallback: %w", err))
		settings = &config.Settings{}
	}

	catalogTTL := settings.CatalogTTL
	if catalogTTL <= 0 {
		catalogTTL = application.DefaultCatalogTTL
	}
	concurrency := settings.Concurrency
	if concurrency <= 0 {
		concurrency = application.DefaultConcurrency
	}

	resolverOpts := append([]plugin.ResolverOption{plugin.WithSecrets(config.NewEnvSecrets())}, opts...)
	connectors := plugin.NewResolver(workspace.Registry, resolverOpts...)
	catalog := application.NewFieldCatalog(catalogTTL)

	syncSvc := application.NewSyncService(connectors, catalog,
		application.WithSyncLogger(logger),
		application.WithConcurrency(concurrency))
	writeBack := application.NewWriteBackService(connectors, catalog, logger)

	services := &AppServices{
		Workspace:  workspace,
		Settings:   settings,
		Logger:     logger,
		Connectors: connectors,
		Catalog:    catalog,
		Sync:       syncSvc,
		Validation: application.NewValidationService(connectors, catalog, settings.ValidationTimeout, logger),
		WriteBack:  writeBack,
		Trigger:    application.NewWriteBackTrigger(syncSvc, writeBack, logger),
		Boards:     application.NewBoardService(connectors, logger),
	}
	return services, errors.Join(loadErrs...)
}

// LoadWorkspace reads and validates the workspace configuration.
func (s *AppServices) LoadWorkspace(ctx context.Context) (*connection.Workspace, error) {
	return s.Workspace.Repo.LoadWorkspace(ctx)
}

// Refresh drops cached connectors and field catalogs for every connection in
// ws, so the next call sees changed options.
func (s *AppServices) Refresh(ws *connection.Workspace) {
	for _, c := range ws.Connections {
		s.Connectors.Forget(c.Name)
		s.Catalog.Invalidate(c.Name)
	}
}

// Close stops connector plugin processes.
func (s *AppServices) Close() {
	s.Connectors.Close()
}
