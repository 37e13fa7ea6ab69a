package wiring

import (
	"fmt"

	domainplugin "github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/storage"
)

// Workspace bundles the repository with the connector binaries registered in
// it.
type Workspace struct {
	Repo     *storage.FilesystemRepository
	Registry *domainplugin.Registry
}

// NewWorkspace opens the workspace under root. An unreadable plugin registry
// falls back to an empty one and is reported as the error.
func NewWorkspace(root string) (*Workspace, error) {
	repo := storage.NewFilesystemRepository(root)

	registry, err := repo.LoadPluginRegistry()
	if err != nil {
		return &Workspace{Repo: repo, Registry: domainplugin.NewRegistry()},
			fmt.Errorf("plugin registry fallback: %w", err)
	}
	return &Workspace{Repo: repo, Registry: registry}, nil
}
