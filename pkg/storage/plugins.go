package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

const PluginsFile = "plugins.yaml"

// SavePluginRegistry saves the connector registry to plugins.yaml.
func (r *FilesystemRepository) SavePluginRegistry(reg *plugin.Registry) error {
	path, err := r.ResolvePath(PluginsFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal plugin registry: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// LoadPluginRegistry loads the connector registry from plugins.yaml. A
// missing file is an empty registry.
func (r *FilesystemRepository) LoadPluginRegistry() (*plugin.Registry, error) {
	path, err := r.ResolvePath(PluginsFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return plugin.NewRegistry(), nil
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins file: %w", err)
	}

	var reg plugin.Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plugin registry: %w", err)
	}

	if reg.Connectors == nil {
		reg.Connectors = make(map[string]plugin.Registration)
	}

	return &reg, nil
}

// RegisterConnector adds or replaces the binary serving kind.
func (r *FilesystemRepository) RegisterConnector(kind string, reg plugin.Registration) error {
	registry, err := r.LoadPluginRegistry()
	if err != nil {
		return err
	}

	registry.Set(kind, reg)
	return r.SavePluginRegistry(registry)
}

// UnregisterConnector removes the binary serving kind.
func (r *FilesystemRepository) UnregisterConnector(kind string) error {
	registry, err := r.LoadPluginRegistry()
	if err != nil {
		return err
	}

	if registry.Get(kind) == nil {
		return fmt.Errorf("connector not registered: %s", kind)
	}
	registry.Remove(kind)
	return r.SavePluginRegistry(registry)
}
