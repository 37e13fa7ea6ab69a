// Package config loads CLI-level settings: logging, engine tuning and secret
// resolution for connection options.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/worksync/pkg/storage"
)

const settingsFile = "settings.yaml"

// Settings stores engine tuning next to the workspace file. Every field is
// optional; zero values fall back to the engine defaults.
type Settings struct {
	LogLevel          string        `yaml:"log_level,omitempty"`
	LogFormat         string        `yaml:"log_format,omitempty"`
	Concurrency       int           `yaml:"concurrency,omitempty"`
	CatalogTTL        time.Duration `yaml:"catalog_ttl,omitempty"`
	ValidationTimeout time.Duration `yaml:"validation_timeout,omitempty"`
}

// LoadSettings reads .worksync/settings.yaml. A missing file yields empty
// settings.
func LoadSettings(root string) (*Settings, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(settingsFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is confined to the workspace directory
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if s.Concurrency < 0 {
		return nil, fmt.Errorf("settings: concurrency must not be negative")
	}
	return &s, nil
}

func SaveSettings(root string, s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings are nil")
	}

	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(settingsFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
