package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
)

func loadServices(root string, warn io.Writer) (*wiring.AppServices, error) {
	services, loadErr := wiring.BuildAppServices(root, logger)
	if services == nil {
		return nil, fmt.Errorf("failed to build services: %w", loadErr)
	}
	if loadErr != nil {
		fmt.Fprintf(warn, "Warning: %v\n", loadErr)
	}
	return services, nil
}

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid project path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("project path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("project path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

func loadServicesForCurrentDir(warn io.Writer) (*wiring.AppServices, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	return loadServices(root, warn)
}

// loadWorkspace wires services and reads the workspace. Callers must Close
// the services.
func loadWorkspace(ctx context.Context, warn io.Writer) (*wiring.AppServices, *connection.Workspace, error) {
	services, err := loadServicesForCurrentDir(warn)
	if err != nil {
		return nil, nil, err
	}
	ws, err := services.LoadWorkspace(ctx)
	if err != nil {
		services.Close()
		return nil, nil, err
	}
	return services, ws, nil
}
