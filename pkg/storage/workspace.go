// Package storage persists the workspace configuration under .worksync/.
package storage

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
)

const WorkspaceDir = ".worksync"
const WorkspaceFile = "workspace.yaml"

// ErrNotInitialized is returned when the workspace directory does not exist.
var ErrNotInitialized = errors.New("workspace not initialized")

//go:embed workspace.schema.json
var workspaceSchemaJSON string

var workspaceSchema = gojsonschema.NewStringLoader(workspaceSchemaJSON)

// WorkspaceSchema returns the JSON schema workspace files are validated
// against.
func WorkspaceSchema() string {
	return workspaceSchemaJSON
}

// SchemaError lists every schema violation of a workspace file.
type SchemaError struct {
	File   string
	Issues []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s does not match the workspace schema: %s", e.File, strings.Join(e.Issues, "; "))
}

type FilesystemRepository struct {
	root        string
	retryConfig retry.Config
}

func NewFilesystemRepository(root string) *FilesystemRepository {
	return &FilesystemRepository{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the workspace root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// Dir returns the .worksync directory.
func (r *FilesystemRepository) Dir() string {
	return filepath.Join(r.root, WorkspaceDir)
}

// ResolvePath ensures the path is a direct child of the .worksync directory.
func (r *FilesystemRepository) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := r.Dir()
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))

	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}

	return cleanPath, nil
}

// Initialize creates the .worksync directory and an empty workspace file
// unless one exists.
func (r *FilesystemRepository) Initialize() error {
	// G301: Use 0700 for directories
	if err := os.MkdirAll(r.Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", WorkspaceDir, err)
	}

	path, err := r.ResolvePath(WorkspaceFile)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return r.SaveWorkspace(&connection.Workspace{})
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(r.Dir())
	return err == nil
}

// SaveWorkspace validates ws and writes it to workspace.yaml.
func (r *FilesystemRepository) SaveWorkspace(ws *connection.Workspace) error {
	if err := ws.Validate(); err != nil {
		return err
	}

	path, err := r.ResolvePath(WorkspaceFile)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ws); err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	// G306: Use 0600 for files
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// LoadWorkspace reads workspace.yaml, checks it against the schema and the
// domain rules, and returns it.
func (r *FilesystemRepository) LoadWorkspace(ctx context.Context) (*connection.Workspace, error) {
	if !r.IsInitialized() {
		return nil, fmt.Errorf("%w: run 'worksync init' in %s", ErrNotInitialized, r.root)
	}

	retryer := retry.New[*connection.Workspace](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) (*connection.Workspace, error) {
		path, err := r.ResolvePath(WorkspaceFile)
		if err != nil {
			return nil, err
		}

		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read workspace file: %w", err)
		}

		return DecodeWorkspace(WorkspaceFile, data)
	})
}

// DecodeWorkspace parses and validates workspace YAML. name is used in error
// messages.
func DecodeWorkspace(name string, data []byte) (*connection.Workspace, error) {
	var ws connection.Workspace
	if len(bytes.TrimSpace(data)) == 0 {
		return &ws, nil
	}

	if err := validateSchema(name, data); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace: %w", err)
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &ws, nil
}

func validateSchema(name string, data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}

	result, err := gojsonschema.Validate(workspaceSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{File: name}
	for _, desc := range result.Errors() {
		schemaErr.Issues = append(schemaErr.Issues, desc.String())
	}
	return schemaErr
}
