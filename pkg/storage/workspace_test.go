package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

const workspaceYAML = `connections:
  - name: jira-cloud
    kind: jira
    options:
      - key: url
        value: https://example.atlassian.net
      - key: api_token
        value: env:JIRA_TOKEN
        secret: true
    additional_fields:
      - id: 1
        name: Size
        reference: Story Points
    write_back:
      - value_source: work_item_age
        applies_to: team
        target_field_reference: customfield_10100
teams:
  - name: Platform
    connection: jira-cloud
    query: project = PLAT
    states:
      todo_states: [To Do]
      doing_states: [In Progress]
      done_states: [Done]
    done_items_cutoff_days: 90
portfolios:
  - name: Roadmap
    connection: jira-cloud
    work_item_types: [Epic]
    states:
      todo_states: [Backlog]
      doing_states: [Active]
      done_states: [Closed]
    size_estimate_field: 1
`

func setupRepo(t *testing.T) *FilesystemRepository {
	t.Helper()
	dir := t.TempDir()
	repo := NewFilesystemRepository(dir)
	if err := repo.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return repo
}

func writeWorkspace(t *testing.T, repo *FilesystemRepository, content string) {
	t.Helper()
	path, err := repo.ResolvePath(WorkspaceFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestRoot(t *testing.T) {
	dir := t.TempDir()
	repo := NewFilesystemRepository(dir)
	if repo.Root() != dir {
		t.Errorf("Root() = %q, want %q", repo.Root(), dir)
	}
	if repo.IsInitialized() {
		t.Error("fresh directory should not be initialized")
	}
}

func TestInitialize_CreatesEmptyWorkspace(t *testing.T) {
	repo := setupRepo(t)
	if !repo.IsInitialized() {
		t.Fatal("expected initialized workspace")
	}

	ws, err := repo.LoadWorkspace(context.Background())
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if len(ws.Connections) != 0 || len(ws.Teams) != 0 {
		t.Errorf("expected empty workspace, got %+v", ws)
	}
}

func TestInitialize_KeepsExistingWorkspace(t *testing.T) {
	repo := setupRepo(t)
	writeWorkspace(t, repo, workspaceYAML)

	if err := repo.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	ws, err := repo.LoadWorkspace(context.Background())
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if len(ws.Connections) != 1 {
		t.Errorf("existing workspace was overwritten")
	}
}

func TestLoadWorkspace_NotInitialized(t *testing.T) {
	repo := NewFilesystemRepository(t.TempDir())
	if _, err := repo.LoadWorkspace(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestLoadWorkspace_Parses(t *testing.T) {
	repo := setupRepo(t)
	writeWorkspace(t, repo, workspaceYAML)

	ws, err := repo.LoadWorkspace(context.Background())
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}

	conn, err := ws.Connection("jira-cloud")
	if err != nil {
		t.Fatal(err)
	}
	if conn.BaseURL() != "https://example.atlassian.net" {
		t.Errorf("BaseURL = %q", conn.BaseURL())
	}
	if !conn.Options[1].IsSecret {
		t.Error("secret flag lost")
	}
	if len(conn.WriteBackMappings) != 1 || conn.WriteBackMappings[0].ValueSource != writeback.SourceWorkItemAge {
		t.Errorf("unexpected mappings: %+v", conn.WriteBackMappings)
	}

	team, err := ws.Team("Platform")
	if err != nil {
		t.Fatal(err)
	}
	if team.DoneItemsCutoffDays != 90 || team.States.Categorize("in progress") != workitem.Doing {
		t.Errorf("unexpected team: %+v", team)
	}

	portfolio, err := ws.Portfolio("Roadmap")
	if err != nil {
		t.Fatal(err)
	}
	if portfolio.SizeEstimateFieldID == nil || *portfolio.SizeEstimateFieldID != 1 {
		t.Errorf("size field not parsed: %+v", portfolio.SizeEstimateFieldID)
	}
}

func TestSaveWorkspace_RoundTrip(t *testing.T) {
	repo := setupRepo(t)
	writeWorkspace(t, repo, workspaceYAML)

	ws, err := repo.LoadWorkspace(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ws.Connections = append(ws.Connections, connection.Connection{Name: "board", Kind: "trello"})
	if err := repo.SaveWorkspace(ws); err != nil {
		t.Fatalf("SaveWorkspace: %v", err)
	}

	again, err := repo.LoadWorkspace(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Connections) != 2 || len(again.Teams) != 1 || len(again.Portfolios) != 1 {
		t.Errorf("round trip lost data: %+v", again)
	}
}

func TestSaveWorkspace_RejectsInvalid(t *testing.T) {
	repo := setupRepo(t)
	ws := &connection.Workspace{Connections: []connection.Connection{{Name: "x"}}}
	if err := repo.SaveWorkspace(ws); err == nil {
		t.Error("expected validation error for a connection without kind")
	}
}

func TestDecodeWorkspace_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{"unknown top-level key", "connectionz: []\n", "connectionz"},
		{"missing kind", "connections:\n  - name: a\n", "kind"},
		{"negative cutoff", "connections:\n  - name: a\n    kind: jira\nteams:\n  - name: t\n    connection: a\n    states: {}\n    done_items_cutoff_days: -3\n", "done_items_cutoff_days"},
		{"unknown value source", "connections:\n  - name: a\n    kind: jira\n    write_back:\n      - value_source: forecast\n        applies_to: team\n        target_field_reference: f\n", "value_source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWorkspace("test.yaml", []byte(tt.yaml))
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error %q does not mention %q", err, tt.mention)
			}
		})
	}
}

func TestDecodeWorkspace_DomainErrors(t *testing.T) {
	content := "connections:\n  - name: a\n    kind: jira\nteams:\n  - name: t\n    connection: missing\n    states:\n      done_states: [Done]\n"
	_, err := DecodeWorkspace("test.yaml", []byte(content))
	if !errors.Is(err, connection.ErrConnectionNotFound) {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestDecodeWorkspace_Empty(t *testing.T) {
	ws, err := DecodeWorkspace("test.yaml", []byte("  \n"))
	if err != nil || ws == nil {
		t.Fatalf("empty file should decode to an empty workspace: %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	repo := NewFilesystemRepository(t.TempDir())

	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"plain file", WorkspaceFile, false},
		{"empty", "", true},
		{"traversal", "../secret.yaml", true},
		{"nested", "sub/file.yaml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := repo.ResolvePath(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolvePath(%q) err = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
			if !tt.wantErr && filepath.Dir(path) != repo.Dir() {
				t.Errorf("path %q escapes %q", path, repo.Dir())
			}
		})
	}
}

func TestPluginRegistry(t *testing.T) {
	repo := setupRepo(t)

	reg, err := repo.LoadPluginRegistry()
	if err != nil {
		t.Fatalf("LoadPluginRegistry on missing file: %v", err)
	}
	if len(reg.Kinds()) != 0 {
		t.Errorf("expected empty registry, got %v", reg.Kinds())
	}

	if err := repo.RegisterConnector("linear", plugin.Registration{
		Binary:  "/usr/local/bin/worksync-connector-linear",
		Options: map[string]string{"team": "ENG"},
	}); err != nil {
		t.Fatalf("RegisterConnector: %v", err)
	}

	reg, err = repo.LoadPluginRegistry()
	if err != nil {
		t.Fatal(err)
	}
	got := reg.Get("linear")
	if got == nil || got.Binary != "/usr/local/bin/worksync-connector-linear" || got.Options["team"] != "ENG" {
		t.Errorf("registration not persisted: %+v", got)
	}

	if err := repo.UnregisterConnector("linear"); err != nil {
		t.Fatalf("UnregisterConnector: %v", err)
	}
	if err := repo.UnregisterConnector("linear"); err == nil {
		t.Error("expected error when unregistering twice")
	}
}
