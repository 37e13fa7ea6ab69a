package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/worksync/pkg/storage"
)

const fixture = `fields:
  - id: cf_points
    name: Story Points
    kind: number
items:
  - id: "1"
    name: Login
    type: Story
    state: In Progress
    parent: "100"
    history:
      - at: "2025-01-02"
        state: To Do
      - at: "2025-01-05"
        state: In Progress
  - id: "2"
    name: Logout
    type: Story
    state: Done
    history:
      - at: "2025-01-03"
        state: In Progress
      - at: "2025-01-08"
        state: Done
  - id: "100"
    name: Accounts
    type: Epic
    state: In Progress
boards:
  - id: "7"
    name: Platform Board
    query: Log
    types: [Story]
    states:
      todo_states: [To Do]
      doing_states: [In Progress]
      done_states: [Done]
`

const workspaceTemplate = `connections:
  - name: demo
    kind: memory
    options:
      - key: url
        value: https://tracker.example.com
      - key: fixture
        value: FIXTURE
    write_back:
      - value_source: work_item_age
        applies_to: team
        target_field_reference: Story Points
      - value_source: feature_size
        applies_to: portfolio
        target_field_reference: Story Points
teams:
  - name: Platform
    connection: demo
    work_item_types: [Story]
    states:
      todo_states: [To Do]
      doing_states: [In Progress]
      done_states: [Done]
    done_items_cutoff_days: 36500
portfolios:
  - name: Roadmap
    connection: demo
    work_item_types: [Epic]
    states:
      todo_states: [To Do]
      doing_states: [In Progress]
      done_states: [Done]
    done_items_cutoff_days: 36500
`

// seedWorkspace writes an initialized workspace backed by the memory fixture
// and points the CLI at it.
func seedWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	repo := storage.NewFilesystemRepository(root)
	if err := repo.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	fixturePath := filepath.Join(root, "fixture.yaml")
	if err := os.WriteFile(fixturePath, []byte(fixture), 0600); err != nil {
		t.Fatal(err)
	}
	ws := strings.Replace(workspaceTemplate, "FIXTURE", fixturePath, 1)
	if err := os.WriteFile(filepath.Join(repo.Dir(), storage.WorkspaceFile), []byte(ws), 0600); err != nil {
		t.Fatal(err)
	}
	projectPath = root
	return root
}

func resetFlags() {
	logLevel, logFormat = "", ""
	syncJSON = false
	teamInitConnection, teamInitBoard = "", ""
	writeBackSets, writeBackFile = nil, ""
	pluginOptions = nil
	mcpTransport, mcpAddr = "stdio", ":8080"
}

// run executes the root command with args and returns stdout, stderr and
// the command error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(func() {
		projectPath = ""
		resetFlags()
	})

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
