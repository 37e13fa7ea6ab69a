package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/storage"
)

// SchemaVersion is the current MCP tool schema version (semver).
const SchemaVersion = "1.0.0"

const (
	schemaURI    = "worksync://schema"
	workspaceURI = "worksync://workspace"
	redacted     = "********"
)

type schemaResponse struct {
	SchemaVersion   string          `json:"schema_version"`
	ServerVersion   string          `json:"server_version"`
	WorkspaceSchema json.RawMessage `json:"workspace_schema"`
}

func (s *Server) registerResources() {
	s.mcpServer.Resource(schemaURI).
		Name(schemaURI).
		Description("Tool schema version and the JSON schema of workspace.yaml").
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			return jsonResource(schemaURI, schemaResponse{
				SchemaVersion:   SchemaVersion,
				ServerVersion:   Version,
				WorkspaceSchema: json.RawMessage(storage.WorkspaceSchema()),
			})
		})

	s.mcpServer.Resource(workspaceURI).
		Name(workspaceURI).
		Description("The current workspace configuration with secret option values redacted").
		MimeType("application/json").
		Handler(func(ctx context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			ws, err := s.workspace(ctx)
			if err != nil {
				return nil, err
			}
			return jsonResource(workspaceURI, redact(ws))
		})
}

func jsonResource(uri string, v any) (*mcplib.ResourceContent, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcplib.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}

// redact returns a copy of ws whose secret option values are masked.
func redact(ws *connection.Workspace) *connection.Workspace {
	out := *ws
	out.Connections = make([]connection.Connection, len(ws.Connections))
	for i, c := range ws.Connections {
		c.Options = append([]connection.Option(nil), c.Options...)
		for j := range c.Options {
			if c.Options[j].IsSecret {
				c.Options[j].Value = redacted
			}
		}
		out.Connections[i] = c
	}
	return &out
}
