package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

// SchemaVersion is the tool schema version (semver). Bump the minor version
// when a tool or argument is added, the major version when one is removed.
const SchemaVersion = "1.0.0"

const schemaURI = "resolution://schema"

type schemaResponse struct {
	SchemaVersion string   `json:"schema_version"`
	ServerVersion string   `json:"server_version"`
	Tools         []string `json:"tools"`
}

func (s *Server) schema() schemaResponse {
	tools := s.mcpServer.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return schemaResponse{SchemaVersion: SchemaVersion, ServerVersion: Version, Tools: names}
}

func (s *Server) registerSchemaResource() {
	s.mcpServer.Resource(schemaURI).
		Name(schemaURI).
		Description("Tool schema version and the registered tool names").
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			data, err := json.Marshal(s.schema())
			if err != nil {
				return nil, err
			}
			return &mcplib.ResourceContent{
				URI:      schemaURI,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}
