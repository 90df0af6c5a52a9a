package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

func decodeOpenAPI(t *testing.T, data []byte) OpenAPIDocument {
	t.Helper()
	var doc OpenAPIDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return doc
}

func TestGenerateOpenAPI(t *testing.T) {
	srv := mcplib.NewServer(mcplib.ServerInfo{Name: "test", Version: "0.1.0"})
	srv.Tool("plan_tool").
		Description("A plan tool").
		Handler(func(ctx context.Context, args PlanArgs) (string, error) {
			return "ok", nil
		})

	data, err := GenerateOpenAPI(srv)
	if err != nil {
		t.Fatalf("GenerateOpenAPI failed: %v", err)
	}
	doc := decodeOpenAPI(t, data)

	if doc.OpenAPI != "3.0.3" {
		t.Errorf("expected openapi 3.0.3, got %s", doc.OpenAPI)
	}
	if doc.Info.Version != SchemaVersion {
		t.Errorf("expected schema version %s, got %s", SchemaVersion, doc.Info.Version)
	}
	path, ok := doc.Paths["/tools/plan_tool"]
	if !ok || path.Post == nil {
		t.Fatalf("expected POST /tools/plan_tool, got paths: %v", doc.Paths)
	}
	if path.Post.OperationID != "plan_tool" || path.Post.Summary != "A plan tool" {
		t.Errorf("unexpected operation: %+v", path.Post)
	}
}

func TestGenerateOpenAPI_NoArgs(t *testing.T) {
	srv := mcplib.NewServer(mcplib.ServerInfo{Name: "test", Version: "0.1.0"})
	srv.Tool("no_args_tool").
		Description("No args").
		Handler(func(ctx context.Context, args struct{}) (string, error) {
			return "ok", nil
		})

	data, err := GenerateOpenAPI(srv)
	if err != nil {
		t.Fatalf("GenerateOpenAPI failed: %v", err)
	}
	path, ok := decodeOpenAPI(t, data).Paths["/tools/no_args_tool"]
	if !ok || path.Post == nil {
		t.Fatal("expected POST /tools/no_args_tool")
	}
	if path.Post.RequestBody != nil {
		t.Error("expected no request body for empty args tool")
	}
}

func TestSchemaHasProperties(t *testing.T) {
	tests := []struct {
		name   string
		schema any
		want   bool
	}{
		{"nil", nil, false},
		{"not a map", "object", false},
		{"no properties", map[string]any{"type": "object"}, false},
		{"empty properties", map[string]any{"properties": map[string]any{}}, false},
		{"with properties", map[string]any{"properties": map[string]any{"plan_id": map[string]any{}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := schemaHasProperties(tt.schema); got != tt.want {
				t.Errorf("schemaHasProperties = %v, want %v", got, tt.want)
			}
		})
	}
}
