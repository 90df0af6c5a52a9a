package mcp

import (
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

// OpenAPIDocument is the subset of OpenAPI 3.0 needed to describe the
// tools as POST /tools/{name} endpoints.
type OpenAPIDocument struct {
	OpenAPI string              `json:"openapi"`
	Info    OpenAPIInfo         `json:"info"`
	Paths   map[string]PathItem `json:"paths"`
}

type OpenAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

type PathItem struct {
	Post *Operation `json:"post,omitempty"`
}

type Operation struct {
	OperationID string              `json:"operationId"`
	Summary     string              `json:"summary,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

type MediaType struct {
	Schema any `json:"schema"`
}

type Response struct {
	Description string `json:"description"`
}

var toolResponses = map[string]Response{
	"200": {Description: "Tool result"},
	"400": {Description: "Invalid arguments"},
	"500": {Description: "Tool failed"},
}

// OpenAPI describes the registered tools.
func (s *Server) OpenAPI() ([]byte, error) {
	return GenerateOpenAPI(s.mcpServer)
}

// GenerateOpenAPI maps every tool of srv to an operation. Tools taking no
// arguments get no request body.
func GenerateOpenAPI(srv *mcplib.Server) ([]byte, error) {
	tools := srv.Tools()

	doc := OpenAPIDocument{
		OpenAPI: "3.0.3",
		Info:    OpenAPIInfo{Title: "Resolution tools", Version: SchemaVersion},
		Paths:   make(map[string]PathItem, len(tools)),
	}
	for _, t := range tools {
		op := &Operation{
			OperationID: t.Name,
			Summary:     t.Description,
			Tags:        []string{"resolution"},
			Responses:   toolResponses,
		}
		if schemaHasProperties(t.InputSchema) {
			op.RequestBody = &RequestBody{
				Required: true,
				Content:  map[string]MediaType{"application/json": {Schema: t.InputSchema}},
			}
		}
		doc.Paths["/tools/"+t.Name] = PathItem{Post: op}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func schemaHasProperties(schema any) bool {
	m, ok := schema.(map[string]any)
	if !ok {
		return false
	}
	props, ok := m["properties"].(map[string]any)
	return ok && len(props) > 0
}
