package api

import (
	"encoding/json"
	"strings"

	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/tool"
	"github.com/invopop/jsonschema"
)

type (
	openAPIDocument struct {
		OpenAPI string                     `json:"openapi"`
		Info    openAPIInfo                `json:"info"`
		Paths   map[string]openAPIPathItem `json:"paths"`
		Tags    []openAPITag               `json:"tags"`
	}

	openAPIInfo struct {
		Title       string         `json:"title"`
		Version     string         `json:"version"`
		Description string         `json:"description"`
		Toolkit     openAPIToolkit `json:"x-openwebui-toolkit"`
	}

	openAPIToolkit struct {
		Category     string   `json:"category"`
		Capabilities []string `json:"capabilities"`
		AuthRequired bool     `json:"auth_required"`
	}

	openAPITag struct {
		Name string `json:"name"`
	}

	openAPIPathItem struct {
		Post *openAPIOperation `json:"post"`
	}

	openAPIOperation struct {
		OperationID string                     `json:"operationId"`
		Summary     string                     `json:"summary"`
		Description string                     `json:"description"`
		Tags        []string                   `json:"tags"`
		RequestBody openAPIBody                `json:"requestBody"`
		Responses   map[string]openAPIResponse `json:"responses"`
	}

	openAPIBody struct {
		Required bool                        `json:"required"`
		Content  map[string]openAPIMediaType `json:"content"`
	}

	openAPIResponse struct {
		Description string                      `json:"description"`
		Content     map[string]openAPIMediaType `json:"content"`
	}

	openAPIMediaType struct {
		Schema json.RawMessage `json:"schema"`
	}
)

const (
	tagDocuments = "Documents"
	tagKnowledge = "Knowledge"
	tagIngest    = "Web Scraper"
)

func newOpenAPIDocument(catalog *tool.Catalog, version string) (*openAPIDocument, error) {
	errorSchema, err := errorBodySchema()
	if err != nil {
		return nil, err
	}

	doc := &openAPIDocument{
		OpenAPI: "3.1.0",
		Info: openAPIInfo{
			Title:       "docstore",
			Version:     version,
			Description: "Versioned document storage with a knowledge graph and web scraping for LLM tool use.",
			Toolkit: openAPIToolkit{
				Category:     "document-management",
				Capabilities: []string{"document-storage", "web-scraping", "git-versioning", "memory"},
				AuthRequired: false,
			},
		},
		Paths: map[string]openAPIPathItem{},
		Tags:  []openAPITag{{Name: tagDocuments}, {Name: tagKnowledge}, {Name: tagIngest}},
	}

	for _, t := range catalog.Tools() {
		summary, _, _ := strings.Cut(t.Description, ". ")
		doc.Paths["/tools/"+t.Name] = openAPIPathItem{
			Post: &openAPIOperation{
				OperationID: t.Name,
				Summary:     strings.TrimSuffix(summary, "."),
				Description: t.Description,
				Tags:        []string{tagOf(t.Name)},
				RequestBody: openAPIBody{
					Required: true,
					Content:  jsonContent(t.InputSchema),
				},
				Responses: map[string]openAPIResponse{
					"200":     {Description: "Successful Response", Content: jsonContent(t.OutputSchema)},
					"default": {Description: "Error Response", Content: jsonContent(errorSchema)},
				},
			},
		}
	}
	return doc, nil
}

func jsonContent(schema json.RawMessage) map[string]openAPIMediaType {
	return map[string]openAPIMediaType{
		"application/json": {Schema: schema},
	}
}

func tagOf(name string) string {
	switch {
	case strings.HasPrefix(name, "scrape_"):
		return tagIngest
	case strings.Contains(name, "document"), strings.Contains(name, "revision"), strings.Contains(name, "repository"):
		return tagDocuments
	default:
		return tagKnowledge
	}
}

func errorBodySchema() (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&ErrorBody{})
	schema.Version = ""
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode error schema")
	}
	return data, nil
}
