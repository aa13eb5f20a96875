package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/habiliai/docstore"
	"github.com/habiliai/docstore/api"
	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/internal/mylog"
	"github.com/habiliai/docstore/internal/mytesting"
	"github.com/habiliai/docstore/tool"
	"github.com/stretchr/testify/suite"
)

type APITestSuite struct {
	mytesting.Suite

	ds      *docstore.DocStore
	catalog *tool.Catalog
	handler http.Handler
}

func (s *APITestSuite) SetupTest() {
	s.Suite.SetupTest()

	var err error
	s.ds, err = docstore.New(s, docstore.WithConfig(s.Config), docstore.WithLogger(mylog.Discard()))
	s.Require().NoError(err)
	s.catalog, err = tool.NewCatalog(s.ds, mylog.Discard())
	s.Require().NoError(err)
	s.handler, err = api.NewHandler(s.catalog, &s.Config.Server, mylog.Discard(), "test")
	s.Require().NoError(err)
}

func (s *APITestSuite) TearDownTest() {
	s.Require().NoError(s.ds.Close())
	s.Suite.TearDownTest()
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body)).WithContext(s)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *APITestSuite) decodeError(rec *httptest.ResponseRecorder) *tool.Error {
	var body api.ErrorBody
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	s.Require().NotNil(body.Error)
	return body.Error
}

func (s *APITestSuite) TestHealthAndInfo() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("OK", rec.Body.String())

	rec = s.do(http.MethodGet, "/", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var info api.InfoResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &info))
	s.Equal("test", info.Version)
	s.Equal("/openapi.json", info.OpenAPIURL)
	s.Len(info.Tools, len(s.catalog.Tools()))

	rec = s.do(http.MethodGet, "/tools", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var tools []api.ToolInfo
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &tools))
	s.Len(tools, len(s.catalog.Tools()))
	s.NotEmpty(tools[0].InputSchema)
}

func (s *APITestSuite) TestCallTool() {
	rec := s.do(http.MethodPost, "/tools/write_document", `{"path":"notes/a.md","content":"hello"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/tools/read_document", `{"path":"notes/a.md"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var read tool.DocumentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &read))
	s.Equal("hello", read.Content)
	s.Equal("notes/a.md", read.Document.Path)

	rec = s.do(http.MethodPost, "/tools/list_documents", "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.JSONEq(`{"paths":["notes/a.md"]}`, rec.Body.String())
}

func (s *APITestSuite) TestCallToolErrors() {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		kind   errors.Kind
	}{
		{"unknown tool", "/tools/no_such_tool", `{}`, http.StatusNotFound, errors.KindNotFound},
		{"missing document", "/tools/read_document", `{"path":"missing.md"}`, http.StatusNotFound, errors.KindNotFound},
		{"escape", "/tools/write_document", `{"path":"../x.md","content":"x"}`, http.StatusForbidden, errors.KindOutOfBounds},
		{"not an object", "/tools/read_document", `["a.md"]`, http.StatusBadRequest, errors.KindInvalidParams},
		{"unknown field", "/tools/read_document", `{"path":"a.md","extra":1}`, http.StatusBadRequest, errors.KindInvalidParams},
		{"scraper disabled", "/tools/scrape_to_document", `{"url":"https://example.com"}`, http.StatusServiceUnavailable, errors.KindUnavailable},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, tt.target, tt.body)
			s.Equal(tt.status, rec.Code, rec.Body.String())
			s.Equal(tt.kind, s.decodeError(rec).Kind)
		})
	}
}

func (s *APITestSuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/nope", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(errors.KindNotFound, s.decodeError(rec).Kind)
}

func (s *APITestSuite) TestOpenAPIDocument() {
	rec := s.do(http.MethodGet, "/openapi.json", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var doc struct {
		OpenAPI string `json:"openapi"`
		Info    struct {
			Version string `json:"version"`
			Toolkit struct {
				Category     string   `json:"category"`
				AuthRequired bool     `json:"auth_required"`
				Capabilities []string `json:"capabilities"`
			} `json:"x-openwebui-toolkit"`
		} `json:"info"`
		Paths map[string]struct {
			Post struct {
				OperationID string   `json:"operationId"`
				Tags        []string `json:"tags"`
				RequestBody struct {
					Content map[string]struct {
						Schema map[string]any `json:"schema"`
					} `json:"content"`
				} `json:"requestBody"`
			} `json:"post"`
		} `json:"paths"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &doc))

	s.Equal("3.1.0", doc.OpenAPI)
	s.Equal("test", doc.Info.Version)
	s.Equal("document-management", doc.Info.Toolkit.Category)
	s.False(doc.Info.Toolkit.AuthRequired)
	s.Contains(doc.Info.Toolkit.Capabilities, "git-versioning")
	s.Len(doc.Paths, len(s.catalog.Tools()))

	write, ok := doc.Paths["/tools/write_document"]
	s.Require().True(ok)
	s.Equal("write_document", write.Post.OperationID)
	s.Equal([]string{"Documents"}, write.Post.Tags)
	s.Equal("object", write.Post.RequestBody.Content["application/json"].Schema["type"])

	s.Equal([]string{"Knowledge"}, doc.Paths["/tools/upsert_entity"].Post.Tags)
	s.Equal([]string{"Web Scraper"}, doc.Paths["/tools/scrape_to_document"].Post.Tags)
}

func (s *APITestSuite) TestCORS() {
	req := httptest.NewRequest(http.MethodOptions, "/tools/read_document", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))

	handler, err := api.NewHandler(s.catalog, &config.ServerConfig{AllowedOrigins: []string{"https://ui.example.com"}}, mylog.Discard(), "test")
	s.Require().NoError(err)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	s.Equal("https://ui.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func (s *APITestSuite) TestMCPOverHTTP() {
	rec := s.do(http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0.0.0"}}}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("docstore", resp.Result.ServerInfo.Name)
	s.Equal("test", resp.Result.ServerInfo.Version)
}
