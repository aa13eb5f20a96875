// Package api serves the tool catalog over HTTP for OpenAPI tool clients.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/habiliai/docstore/config"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/tool"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mokiat/gog"
)

const maxBodySize = 16 << 20

type (
	server struct {
		catalog *tool.Catalog
		logger  *slog.Logger
		version string
		openapi []byte
	}

	// ErrorBody is the response of a failed request.
	ErrorBody struct {
		Error *tool.Error `json:"error"`
	}

	InfoResponse struct {
		Message    string   `json:"message"`
		Version    string   `json:"version"`
		OpenAPIURL string   `json:"openapi_url"`
		Tools      []string `json:"tools"`
	}

	ToolInfo struct {
		Name         string          `json:"name"`
		Description  string          `json:"description"`
		InputSchema  json.RawMessage `json:"input_schema"`
		OutputSchema json.RawMessage `json:"output_schema"`
	}
)

// NewHandler routes
//
//	GET  /               service info
//	GET  /healthz        liveness
//	GET  /openapi.json   OpenAPI 3 document of every tool
//	GET  /tools          tool list with schemas
//	POST /tools/{name}   call a tool with a JSON object body
//	POST /mcp            the same tools over streamable HTTP MCP
func NewHandler(catalog *tool.Catalog, conf *config.ServerConfig, logger *slog.Logger, version string) (http.Handler, error) {
	doc, err := newOpenAPIDocument(catalog, version)
	if err != nil {
		return nil, err
	}
	openapi, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode openapi document")
	}

	s := &server{
		catalog: catalog,
		logger:  logger,
		version: version,
		openapi: openapi,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.info).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	router.HandleFunc("/openapi.json", s.openAPI).Methods(http.MethodGet)
	router.HandleFunc("/tools", s.listTools).Methods(http.MethodGet)
	router.HandleFunc("/tools/{name}", s.callTool).Methods(http.MethodPost)
	router.Handle("/mcp", mcpserver.NewStreamableHTTPServer(
		tool.NewMCPServer(catalog, version),
		mcpserver.WithStateLess(true),
	)).Methods(http.MethodPost)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, errors.Wrapf(errors.ErrNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})

	origins := conf.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Mcp-Session-Id"}),
		handlers.ExposedHeaders([]string{"Content-Length"}),
		handlers.MaxAge(600),
	)
	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)

	return cors(recovery(router)), nil
}

func (s *server) info(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, &InfoResponse{
		Message:    "docstore tool server",
		Version:    s.version,
		OpenAPIURL: "/openapi.json",
		Tools: gog.Map(s.catalog.Tools(), func(t *tool.Tool) string {
			return t.Name
		}),
	})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Warn("failed to write health response", "err", err)
	}
}

func (s *server) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(s.openapi); err != nil {
		s.logger.Warn("failed to write openapi document", "err", err)
	}
}

func (s *server) listTools(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, gog.Map(s.catalog.Tools(), func(t *tool.Tool) ToolInfo {
		return ToolInfo{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			OutputSchema: t.OutputSchema,
		}
	}))
}

func (s *server) callTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.catalog.Get(name); !ok {
		s.writeError(w, errors.Wrapf(errors.ErrNotFound, "tool %s", name))
		return
	}

	args, err := decodeArguments(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out, err := s.catalog.Call(r.Context(), name, args)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// decodeArguments reads a JSON object. An empty body is an empty object.
func decodeArguments(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "failed to read request body: %v", err)
	}
	args := map[string]any{}
	if len(data) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "request body must be a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	body := &ErrorBody{Error: tool.NewError(err)}
	status := body.Error.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", body.Error.Kind, "err", err)
	}
	s.writeJSON(w, status, body)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "err", err)
	}
}
