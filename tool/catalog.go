// Package tool exposes the document and knowledge operations as named tools
// with JSON schemas, for MCP clients and the HTTP API.
package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"sort"

	"github.com/habiliai/docstore/document"
	"github.com/habiliai/docstore/errors"
	"github.com/habiliai/docstore/ingest"
	"github.com/habiliai/docstore/knowledge"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Backend is what the tools operate on. *docstore.DocStore implements it.
type Backend interface {
	Documents() document.Service
	Knowledge() knowledge.Service
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	IngestAll(ctx context.Context, reqs []ingest.Request) ([]ingest.BatchItem, error)
}

type (
	Tool struct {
		Name         string
		Description  string
		InputSchema  json.RawMessage
		OutputSchema json.RawMessage

		call func(ctx context.Context, args map[string]any) (any, error)
	}

	Catalog struct {
		backend Backend
		logger  *slog.Logger
		tools   map[string]*Tool
	}

	// Error is the body of a failed tool call.
	Error struct {
		Kind    errors.Kind `json:"kind"`
		Message string      `json:"message"`
	}

	// Unchanged is the result of a mutation that had nothing to commit.
	Unchanged struct {
		Changed bool   `json:"changed"`
		Message string `json:"message"`
	}
)

func NewCatalog(backend Backend, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		backend: backend,
		logger:  logger,
		tools:   map[string]*Tool{},
	}
	if err := c.registerDocumentTools(); err != nil {
		return nil, err
	}
	if err := c.registerKnowledgeTools(); err != nil {
		return nil, err
	}
	if err := c.registerIngestTools(); err != nil {
		return nil, err
	}
	return c, nil
}

// Tools returns every registered tool ordered by name.
func (c *Catalog) Tools() []*Tool {
	tools := make([]*Tool, 0, len(c.tools))
	for _, t := range c.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools
}

func (c *Catalog) Get(name string) (*Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Call runs the named tool with JSON-decoded arguments. A mutation with
// nothing to commit succeeds with an Unchanged result.
func (c *Catalog) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := c.tools[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "tool %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	out, err := t.call(ctx, args)
	if errors.Is(err, errors.ErrNothingToCommit) {
		c.logger.Info("tool changed nothing", "tool", name, "reason", err)
		return &Unchanged{Changed: false, Message: err.Error()}, nil
	}
	if err != nil {
		c.logger.Warn("tool call failed", "tool", name, "kind", errors.KindOf(err), "err", err)
		return nil, err
	}
	c.logger.Debug("tool called", "tool", name)
	return out, nil
}

// NewError converts err into the body returned to tool callers.
func NewError(err error) *Error {
	return &Error{Kind: errors.KindOf(err), Message: err.Error()}
}

func register[In any, Out any](c *Catalog, name, description string, fn func(ctx context.Context, in In) (Out, error)) error {
	if _, ok := c.tools[name]; ok {
		return errors.Errorf("tool %s already registered", name)
	}

	inputSchema, err := schemaOf[In]()
	if err != nil {
		return errors.Wrapf(err, "input schema of %s", name)
	}
	outputSchema, err := schemaOf[Out]()
	if err != nil {
		return errors.Wrapf(err, "output schema of %s", name)
	}

	c.tools[name] = &Tool{
		Name:         name,
		Description:  description,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		call: func(ctx context.Context, args map[string]any) (any, error) {
			var in In
			if err := decodeArguments(args, &in); err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
	return nil
}

func schemaOf[T any]() (json.RawMessage, error) {
	// anonymous structs have no definition to expand, so everything is inlined
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.ReflectFromType(reflect.TypeFor[T]())
	schema.Version = ""
	return json.Marshal(schema)
}

func decodeArguments(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := dec.Decode(args); err != nil {
		return errors.Wrapf(errors.ErrInvalidParams, "invalid arguments: %v", err)
	}
	return nil
}
