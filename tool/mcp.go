package tool

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "docstore"

// NewMCPServer serves every tool of the catalog over MCP. Results and
// failures are JSON text contents; failures also set IsError.
func NewMCPServer(c *Catalog, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, t := range c.Tools() {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema), c.mcpHandler(t.Name))
	}
	return s
}

func (c *Catalog) mcpHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := c.Call(ctx, name, req.GetArguments())
		if err != nil {
			body, merr := json.Marshal(map[string]*Error{"error": NewError(err)})
			if merr != nil {
				return nil, merr
			}
			return mcp.NewToolResultError(string(body)), nil
		}

		body, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
