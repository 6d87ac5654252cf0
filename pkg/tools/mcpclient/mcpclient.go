// Package mcpclient calls the status tools of another nestbridge (or any MCP
// server) over the official MCP Go SDK, exposing them as a toolbox.ToolBox
// so callers use remote and local tools the same way.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/germanamz/nestbridge/pkg/tools/toolbox"
)

// Client is a connected MCP client session.
type Client struct {
	session *mcp.ClientSession
}

// Start spawns an MCP server process speaking on stdio and connects to it.
// The SDK performs initialization during Connect.
func Start(ctx context.Context, command string, args ...string) (*Client, error) {
	transport := &mcp.CommandTransport{
		Command: exec.CommandContext(ctx, command, args...), //nolint:gosec // command comes from the operator
	}
	return connect(ctx, transport)
}

func connect(ctx context.Context, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "nestbridge",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect: %w", err)
	}
	return &Client{session: session}, nil
}

// ToolBox lists the server's tools and returns them registered in a new
// ToolBox. Each handler calls back through Call.
func (c *Client) ToolBox(ctx context.Context) (*toolbox.ToolBox, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools: %w", err)
	}

	tb := toolbox.New()
	for _, sdkTool := range result.Tools {
		t, err := c.fromSDKTool(sdkTool)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tb.Register(t)
	}
	return tb, nil
}

// Call calls a named tool with JSON object arguments. A tool-level failure
// is returned as an error carrying the tool's text.
func (c *Client) Call(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcpclient: unmarshal arguments: %w", err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcpclient: call tool: %w", err)
	}

	text := extractText(result)
	if result.IsError {
		return "", fmt.Errorf("mcpclient: tool error: %s", text)
	}
	return text, nil
}

// Close ends the session. For Start clients the SDK also closes the child's
// stdin and waits for it to exit.
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) fromSDKTool(sdkTool *mcp.Tool) (toolbox.Tool, error) {
	schema, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name
	return toolbox.Tool{
		Name:        name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schema),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.Call(ctx, name, input)
		},
	}, nil
}

// extractText joins all text content items with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
