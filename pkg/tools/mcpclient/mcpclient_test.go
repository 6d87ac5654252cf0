package mcpclient

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/sli/machine"
	"github.com/germanamz/nestbridge/pkg/status"
	"github.com/germanamz/nestbridge/pkg/statustools"
	"github.com/germanamz/nestbridge/pkg/tools/mcpserver"
)

// serveStatusTools serves the status tools of a seeded machine over piped
// stdio and returns a client connected to it.
func serveStatusTools(t *testing.T) (*Client, *machine.Kernel) {
	t.Helper()

	k := machine.NewKernel()
	k.CreateNodes("iaf_psc_alpha", 2, sli.Dict{"V_m": -70.0})
	srv := mcpserver.New("nestbridge", "test", nil)
	srv.RegisterBox(statustools.Tools(status.New(sli.NewChannel(machine.New(k)))))

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, serverIn, serverOut) }()
	t.Cleanup(func() {
		cancel()
		_ = clientOut.Close()
		<-done
	})

	client, err := connect(ctx, &mcp.IOTransport{Reader: clientIn, Writer: clientOut})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, k
}

func TestToolBox(t *testing.T) {
	client, _ := serveStatusTools(t)

	tb, err := client.ToolBox(context.Background())
	require.NoError(t, err)

	tools := tb.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "get_status", tools[0].Name)
	assert.Equal(t, "set_status", tools[1].Name)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tools[1].InputSchema, &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestCall(t *testing.T) {
	client, k := serveStatusTools(t)
	ctx := context.Background()

	text, err := client.Call(ctx, "set_status", json.RawMessage(`{"handles":[1,2],"params":"V_m","val":-55}`))
	require.NoError(t, err)
	assert.Equal(t, "updated 2 node(s)", text)

	st, err := k.GetStatus(int64(2))
	require.NoError(t, err)
	assert.Equal(t, int64(-55), st["V_m"])
}

func TestCall_ToolError(t *testing.T) {
	client, _ := serveStatusTools(t)

	text, err := client.Call(context.Background(), "get_status", json.RawMessage(`{"handles":[1],"keys":7}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcpclient: tool error")
	assert.Contains(t, err.Error(), "keys should be either a string or an iterable")
	assert.Empty(t, text)
}

func TestCall_InvalidArguments(t *testing.T) {
	client, _ := serveStatusTools(t)

	_, err := client.Call(context.Background(), "get_status", json.RawMessage(`[1,2]`))
	assert.ErrorContains(t, err, "mcpclient: unmarshal arguments")
}

func TestToolBox_HandlerRoundTrip(t *testing.T) {
	client, _ := serveStatusTools(t)
	ctx := context.Background()

	tb, err := client.ToolBox(ctx)
	require.NoError(t, err)

	tool, ok := tb.Get("get_status")
	require.True(t, ok)
	out, err := tool.Handler(ctx, json.RawMessage(`{"handles":[1,2],"keys":"V_m"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[-70, -70]`, out)
}

func TestStart_MissingCommand(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Start(ctx, "/definitely/not/a/binary")
	assert.ErrorContains(t, err, "mcpclient: connect")
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		result *mcp.CallToolResult
		want   string
	}{
		{
			name:   "single text",
			result: &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "[1]"}}},
			want:   "[1]",
		},
		{
			name: "multiple text",
			result: &mcp.CallToolResult{Content: []mcp.Content{
				&mcp.TextContent{Text: "a"},
				&mcp.TextContent{Text: "b"},
			}},
			want: "a\nb",
		},
		{
			name:   "empty content",
			result: &mcp.CallToolResult{Content: []mcp.Content{}},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(tt.result))
		})
	}
}
