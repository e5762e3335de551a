package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playwrighty/playwrighty/pkg/tools"
)

type inMemoryClient struct {
	sessionClient
	transport gomcp.Transport
}

func (c *inMemoryClient) Initialize(ctx context.Context, _ *gomcp.InitializeRequest) (*gomcp.InitializeResult, error) {
	return c.connect(ctx, c.transport)
}

type navigateArgs struct {
	URL string `json:"url"`
}

func startFakeBrowserServer(t *testing.T, name string) *Toolset {
	t.Helper()

	server := gomcp.NewServer(&gomcp.Implementation{Name: "fake-browser", Version: "0.0.1"}, &gomcp.ServerOptions{
		Instructions: "Take a snapshot before clicking.",
	})
	gomcp.AddTool(server, &gomcp.Tool{Name: "browser_navigate", Description: "Navigate to a URL"},
		func(_ context.Context, _ *gomcp.CallToolRequest, args navigateArgs) (*gomcp.CallToolResult, any, error) {
			return &gomcp.CallToolResult{
				Content: []gomcp.Content{&gomcp.TextContent{Text: "navigated to " + args.URL}},
			}, nil, nil
		})
	gomcp.AddTool(server, &gomcp.Tool{Name: "browser_click", Description: "Click an element"},
		func(_ context.Context, _ *gomcp.CallToolRequest, _ map[string]any) (*gomcp.CallToolResult, any, error) {
			return &gomcp.CallToolResult{
				IsError: true,
				Content: []gomcp.Content{&gomcp.TextContent{Text: "element not found"}},
			}, nil, nil
		})

	clientTransport, serverTransport := gomcp.NewInMemoryTransports()
	serverSession, err := server.Connect(t.Context(), serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	return &Toolset{
		name:      name,
		mcpClient: &inMemoryClient{transport: clientTransport},
		logID:     "in-memory",
	}
}

func findTool(t *testing.T, list []tools.Tool, name string) tools.Tool {
	t.Helper()

	for _, tool := range list {
		if tool.Name == name {
			return tool
		}
	}
	require.Failf(t, "tool not found", "%s", name)
	return tools.Tool{}
}

func TestToolsetLifecycle(t *testing.T) {
	t.Parallel()

	ts := startFakeBrowserServer(t, "")

	_, err := ts.Tools(t.Context())
	require.ErrorIs(t, err, errNotStarted)

	require.NoError(t, ts.Start(t.Context()))
	assert.Equal(t, "Take a snapshot before clicking.", ts.Instructions())

	list, err := ts.Tools(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)

	navigate := findTool(t, list, "browser_navigate")
	assert.Equal(t, "Navigate to a URL", navigate.Description)
	assert.NotNil(t, navigate.Parameters)

	result, err := navigate.Handler(t.Context(), tools.ToolCall{
		Function: tools.FunctionCall{Name: "browser_navigate", Arguments: `{"url":"https://example.com","referrer":null}`},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "navigated to https://example.com", result.Output)

	click := findTool(t, list, "browser_click")
	result, err = click.Handler(t.Context(), tools.ToolCall{Function: tools.FunctionCall{Name: "browser_click"}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "element not found", result.Output)

	require.NoError(t, ts.Stop(t.Context()))
	require.NoError(t, ts.Stop(t.Context()))

	_, err = ts.Tools(t.Context())
	require.ErrorIs(t, err, errNotStarted)
}

func TestToolsetPrefixedNamesCallServerName(t *testing.T) {
	t.Parallel()

	ts := startFakeBrowserServer(t, "pw")
	require.NoError(t, ts.Start(t.Context()))
	t.Cleanup(func() { _ = ts.Stop(context.Background()) })

	list, err := ts.Tools(t.Context())
	require.NoError(t, err)

	navigate := findTool(t, list, "pw_browser_navigate")
	assert.Equal(t, "pw", navigate.Category)

	result, err := navigate.Handler(t.Context(), tools.ToolCall{
		Function: tools.FunctionCall{Name: "pw_browser_navigate", Arguments: `{"url":"https://example.org"}`},
	})
	require.NoError(t, err)
	assert.Equal(t, "navigated to https://example.org", result.Output)
}

func TestCallToolRejectsInvalidArguments(t *testing.T) {
	t.Parallel()

	ts := startFakeBrowserServer(t, "")
	require.NoError(t, ts.Start(t.Context()))
	t.Cleanup(func() { _ = ts.Stop(context.Background()) })

	_, err := ts.callTool(t.Context(), "browser_navigate", `{"url":`)
	require.ErrorContains(t, err, "failed to parse tool arguments")
}

func TestProcessMCPContent(t *testing.T) {
	t.Parallel()

	result := processMCPContent(&gomcp.CallToolResult{
		Content: []gomcp.Content{
			&gomcp.TextContent{Text: "Took a screenshot"},
			&gomcp.ImageContent{MIMEType: "image/png", Data: []byte("png")},
		},
	})
	assert.False(t, result.IsError)
	assert.Equal(t, "Took a screenshot\n[image image/png, 3 bytes]", result.Output)

	empty := processMCPContent(&gomcp.CallToolResult{IsError: true})
	assert.True(t, empty.IsError)
	assert.Equal(t, "no output", empty.Output)
}

func TestPlaywrightArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"@playwright/mcp@latest", "--headless"}, PlaywrightArgs(DefaultArgs, true))
	assert.Equal(t, []string{"@playwright/mcp@latest"}, PlaywrightArgs([]string{"@playwright/mcp@latest", "--headless"}, false))
	assert.Equal(t, []string{"@playwright/mcp@latest"}, DefaultArgs)
}

func TestHeaderTransport(t *testing.T) {
	t.Parallel()

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Transport: &headerTransport{
		base:    http.DefaultTransport,
		headers: map[string]string{"Authorization": "Bearer secret"},
	}}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer secret", got)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestRemoteClientRejectsUnknownTransport(t *testing.T) {
	t.Parallel()

	client := newRemoteClient("http://localhost:0/mcp", "websocket", nil)
	_, err := client.Initialize(t.Context(), nil)
	require.EqualError(t, err, "unsupported transport type: websocket")
}
