package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type remoteMCPClient struct {
	sessionClient
	url           string
	transportType string
	headers       map[string]string
	base          http.RoundTripper
}

func newRemoteClient(url, transportType string, headers map[string]string) *remoteMCPClient {
	return &remoteMCPClient{
		url:           url,
		transportType: transportType,
		headers:       headers,
		base:          http.DefaultTransport,
	}
}

func (c *remoteMCPClient) Initialize(ctx context.Context, _ *gomcp.InitializeRequest) (*gomcp.InitializeResult, error) {
	httpClient := &http.Client{
		Transport: &headerTransport{base: c.base, headers: c.headers},
	}

	var transport gomcp.Transport
	switch c.transportType {
	case "sse":
		transport = &gomcp.SSEClientTransport{
			Endpoint:   c.url,
			HTTPClient: httpClient,
		}
	case "", "streamable", "streamable-http":
		transport = &gomcp.StreamableClientTransport{
			Endpoint:             c.url,
			HTTPClient:           httpClient,
			DisableStandaloneSSE: true,
		}
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", c.transportType)
	}

	result, err := c.connect(ctx, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	slog.Debug("Remote MCP client connected successfully", "url", c.url)
	return result, nil
}

// headerTransport adds static headers, such as an authorization token, to
// every request sent to the MCP server.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
