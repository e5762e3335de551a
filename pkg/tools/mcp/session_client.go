package mcp

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var errSessionNotInitialized = errors.New("session not initialized")

// sessionClient holds the connected session shared by the stdio and remote
// clients, which only differ in how they build the transport.
type sessionClient struct {
	mu      sync.RWMutex
	session *gomcp.ClientSession
}

func (c *sessionClient) connect(ctx context.Context, transport gomcp.Transport) (*gomcp.InitializeResult, error) {
	client := gomcp.NewClient(&gomcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	return session.InitializeResult(), nil
}

func (c *sessionClient) getSession() *gomcp.ClientSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *sessionClient) Close(context.Context) error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return err
	}
	// Wait reports how the connection ended, which only matters for logs.
	if err := s.Wait(); err != nil {
		slog.Debug("MCP session ended", "error", err)
	}
	return nil
}

func (c *sessionClient) ListTools(ctx context.Context, request *gomcp.ListToolsParams) iter.Seq2[*gomcp.Tool, error] {
	if s := c.getSession(); s != nil {
		return s.Tools(ctx, request)
	}
	return func(yield func(*gomcp.Tool, error) bool) {
		yield(nil, errSessionNotInitialized)
	}
}

func (c *sessionClient) CallTool(ctx context.Context, request *gomcp.CallToolParams) (*gomcp.CallToolResult, error) {
	if s := c.getSession(); s != nil {
		return s.CallTool(ctx, request)
	}
	return nil, errSessionNotInitialized
}
