// Package mcp exposes the tools of a Model Context Protocol server, typically
// the Playwright browser server, as a tools.ToolSet.
package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/playwrighty/playwrighty/pkg/tools"
)

// DefaultCommand and DefaultArgs launch the Playwright MCP server.
const DefaultCommand = "npx"

var DefaultArgs = []string{"@playwright/mcp@latest"}

// HeadlessFlag is appended to the Playwright server arguments for headless runs.
const HeadlessFlag = "--headless"

const (
	clientName    = "playwrighty"
	clientVersion = "1.0.0"
)

var errNotStarted = errors.New("toolset not started")

type mcpClient interface {
	Initialize(ctx context.Context, request *mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request *mcp.ListToolsParams) iter.Seq2[*mcp.Tool, error]
	CallTool(ctx context.Context, request *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close(ctx context.Context) error
}

// Toolset is the set of tools offered by one MCP server. It lives for a
// single test run: Start connects (spawning the server process for stdio),
// Stop tears the connection and the process down.
type Toolset struct {
	name         string
	mcpClient    mcpClient
	logID        string
	instructions string

	mu          sync.Mutex
	started     bool
	cachedTools []tools.Tool
}

var (
	_ tools.ToolSet      = (*Toolset)(nil)
	_ tools.Startable    = (*Toolset)(nil)
	_ tools.Instructable = (*Toolset)(nil)
)

// NewToolsetCommand creates a toolset that launches command as a stdio MCP
// server. env is appended to the current process environment.
func NewToolsetCommand(name, command string, args, env []string, cwd string) *Toolset {
	slog.Debug("Creating stdio MCP toolset", "command", command, "args", args)

	return &Toolset{
		name:      name,
		mcpClient: newStdioCmdClient(command, args, env, cwd),
		logID:     strings.TrimSpace(command + " " + strings.Join(args, " ")),
	}
}

// NewRemoteToolset creates a toolset for an MCP server reachable over HTTP,
// using either the "sse" or the "streamable" transport.
func NewRemoteToolset(name, url, transport string, headers map[string]string) *Toolset {
	slog.Debug("Creating remote MCP toolset", "url", url, "transport", transport)

	return &Toolset{
		name:      name,
		mcpClient: newRemoteClient(url, transport, headers),
		logID:     url,
	}
}

// PlaywrightArgs returns args with the headless flag added or removed.
func PlaywrightArgs(args []string, headless bool) []string {
	out := slices.DeleteFunc(slices.Clone(args), func(a string) bool { return a == HeadlessFlag })
	if headless {
		out = append(out, HeadlessFlag)
	}
	return out
}

func (ts *Toolset) Start(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return nil
	}

	slog.Debug("Starting MCP toolset", "server", ts.logID)

	result, err := ts.mcpClient.Initialize(ctx, &mcp.InitializeRequest{
		Params: &mcp.InitializeParams{
			ClientInfo: &mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
	if err != nil {
		slog.Error("Failed to initialize MCP client", "server", ts.logID, "error", err)
		return fmt.Errorf("failed to initialize MCP client for %s: %w", ts.logID, err)
	}

	slog.Debug("Started MCP toolset successfully", "server", ts.logID)
	if result != nil {
		ts.instructions = result.Instructions
	}
	ts.started = true

	return nil
}

func (ts *Toolset) Instructions() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.instructions
}

// Tools lists the server's tools once per start and caches the result.
func (ts *Toolset) Tools(ctx context.Context) ([]tools.Tool, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return nil, errNotStarted
	}
	if ts.cachedTools != nil {
		return ts.cachedTools, nil
	}

	var toolsList []tools.Tool
	for t, err := range ts.mcpClient.ListTools(ctx, &mcp.ListToolsParams{}) {
		if err != nil {
			return nil, fmt.Errorf("failed to list MCP tools: %w", err)
		}

		name := t.Name
		if ts.name != "" {
			name = fmt.Sprintf("%s_%s", ts.name, name)
		}

		tool := tools.Tool{
			Name:         name,
			Category:     cmp.Or(ts.name, "mcp"),
			Description:  t.Description,
			Parameters:   t.InputSchema,
			OutputSchema: t.OutputSchema,
			Handler:      ts.handlerFor(t.Name),
		}
		if t.Annotations != nil {
			tool.Annotations = tools.ToolAnnotations(*t.Annotations)
		}
		toolsList = append(toolsList, tool)
	}

	slog.Debug("Listed MCP tools", "count", len(toolsList), "server", ts.logID)
	ts.cachedTools = toolsList

	return toolsList, nil
}

// handlerFor calls serverName on the server whatever name the tool is
// exposed under.
func (ts *Toolset) handlerFor(serverName string) tools.ToolHandler {
	return func(ctx context.Context, toolCall tools.ToolCall) (*tools.ToolCallResult, error) {
		return ts.callTool(ctx, serverName, toolCall.Function.Arguments)
	}
}

func (ts *Toolset) callTool(ctx context.Context, name, arguments string) (*tools.ToolCallResult, error) {
	slog.Debug("Calling MCP tool", "tool", name, "arguments", arguments)

	var args map[string]any
	if err := json.Unmarshal([]byte(cmp.Or(arguments, "{}")), &args); err != nil {
		slog.Warn("Failed to parse tool arguments", "tool", name, "error", err)
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	// Some models send explicit nulls for optional parameters, which
	// Playwright's schema validation rejects.
	for k, v := range args {
		if v == nil {
			delete(args, k)
		}
	}

	resp, err := ts.mcpClient.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			slog.Debug("CallTool canceled by context", "tool", name)
			return nil, err
		}
		slog.Error("Failed to call MCP tool", "tool", name, "error", err)
		return nil, fmt.Errorf("failed to call tool %s: %w", name, err)
	}

	result := processMCPContent(resp)
	slog.Debug("MCP tool call completed", "tool", name, "output_length", len(result.Output), "is_error", result.IsError)
	return result, nil
}

func (ts *Toolset) Stop(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return nil
	}
	ts.started = false
	ts.cachedTools = nil

	slog.Debug("Stopping MCP toolset", "server", ts.logID)
	if err := ts.mcpClient.Close(context.WithoutCancel(ctx)); err != nil {
		slog.Error("Failed to stop MCP toolset", "server", ts.logID, "error", err)
		return fmt.Errorf("failed to stop MCP toolset %s: %w", ts.logID, err)
	}

	slog.Debug("Stopped MCP toolset successfully", "server", ts.logID)
	return nil
}

// processMCPContent flattens a tool result for the agent. Images, such as
// Playwright screenshots, are summarised since the transcript is text only.
func processMCPContent(toolResult *mcp.CallToolResult) *tools.ToolCallResult {
	var sb strings.Builder
	for _, content := range toolResult.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			sb.WriteString(c.Text)
		case *mcp.ImageContent:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "[image %s, %d bytes]", c.MIMEType, len(c.Data))
		}
	}

	output := cmp.Or(sb.String(), "no output")
	if toolResult.IsError {
		return tools.ResultError(output)
	}
	return tools.ResultSuccess(output)
}
