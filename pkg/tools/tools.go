package tools

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ToolHandler func(ctx context.Context, toolCall ToolCall) (*ToolCallResult, error)

// NewHandler adapts a typed handler into a ToolHandler by decoding the call
// arguments into T.
func NewHandler[T any](fn func(context.Context, T) (*ToolCallResult, error)) ToolHandler {
	return func(ctx context.Context, toolCall ToolCall) (*ToolCallResult, error) {
		var args T
		if err := json.Unmarshal([]byte(cmp.Or(toolCall.Function.Arguments, "{}")), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", toolCall.Function.Name, err)
		}
		return fn(ctx, args)
	}
}

type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type"`
	Function FunctionCall `json:"function"`
}

type ToolType string

type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type ToolCallResult struct {
	Output  string `json:"output"`
	IsError bool   `json:"isError,omitempty"`
}

func ResultSuccess(output string) *ToolCallResult {
	return &ToolCallResult{Output: output}
}

func ResultError(output string) *ToolCallResult {
	return &ToolCallResult{Output: output, IsError: true}
}

type ToolAnnotations mcp.ToolAnnotations

type Tool struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Description  string          `json:"description,omitempty"`
	Parameters   any             `json:"parameters"`
	Annotations  ToolAnnotations `json:"annotations"`
	OutputSchema any             `json:"outputSchema"`
	Handler      ToolHandler     `json:"-"`
}

// ToolSet provides the tools an agent may call during a run.
type ToolSet interface {
	Tools(ctx context.Context) ([]Tool, error)
}

// Startable is implemented by tool sets that hold a live connection or
// process, such as an MCP server.
type Startable interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Instructable is implemented by tool sets that ship usage instructions to
// include in the agent's first turn.
type Instructable interface {
	Instructions() string
}

// GetInstructions returns the instructions of ts, if it has any.
func GetInstructions(ts ToolSet) string {
	if i, ok := DeepAs[Instructable](ts); ok {
		return i.Instructions()
	}
	return ""
}
