package chat

import (
	"errors"

	"github.com/playwrighty/playwrighty/pkg/tools"
)

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// ErrMalformedContent is wrapped by streams that received a chunk they could
// not decode. The runtime logs it and treats the fragment as empty.
var ErrMalformedContent = errors.New("malformed message content")

// Message is one entry of a session transcript.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`

	// ToolCalls are the calls requested by an assistant message.
	ToolCalls []tools.ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// IsError marks a tool message whose call failed.
	IsError bool `json:"is_error,omitempty"`
}

func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: MessageRoleSystem, Content: content}
}

func AssistantMessage(content string, toolCalls ...tools.ToolCall) Message {
	return Message{Role: MessageRoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolMessage answers the tool call identified by toolCallID.
func ToolMessage(toolCallID string, result *tools.ToolCallResult) Message {
	return Message{
		Role:       MessageRoleTool,
		Content:    result.Output,
		ToolCallID: toolCallID,
		IsError:    result.IsError,
	}
}

type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonNull          FinishReason = "null"
)

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ToolResult is a tool call that the transport already resolved on its own.
type ToolResult struct {
	ToolCallID string                `json:"tool_call_id"`
	Result     *tools.ToolCallResult `json:"result"`
}

// MessageDelta is the incremental part of a streamed assistant turn.
// ToolCalls are only ever reported complete.
type MessageDelta struct {
	Role        string           `json:"role,omitempty"`
	Content     string           `json:"content,omitempty"`
	ToolCalls   []tools.ToolCall `json:"tool_calls,omitempty"`
	ToolResults []ToolResult     `json:"tool_results,omitempty"`
}

type MessageStreamChoice struct {
	Index        int          `json:"index"`
	Delta        MessageDelta `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

type MessageStreamResponse struct {
	ID      string                `json:"id,omitempty"`
	Model   string                `json:"model,omitempty"`
	Choices []MessageStreamChoice `json:"choices"`
	Usage   *Usage                `json:"usage,omitempty"`
}

// MessageStream is the pull contract every agent transport implements.
// Recv returns io.EOF once the turn is complete. A transport that only
// produces a single completed response yields it as one fragment.
type MessageStream interface {
	Recv() (MessageStreamResponse, error)
	Close()
}
