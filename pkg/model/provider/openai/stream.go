package openai

import (
	"cmp"
	"io"
	"log/slog"
	"slices"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

// streamAdapter adapts an OpenAI chunk stream to chat.MessageStream. Text is
// forwarded as it arrives; tool calls are assembled from their argument
// deltas and only reported once the choice finishes.
type streamAdapter struct {
	stream    *ssestream.Stream[openai.ChatCompletionChunk]
	toolCalls map[int64]*tools.ToolCall
	done      bool
}

func newStreamAdapter(stream *ssestream.Stream[openai.ChatCompletionChunk]) *streamAdapter {
	return &streamAdapter{
		stream:    stream,
		toolCalls: map[int64]*tools.ToolCall{},
	}
}

func (a *streamAdapter) Recv() (chat.MessageStreamResponse, error) {
	if a.done {
		return chat.MessageStreamResponse{}, io.EOF
	}

	if !a.stream.Next() {
		if err := a.stream.Err(); err != nil {
			return chat.MessageStreamResponse{}, err
		}
		a.done = true

		// Some compatible servers end the stream without a finish reason.
		if pending := a.flushToolCalls(); len(pending) > 0 {
			return chat.MessageStreamResponse{
				Choices: []chat.MessageStreamChoice{{
					Delta:        chat.MessageDelta{Role: string(chat.MessageRoleAssistant), ToolCalls: pending},
					FinishReason: chat.FinishReasonToolCalls,
				}},
			}, nil
		}
		return chat.MessageStreamResponse{}, io.EOF
	}

	chunk := a.stream.Current()
	response := chat.MessageStreamResponse{
		ID:    chunk.ID,
		Model: chunk.Model,
	}
	if chunk.Usage.TotalTokens > 0 {
		response.Usage = &chat.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return response, nil
	}

	choice := chunk.Choices[0]
	delta := chat.MessageDelta{
		Role:    string(chat.MessageRoleAssistant),
		Content: choice.Delta.Content,
	}

	for _, tc := range choice.Delta.ToolCalls {
		call, ok := a.toolCalls[tc.Index]
		if !ok {
			call = &tools.ToolCall{Type: "function"}
			a.toolCalls[tc.Index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}

	finish := mapFinishReason(choice.FinishReason)
	if finish != "" {
		delta.ToolCalls = a.flushToolCalls()
		slog.Debug("OpenAI stream choice finished", "finish_reason", finish, "tool_calls", len(delta.ToolCalls))
	}

	response.Choices = []chat.MessageStreamChoice{{
		Index:        int(choice.Index),
		Delta:        delta,
		FinishReason: finish,
	}}
	return response, nil
}

// flushToolCalls returns the assembled tool calls in index order and resets
// the buffer.
func (a *streamAdapter) flushToolCalls() []tools.ToolCall {
	if len(a.toolCalls) == 0 {
		return nil
	}

	indexes := make([]int64, 0, len(a.toolCalls))
	for i := range a.toolCalls {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	calls := make([]tools.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		call := *a.toolCalls[i]
		call.Function.Arguments = cmp.Or(call.Function.Arguments, "{}")
		calls = append(calls, call)
	}
	clear(a.toolCalls)

	return calls
}

func (a *streamAdapter) Close() {
	if err := a.stream.Close(); err != nil {
		slog.Debug("Closing OpenAI stream", "error", err)
	}
}
