package anthropic

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

// streamAdapter adapts the Anthropic event stream to chat.MessageStream.
// Text deltas are forwarded immediately; tool_use blocks are buffered by
// content block index until the message reports its stop reason.
type streamAdapter struct {
	stream    *ssestream.Stream[anthropic.MessageStreamEventUnion]
	toolCalls map[int64]*tools.ToolCall
	usage     chat.Usage
	done      bool
}

func newStreamAdapter(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) *streamAdapter {
	return &streamAdapter{
		stream:    stream,
		toolCalls: map[int64]*tools.ToolCall{},
	}
}

func (a *streamAdapter) Recv() (chat.MessageStreamResponse, error) {
	for {
		if a.done {
			return chat.MessageStreamResponse{}, io.EOF
		}

		if !a.stream.Next() {
			if err := a.stream.Err(); err != nil {
				return chat.MessageStreamResponse{}, err
			}
			a.done = true
			if pending := a.flushToolCalls(); len(pending) > 0 {
				return a.finished(chat.FinishReasonToolCalls, pending), nil
			}
			return chat.MessageStreamResponse{}, io.EOF
		}

		event := a.stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			a.usage.InputTokens = ev.Message.Usage.InputTokens

		case anthropic.ContentBlockStartEvent:
			if ev.ContentBlock.Type == "tool_use" {
				a.toolCalls[ev.Index] = &tools.ToolCall{
					ID:   ev.ContentBlock.ID,
					Type: "function",
					Function: tools.FunctionCall{
						Name: ev.ContentBlock.Name,
					},
				}
			}

		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				return chat.MessageStreamResponse{
					Choices: []chat.MessageStreamChoice{{
						Delta: chat.MessageDelta{
							Role:    string(chat.MessageRoleAssistant),
							Content: delta.Text,
						},
					}},
				}, nil
			case anthropic.InputJSONDelta:
				call, ok := a.toolCalls[ev.Index]
				if !ok {
					return chat.MessageStreamResponse{}, fmt.Errorf("%w: input delta for unknown content block %d", chat.ErrMalformedContent, ev.Index)
				}
				call.Function.Arguments += delta.PartialJSON
			}

		case anthropic.MessageDeltaEvent:
			a.usage.OutputTokens = ev.Usage.OutputTokens
			finish := mapStopReason(string(ev.Delta.StopReason))
			if finish == "" {
				continue
			}
			slog.Debug("Anthropic stream message finished", "stop_reason", ev.Delta.StopReason)
			return a.finished(finish, a.flushToolCalls()), nil

		case anthropic.MessageStopEvent:
			a.done = true
			if pending := a.flushToolCalls(); len(pending) > 0 {
				return a.finished(chat.FinishReasonToolCalls, pending), nil
			}
			return chat.MessageStreamResponse{}, io.EOF
		}
	}
}

func (a *streamAdapter) finished(finish chat.FinishReason, calls []tools.ToolCall) chat.MessageStreamResponse {
	usage := a.usage
	return chat.MessageStreamResponse{
		Choices: []chat.MessageStreamChoice{{
			Delta: chat.MessageDelta{
				Role:      string(chat.MessageRoleAssistant),
				ToolCalls: calls,
			},
			FinishReason: finish,
		}},
		Usage: &usage,
	}
}

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
		slog.Debug("Closing Anthropic stream", "error", err)
	}
}
