package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/environment"
	"github.com/playwrighty/playwrighty/pkg/model/provider/options"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

type sseEvent struct {
	name string
	data string
}

var streamedTurn = []sseEvent{
	{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
	{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
	{"ping", `{"type":"ping"}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Step 1: test pa"}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"ssed"}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":0}`},
	{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"browser_navigate","input":{}}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"url\": "}}`},
	{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"https://example.com\"}"}}`},
	{"content_block_stop", `{"type":"content_block_stop","index":1}`},
	{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":20}}`},
	{"message_stop", `{"type":"message_stop"}`},
}

type recordedRequest struct {
	Path   string
	APIKey string
	Body   map[string]any
}

func newServer(t *testing.T, handler func(w http.ResponseWriter)) (*httptest.Server, *recordedRequest) {
	t.Helper()

	recorded := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded.Path = r.URL.Path
		recorded.APIKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&recorded.Body)
		handler(w)
	}))
	t.Cleanup(server.Close)

	return server, recorded
}

func sse(events ...sseEvent) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data)
		}
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...options.Opt) *Client {
	t.Helper()

	client, err := NewClient(t.Context(), &config.ModelConfig{Provider: "anthropic", BaseURL: baseURL},
		environment.NewMapProvider(map[string]string{"ANTHROPIC_API_KEY": "sk-ant-test"}), opts...)
	require.NoError(t, err)
	return client
}

func drain(t *testing.T, stream chat.MessageStream) (string, []tools.ToolCall, chat.FinishReason) {
	t.Helper()
	defer stream.Close()

	var (
		text   strings.Builder
		calls  []tools.ToolCall
		finish chat.FinishReason
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return text.String(), calls, finish
		}
		require.NoError(t, err)
		for _, choice := range resp.Choices {
			text.WriteString(choice.Delta.Content)
			calls = append(calls, choice.Delta.ToolCalls...)
			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
		}
	}
}

func TestStreamingTurn(t *testing.T) {
	t.Parallel()

	server, recorded := newServer(t, sse(streamedTurn...))
	client := newTestClient(t, server.URL)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", client.ID())

	stream, err := client.CreateChatCompletionStream(t.Context(), []chat.Message{
		chat.SystemMessage("You are a QA engineer."),
		chat.UserMessage("run the test"),
	}, []tools.Tool{{
		Name:        "browser_navigate",
		Description: "Navigate to a URL",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"url": map[string]any{"type": "string"}},
			"required":   []any{"url"},
		},
	}})
	require.NoError(t, err)

	text, calls, finish := drain(t, stream)

	assert.Equal(t, "Step 1: test passed", text)
	assert.Equal(t, chat.FinishReasonToolCalls, finish)
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, "browser_navigate", calls[0].Function.Name)
	assert.JSONEq(t, `{"url":"https://example.com"}`, calls[0].Function.Arguments)

	assert.Equal(t, "/v1/messages", recorded.Path)
	assert.Equal(t, "sk-ant-test", recorded.APIKey)
	assert.Equal(t, true, recorded.Body["stream"])
	assert.InDelta(t, float64(defaultMaxTokens), recorded.Body["max_tokens"], 0)

	system := recorded.Body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "You are a QA engineer.", system[0].(map[string]any)["text"])

	messages := recorded.Body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestSingleShotTurn(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "Clicking the button."},
				{"type": "tool_use", "id": "toolu_2", "name": "browser_click", "input": {"ref": "e3"}}
			],
			"stop_reason": "tool_use",
			"stop_sequence": null,
			"usage": {"input_tokens": 5, "output_tokens": 7}
		}`)
	})
	client := newTestClient(t, server.URL, options.WithStreaming(false))

	stream, err := client.CreateChatCompletionStream(t.Context(), []chat.Message{chat.UserMessage("go")}, nil)
	require.NoError(t, err)

	text, calls, finish := drain(t, stream)

	assert.Equal(t, "Clicking the button.", text)
	assert.Equal(t, chat.FinishReasonToolCalls, finish)
	require.Len(t, calls, 1)
	assert.Equal(t, "browser_click", calls[0].Function.Name)
	assert.JSONEq(t, `{"ref":"e3"}`, calls[0].Function.Arguments)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(t.Context(), &config.ModelConfig{Provider: "anthropic"}, environment.NewMapProvider(nil))
	require.EqualError(t, err, "ANTHROPIC_API_KEY environment variable is required")

	_, err = NewClient(t.Context(), nil, environment.NewMapProvider(nil))
	require.EqualError(t, err, "model configuration is required")
}

func TestConvertMessagesGroupsToolResults(t *testing.T) {
	t.Parallel()

	first := tools.ToolCall{ID: "a", Function: tools.FunctionCall{Name: "browser_click", Arguments: `{"ref":"e1"}`}}
	second := tools.ToolCall{ID: "b", Function: tools.FunctionCall{Name: "browser_snapshot"}}

	out, err := convertMessages([]chat.Message{
		chat.SystemMessage("ignored here"),
		chat.UserMessage("start"),
		chat.AssistantMessage("working", first, second),
		chat.ToolMessage("a", tools.ResultSuccess("clicked")),
		chat.ToolMessage("b", tools.ResultError("no page")),
		chat.AssistantMessage("test passed"),
	})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Len(t, out[1].Content, 3)
	require.Len(t, out[2].Content, 2)
	assert.Equal(t, "a", out[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "b", out[2].Content[1].OfToolResult.ToolUseID)
}

func TestConvertMessagesRejectsBrokenSequencing(t *testing.T) {
	t.Parallel()

	call := tools.ToolCall{ID: "a", Function: tools.FunctionCall{Name: "browser_click"}}

	_, err := convertMessages([]chat.Message{
		chat.UserMessage("start"),
		chat.ToolMessage("a", tools.ResultSuccess("orphan")),
	})
	require.Error(t, err)

	_, err = convertMessages([]chat.Message{
		chat.UserMessage("start"),
		chat.AssistantMessage("", call),
	})
	require.EqualError(t, err, "assistant tool_use present but no subsequent tool results")

	_, err = convertMessages([]chat.Message{
		chat.UserMessage("start"),
		chat.AssistantMessage("", call),
		chat.UserMessage("too early"),
	})
	require.Error(t, err)
}

func TestMapStopReason(t *testing.T) {
	t.Parallel()

	assert.Equal(t, chat.FinishReasonStop, mapStopReason("end_turn"))
	assert.Equal(t, chat.FinishReasonToolCalls, mapStopReason("tool_use"))
	assert.Equal(t, chat.FinishReasonLength, mapStopReason("max_tokens"))
	assert.Equal(t, chat.FinishReason(""), mapStopReason(""))
}
