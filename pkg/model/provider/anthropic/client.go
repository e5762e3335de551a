package anthropic

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/environment"
	"github.com/playwrighty/playwrighty/pkg/model/provider/options"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

const (
	DefaultModel = "claude-sonnet-4-5"

	// defaultMaxTokens is used when the model config leaves max_tokens unset.
	// The Messages API requires a value.
	defaultMaxTokens = 8192
)

// Client represents an Anthropic client wrapper implementing provider.Provider
type Client struct {
	client anthropic.Client
	config config.ModelConfig
	stream bool
}

// NewClient creates a new Anthropic client from the provided configuration
func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		slog.Error("Anthropic client creation failed", "error", "model configuration is required")
		return nil, errors.New("model configuration is required")
	}

	if cfg.Provider != "anthropic" {
		slog.Error("Anthropic client creation failed", "error", "model type must be 'anthropic'", "actual_type", cfg.Provider)
		return nil, errors.New("model type must be 'anthropic'")
	}

	if env == nil {
		slog.Error("Anthropic client creation failed", "error", "environment provider is required")
		return nil, errors.New("environment provider is required")
	}

	authToken, ok := environment.Lookup(ctx, env, "ANTHROPIC_API_KEY")
	if !ok {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is required")
	}

	modelOptions := options.Apply(opts...)

	slog.Debug("Anthropic API key found, creating client")
	requestOptions := []option.RequestOption{
		option.WithAPIKey(authToken),
		option.WithMaxRetries(0),
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL, _ = environment.Lookup(ctx, env, "ANTHROPIC_BASE_URL")
	}
	if baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(baseURL))
	}
	if t := modelOptions.Transport(); t != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(&http.Client{Transport: t}))
	}

	model := *cfg
	model.Model = cmp.Or(model.Model, DefaultModel)

	slog.Debug("Anthropic client created successfully", "model", model.Model)

	return &Client{
		client: anthropic.NewClient(requestOptions...),
		config: model,
		stream: modelOptions.Streaming(),
	}, nil
}

func (c *Client) ID() string { return c.config.Provider + "/" + c.config.Model }

// CreateChatCompletionStream creates a streaming chat completion request
func (c *Client) CreateChatCompletionStream(
	ctx context.Context,
	messages []chat.Message,
	requestTools []tools.Tool,
) (chat.MessageStream, error) {
	slog.Debug("Creating Anthropic chat completion stream",
		"model", c.config.Model,
		"message_count", len(messages),
		"tool_count", len(requestTools))

	allTools, err := convertTools(requestTools)
	if err != nil {
		slog.Error("Failed to convert tools for Anthropic request", "error", err)
		return nil, err
	}

	converted, err := convertMessages(messages)
	if err != nil {
		slog.Error("Failed to convert messages for Anthropic request", "error", err)
		return nil, err
	}
	if len(converted) == 0 {
		return nil, errors.New("no messages to send after conversion: all messages were filtered out")
	}

	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: maxTokens,
		System:    extractSystemBlocks(messages),
		Messages:  converted,
		Tools:     allTools,
	}
	if c.config.Temperature != nil {
		params.Temperature = param.NewOpt(*c.config.Temperature)
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		b, err := json.Marshal(params)
		if err != nil {
			slog.Error("Failed to marshal Anthropic request", "error", err)
		}
		slog.Debug("Request", "request", string(b))
	}

	if !c.stream {
		return c.createMessage(ctx, params)
	}

	return newStreamAdapter(c.client.Messages.NewStreaming(ctx, params)), nil
}

// createMessage issues a non-streaming request and replays the answer as a
// single fragment.
func (c *Client) createMessage(ctx context.Context, params anthropic.MessageNewParams) (chat.MessageStream, error) {
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var (
		text  strings.Builder
		calls []tools.ToolCall
	)
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, tools.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: tools.FunctionCall{
					Name:      b.Name,
					Arguments: cmp.Or(string(b.Input), "{}"),
				},
			})
		}
	}

	return chat.NewCompletedStream(text.String(), calls, mapStopReason(string(message.StopReason))), nil
}

func convertMessages(messages []chat.Message) ([]anthropic.MessageParam, error) {
	var anthropicMessages []anthropic.MessageParam
	// Anthropic requires the message right after a tool_use to be a user
	// message carrying the tool_result blocks for exactly those IDs.
	var pendingToolUseIDs map[string]struct{}

	for i := 0; i < len(messages); i++ {
		msg := &messages[i]
		switch msg.Role {
		case chat.MessageRoleSystem:
			// Sent through params.System
			continue

		case chat.MessageRoleUser:
			if pendingToolUseIDs != nil {
				return nil, errors.New("assistant tool_use must be immediately followed by tool results")
			}
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(txt)))
			}

		case chat.MessageRoleAssistant:
			if pendingToolUseIDs != nil {
				return nil, errors.New("assistant tool_use must be immediately followed by tool results")
			}
			var blocks []anthropic.ContentBlockParamUnion
			if txt := strings.TrimSpace(msg.Content); txt != "" {
				blocks = append(blocks, anthropic.NewTextBlock(txt))
			}
			if len(msg.ToolCalls) > 0 {
				pendingToolUseIDs = make(map[string]struct{}, len(msg.ToolCalls))
			}
			for _, toolCall := range msg.ToolCalls {
				var inputs map[string]any
				if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &inputs); err != nil {
					inputs = map[string]any{}
				}
				pendingToolUseIDs[toolCall.ID] = struct{}{}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    toolCall.ID,
						Input: inputs,
						Name:  toolCall.Function.Name,
					},
				})
			}
			if len(blocks) > 0 {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
			}

		case chat.MessageRoleTool:
			if pendingToolUseIDs == nil {
				return nil, fmt.Errorf("unexpected tool result without preceding tool_use (tool_use_id=%q)", msg.ToolCallID)
			}
			// Consecutive tool results are grouped into one user message.
			var blocks []anthropic.ContentBlockParamUnion
			j := i
			for j < len(messages) && messages[j].Role == chat.MessageRoleTool {
				id := messages[j].ToolCallID
				if _, ok := pendingToolUseIDs[id]; !ok {
					return nil, fmt.Errorf("unexpected tool_result tool_use_id=%q", id)
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(id, strings.TrimSpace(messages[j].Content), messages[j].IsError))
				delete(pendingToolUseIDs, id)
				j++
			}
			if len(pendingToolUseIDs) > 0 {
				missing := make([]string, 0, len(pendingToolUseIDs))
				for id := range pendingToolUseIDs {
					missing = append(missing, id)
				}
				return nil, fmt.Errorf("missing tool_result for tool_use id %s (and %d more)", missing[0], len(missing)-1)
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
			pendingToolUseIDs = nil
			i = j - 1
		}
	}

	if pendingToolUseIDs != nil {
		return nil, errors.New("assistant tool_use present but no subsequent tool results")
	}

	return anthropicMessages, nil
}

// extractSystemBlocks converts any system-role messages into Anthropic system text blocks
// to be set on the top-level MessageNewParams.System field.
func extractSystemBlocks(messages []chat.Message) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam
	for i := range messages {
		msg := &messages[i]
		if msg.Role != chat.MessageRoleSystem {
			continue
		}
		if txt := strings.TrimSpace(msg.Content); txt != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: txt})
		}
	}
	return systemBlocks
}

func convertTools(requestTools []tools.Tool) ([]anthropic.ToolUnionParam, error) {
	toolParams := make([]anthropic.ToolParam, len(requestTools))

	for i, tool := range requestTools {
		inputSchema, err := ConvertParametersToSchema(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("converting parameters of tool %s: %w", tool.Name, err)
		}

		toolParams[i] = anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: inputSchema,
		}
	}
	anthropicTools := make([]anthropic.ToolUnionParam, len(toolParams))
	for i := range toolParams {
		anthropicTools[i] = anthropic.ToolUnionParam{OfTool: &toolParams[i]}
	}

	return anthropicTools, nil
}

// ConvertParametersToSchema converts parameters to Anthropic Schema format
func ConvertParametersToSchema(params any) (anthropic.ToolInputSchemaParam, error) {
	var schema anthropic.ToolInputSchemaParam
	if err := tools.ConvertSchema(params, &schema); err != nil {
		return anthropic.ToolInputSchemaParam{}, err
	}

	return schema, nil
}

func mapStopReason(reason string) chat.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "pause_turn":
		return chat.FinishReasonStop
	case "max_tokens":
		return chat.FinishReasonLength
	case "tool_use":
		return chat.FinishReasonToolCalls
	case "refusal":
		return chat.FinishReasonContentFilter
	case "":
		return ""
	default:
		return chat.FinishReasonNull
	}
}
