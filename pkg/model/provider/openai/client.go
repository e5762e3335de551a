package openai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/environment"
	"github.com/playwrighty/playwrighty/pkg/model/provider/options"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

const DefaultModel = "gpt-4o-mini"

// Client talks to the OpenAI Chat Completions API, or any server that
// speaks it when a base URL is configured.
type Client struct {
	client openai.Client
	config config.ModelConfig
	stream bool
}

func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.Provider != "openai" {
		return nil, errors.New("model type must be 'openai'")
	}

	apiKey, ok := environment.Lookup(ctx, env, "OPENAI_API_KEY")
	if !ok {
		return nil, errors.New("OPENAI_API_KEY environment variable is required")
	}

	modelOptions := options.Apply(opts...)

	requestOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL, _ = environment.Lookup(ctx, env, "OPENAI_BASE_URL")
	}
	if baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(baseURL))
	}
	if t := modelOptions.Transport(); t != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(&http.Client{Transport: t}))
	}

	model := *cfg
	model.Model = cmp.Or(model.Model, DefaultModel)

	slog.Debug("OpenAI client created", "model", model.Model, "base_url", baseURL, "stream", modelOptions.Streaming())

	return &Client{
		client: openai.NewClient(requestOptions...),
		config: model,
		stream: modelOptions.Streaming(),
	}, nil
}

func (c *Client) ID() string { return c.config.Provider + "/" + c.config.Model }

func (c *Client) CreateChatCompletionStream(
	ctx context.Context,
	messages []chat.Message,
	requestTools []tools.Tool,
) (chat.MessageStream, error) {
	slog.Debug("Creating OpenAI chat completion",
		"model", c.config.Model,
		"message_count", len(messages),
		"tool_count", len(requestTools),
		"stream", c.stream)

	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	params, err := c.buildParams(messages, requestTools)
	if err != nil {
		return nil, err
	}

	if !c.stream {
		return c.createCompletion(ctx, params)
	}

	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	return newStreamAdapter(c.client.Chat.Completions.NewStreaming(ctx, params)), nil
}

// createCompletion issues a non-streaming request and replays the answer as
// a single fragment.
func (c *Client) createCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (chat.MessageStream, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}

	choice := resp.Choices[0]
	var calls []tools.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, tools.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: tools.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	stream := chat.NewCompletedStream(choice.Message.Content, calls, mapFinishReason(choice.FinishReason))
	return stream, nil
}

func (c *Client) buildParams(messages []chat.Message, requestTools []tools.Tool) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.config.Model),
		Messages: convertMessages(messages),
	}
	if c.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.config.MaxTokens)
	}
	if c.config.Temperature != nil {
		params.Temperature = openai.Float(*c.config.Temperature)
	}

	if len(requestTools) > 0 {
		converted, err := convertTools(requestTools)
		if err != nil {
			return params, err
		}
		params.Tools = converted
	}

	return params, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case chat.MessageRoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case chat.MessageRoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case chat.MessageRoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case chat.MessageRoleAssistant:
			var assistant openai.ChatCompletionAssistantMessageParam
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: cmp.Or(tc.Function.Arguments, "{}"),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func convertTools(requestTools []tools.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(requestTools))
	for _, tool := range requestTools {
		parameters, err := tools.SchemaToMap(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("converting parameters of tool %s: %w", tool.Name, err)
		}

		def := shared.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: shared.FunctionParameters(parameters),
		}
		if tool.Description != "" {
			def.Description = openai.String(tool.Description)
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out, nil
}

func mapFinishReason(reason string) chat.FinishReason {
	switch reason {
	case "stop":
		return chat.FinishReasonStop
	case "length":
		return chat.FinishReasonLength
	case "tool_calls", "function_call":
		return chat.FinishReasonToolCalls
	case "content_filter":
		return chat.FinishReasonContentFilter
	case "":
		return ""
	default:
		return chat.FinishReasonNull
	}
}
