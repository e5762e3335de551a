// Package provider opens agent sessions against LLM APIs.
package provider

import (
	"context"
	"fmt"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/environment"
	"github.com/playwrighty/playwrighty/pkg/model/provider/anthropic"
	"github.com/playwrighty/playwrighty/pkg/model/provider/openai"
	"github.com/playwrighty/playwrighty/pkg/model/provider/options"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

// Provider is the agent transport: given the transcript so far and the
// tools on offer, it produces the agent's next turn as a stream.
type Provider interface {
	// ID identifies the provider and model, e.g. "openai/gpt-4o-mini".
	ID() string
	CreateChatCompletionStream(ctx context.Context, messages []chat.Message, requestTools []tools.Tool) (chat.MessageStream, error)
}

var (
	_ Provider = (*openai.Client)(nil)
	_ Provider = (*anthropic.Client)(nil)
)

// New creates the provider named by cfg.Provider.
func New(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai":
		p, err = openai.NewClient(ctx, cfg, env, opts...)
	case "anthropic":
		p, err = anthropic.NewClient(ctx, cfg, env, opts...)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
