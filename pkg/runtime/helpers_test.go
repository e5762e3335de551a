package runtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

// scriptStream replays responses and errors in order.
type scriptStream struct {
	steps  []scriptStep
	pos    int
	closed bool
}

type scriptStep struct {
	resp chat.MessageStreamResponse
	err  error
}

func (s *scriptStream) Recv() (chat.MessageStreamResponse, error) {
	if s.pos >= len(s.steps) {
		return chat.MessageStreamResponse{}, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	return step.resp, step.err
}

func (s *scriptStream) Close() { s.closed = true }

type streamBuilder struct {
	steps []scriptStep
}

func newStreamBuilder() *streamBuilder {
	return &streamBuilder{}
}

func (b *streamBuilder) add(delta chat.MessageDelta, finish chat.FinishReason) *streamBuilder {
	b.steps = append(b.steps, scriptStep{resp: chat.MessageStreamResponse{
		Choices: []chat.MessageStreamChoice{{Delta: delta, FinishReason: finish}},
	}})
	return b
}

func (b *streamBuilder) AddContent(content string) *streamBuilder {
	return b.add(chat.MessageDelta{Role: string(chat.MessageRoleAssistant), Content: content}, "")
}

func (b *streamBuilder) AddToolCall(id, name, arguments string) *streamBuilder {
	return b.add(chat.MessageDelta{ToolCalls: []tools.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: tools.FunctionCall{Name: name, Arguments: arguments},
	}}}, chat.FinishReasonToolCalls)
}

func (b *streamBuilder) AddResolvedToolCall(id, name, output string) *streamBuilder {
	return b.add(chat.MessageDelta{
		ToolCalls: []tools.ToolCall{{ID: id, Type: "function", Function: tools.FunctionCall{Name: name, Arguments: "{}"}}},
		ToolResults: []chat.ToolResult{{
			ToolCallID: id,
			Result:     tools.ResultSuccess(output),
		}},
	}, chat.FinishReasonToolCalls)
}

func (b *streamBuilder) AddError(err error) *streamBuilder {
	b.steps = append(b.steps, scriptStep{err: err})
	return b
}

func (b *streamBuilder) AddStopWithUsage(input, output int64) *streamBuilder {
	b.steps = append(b.steps, scriptStep{resp: chat.MessageStreamResponse{
		Choices: []chat.MessageStreamChoice{{FinishReason: chat.FinishReasonStop}},
		Usage:   &chat.Usage{InputTokens: input, OutputTokens: output},
	}})
	return b
}

func (b *streamBuilder) Build() *scriptStream {
	return &scriptStream{steps: b.steps}
}

// multiStreamProvider returns one stream per request, repeating the last
// factory once the script runs out, and records every request.
type multiStreamProvider struct {
	mu       sync.Mutex
	streams  []func() chat.MessageStream
	requests [][]chat.Message
	toolSets [][]tools.Tool
	err      error
}

func newProvider(streams ...*streamBuilder) *multiStreamProvider {
	p := &multiStreamProvider{}
	for _, b := range streams {
		p.streams = append(p.streams, func() chat.MessageStream { return b.Build() })
	}
	return p
}

func (m *multiStreamProvider) ID() string { return "fake/agent" }

func (m *multiStreamProvider) CreateChatCompletionStream(_ context.Context, messages []chat.Message, requestTools []tools.Tool) (chat.MessageStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, messages)
	m.toolSets = append(m.toolSets, requestTools)
	if m.err != nil {
		return nil, m.err
	}
	idx := min(len(m.requests)-1, len(m.streams)-1)
	return m.streams[idx](), nil
}

func (m *multiStreamProvider) Requests() [][]chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

type fakeToolSet struct {
	tools        []tools.Tool
	instructions string
	startErr     error
	toolsErr     error

	started int
	stopped int
}

func (f *fakeToolSet) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}

func (f *fakeToolSet) Stop(context.Context) error {
	f.stopped++
	return nil
}

func (f *fakeToolSet) Tools(context.Context) ([]tools.Tool, error) {
	return f.tools, f.toolsErr
}

func (f *fakeToolSet) Instructions() string { return f.instructions }

func runConfig(maxTurns int) config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.MaxTurns = maxTurns
	return cfg
}

// sleepRecorder replaces the inter-step sleep.
type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

var errBoom = errors.New("boom")
