// Package runtime runs a test scenario against a tool-invoking agent: it
// sends the scenario, executes the requested tools, decides when the agent
// is done and turns the transcript into a verdict.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/config"
	"github.com/playwrighty/playwrighty/pkg/model/provider"
	"github.com/playwrighty/playwrighty/pkg/progress"
	"github.com/playwrighty/playwrighty/pkg/sentinel"
	"github.com/playwrighty/playwrighty/pkg/session"
	"github.com/playwrighty/playwrighty/pkg/telemetry"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

// Runtime executes tests against one agent and one tool set. Runs are
// strictly sequential: a Runtime never has two agent requests in flight.
type Runtime struct {
	agent   provider.Provider
	toolset tools.ToolSet
	config  config.RunConfig

	tracer         trace.Tracer
	sleep          func(context.Context, time.Duration) error
	exitConditions []exitCondition
}

type Opt func(*Runtime)

// WithTracer sets the tracer used for run, turn and tool call spans.
func WithTracer(tracer trace.Tracer) Opt {
	return func(r *Runtime) {
		r.tracer = tracer
	}
}

// New creates a Runtime. toolset may be nil for agents that need no tools.
func New(agent provider.Provider, toolset tools.ToolSet, cfg config.RunConfig, opts ...Opt) (*Runtime, error) {
	if agent == nil {
		return nil, errors.New("agent provider is required")
	}

	cfg.Sentinels = cfg.Sentinels.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		agent:          agent,
		toolset:        toolset,
		config:         cfg,
		tracer:         telemetry.Tracer(nil),
		sleep:          sleepContext,
		exitConditions: []exitCondition{sentinelReached, boundExceeded},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes in and waits for the verdict. A bound-exceeded run is a
// failed Result, not an error. On a transport failure both a Result with
// OutcomeError and a *TransportError are returned.
func (r *Runtime) Run(ctx context.Context, in Input) (*Result, error) {
	var stopped *StreamStoppedEvent
	for event := range r.RunStream(ctx, in) {
		if ev, ok := event.(*StreamStoppedEvent); ok {
			stopped = ev
		}
	}
	if stopped == nil {
		return nil, errors.New("run stopped without a result")
	}
	return stopped.Result, stopped.Err
}

// RunStream executes in and streams its progress. The channel is closed
// after a final StreamStoppedEvent; callers must drain it.
func (r *Runtime) RunStream(ctx context.Context, in Input) <-chan Event {
	events := make(chan Event, 64)

	go func() {
		defer close(events)

		emit := func(event Event) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		}

		result, err := r.run(ctx, in, emit)
		events <- &StreamStoppedEvent{Result: result, Err: err}
	}()

	return events
}

// runState is what the loop knows between turns.
type runState struct {
	sess      *session.Session
	progress  *progress.Aggregator
	policy    sentinel.Policy
	toolCalls int
	usage     chat.Usage
}

func (st *runState) result(outcome Outcome, started time.Time) *Result {
	text := st.progress.Text()
	return &Result{
		SessionID:   st.sess.ID,
		Success:     outcome == OutcomePassed,
		Outcome:     outcome,
		TotalSteps:  st.sess.TurnCount(),
		StepsPassed: st.progress.Passed(),
		StepsFailed: st.progress.Failed(),
		ToolCalls:   st.toolCalls,
		Usage:       st.usage,
		Transcript:  text,
		Duration:    time.Since(started),
	}
}

// exitCondition decides, after a turn, whether the run is over.
type exitCondition func(st *runState) (Outcome, bool)

// sentinelReached ends the run once the agent has written any completion
// phrase. The verdict is the presence of the success phrase.
func sentinelReached(st *runState) (Outcome, bool) {
	text := st.progress.Text()
	if !st.policy.Completed(text) {
		return "", false
	}
	if st.policy.Succeeded(text) {
		return OutcomePassed, true
	}
	return OutcomeFailed, true
}

// boundExceeded ends the run once the initial turn and MaxTurns follow-up
// turns have been taken.
func boundExceeded(st *runState) (Outcome, bool) {
	if st.sess.Exceeded() {
		return OutcomeBoundExceeded, true
	}
	return "", false
}

func (r *Runtime) run(ctx context.Context, in Input, emit func(Event)) (*Result, error) {
	started := time.Now()

	st := &runState{
		sess:     session.New(session.WithMaxTurns(r.config.MaxTurns)),
		progress: progress.New(r.config.Sentinels.Markers),
		policy:   r.config.Sentinels,
	}

	ctx, span := r.tracer.Start(ctx, "runtime.run", trace.WithAttributes(
		attribute.String("session.id", st.sess.ID),
		attribute.String("test.name", in.Name),
		attribute.String("agent", r.agent.ID()),
		attribute.Int("max_turns", r.config.MaxTurns),
	))
	defer span.End()

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Test run failed", "session_id", st.sess.ID, "test", in.Name, "error", err)
		return st.result(OutcomeError, started), err
	}

	content, err := in.testContent(r.config.PromptMode)
	if err != nil {
		return fail(err)
	}

	toolset := tools.NewStartable(r.toolsetOrEmpty())
	if err := toolset.Start(ctx); err != nil {
		return fail(&TransportError{Stage: StageStart, Err: err})
	}
	defer func() {
		if err := toolset.Stop(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to stop tool set", "session_id", st.sess.ID, "error", err)
		}
	}()

	agentTools, err := toolset.Tools(ctx)
	if err != nil {
		return fail(&TransportError{Stage: StageTools, Err: err})
	}
	byName := make(map[string]tools.Tool, len(agentTools))
	for _, tool := range agentTools {
		byName[tool.Name] = tool
	}

	prompt := initialPrompt(content, st.policy, tools.GetInstructions(toolset))
	if err := st.sess.AddMessage(chat.UserMessage(prompt)); err != nil {
		return fail(err)
	}

	slog.Debug("Starting test run",
		"session_id", st.sess.ID,
		"test", in.Name,
		"agent", r.agent.ID(),
		"tool_count", len(agentTools),
		"max_turns", r.config.MaxTurns,
		"prompt_mode", r.config.PromptMode)

	for {
		if st.sess.TurnCount() > 0 && r.config.InterStepDelay > 0 {
			if err := r.sleep(ctx, r.config.InterStepDelay); err != nil {
				return fail(err)
			}
		}

		calls, err := r.takeTurn(ctx, st, agentTools, byName, emit)
		if err != nil {
			return fail(err)
		}

		if outcome, done := r.decide(st); done {
			st.sess.Terminate()
			result := st.result(outcome, started)

			span.SetAttributes(
				attribute.String("outcome", string(outcome)),
				attribute.Int("turns", result.TotalSteps),
				attribute.Int("tool_calls", result.ToolCalls),
			)
			span.SetStatus(codes.Ok, "")
			slog.Debug("Test run finished",
				"session_id", st.sess.ID,
				"outcome", outcome,
				"turns", result.TotalSteps,
				"tool_calls", result.ToolCalls,
				"duration", result.Duration)

			return result, nil
		}

		if calls == 0 {
			if err := st.sess.AddMessage(chat.UserMessage(followUpPrompt(st.policy))); err != nil {
				return fail(err)
			}
		}
	}
}

func (r *Runtime) toolsetOrEmpty() tools.ToolSet {
	if r.toolset == nil {
		return tools.Combine()
	}
	return r.toolset
}

func (r *Runtime) decide(st *runState) (Outcome, bool) {
	for _, cond := range r.exitConditions {
		if outcome, done := cond(st); done {
			return outcome, true
		}
	}
	return "", false
}

// agentTurn is one drained agent response.
type agentTurn struct {
	content   strings.Builder
	toolCalls []tools.ToolCall
	resolved  map[string]*tools.ToolCallResult
	finish    chat.FinishReason
}

// takeTurn requests one agent turn, records it and resolves its tool calls.
// It returns how many tool calls the turn carried.
func (r *Runtime) takeTurn(
	ctx context.Context,
	st *runState,
	agentTools []tools.Tool,
	byName map[string]tools.Tool,
	emit func(Event),
) (int, error) {
	turnNumber := st.sess.TurnCount() + 1

	ctx, span := r.tracer.Start(ctx, "runtime.turn", trace.WithAttributes(
		attribute.Int("turn", turnNumber),
	))
	defer span.End()

	st.progress.NextTurn()
	emit(&TurnStartedEvent{Turn: turnNumber})

	stream, err := r.agent.CreateChatCompletionStream(ctx, st.sess.Messages(), agentTools)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &TransportError{Stage: StageRequest, Err: err}
	}

	turn, err := r.drain(ctx, stream, st, turnNumber, emit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if err := st.sess.AddMessage(chat.AssistantMessage(turn.content.String(), turn.toolCalls...)); err != nil {
		return 0, err
	}
	st.toolCalls += len(turn.toolCalls)

	span.SetAttributes(
		attribute.String("finish_reason", string(turn.finish)),
		attribute.Int("tool_calls", len(turn.toolCalls)),
	)

	for _, call := range turn.toolCalls {
		result, resolved := turn.resolved[call.ID]
		if !resolved {
			emit(&ToolCallEvent{ToolCall: call})
			result, err = r.executeToolCall(ctx, call, byName)
			if err != nil {
				return 0, err
			}
		}
		emit(&ToolCallResponseEvent{ToolCall: call, Result: result, Resolved: resolved})

		if err := st.sess.AddMessage(chat.ToolMessage(call.ID, result)); err != nil {
			return 0, err
		}
	}

	return len(turn.toolCalls), nil
}

// drain reads a turn to completion, feeding every text fragment to the
// progress aggregator. Malformed fragments are logged and skipped.
func (r *Runtime) drain(ctx context.Context, stream chat.MessageStream, st *runState, turnNumber int, emit func(Event)) (*agentTurn, error) {
	defer stream.Close()

	turn := &agentTurn{resolved: map[string]*tools.ToolCallResult{}}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return turn, nil
		}
		if errors.Is(err, chat.ErrMalformedContent) {
			slog.Warn("Skipping malformed agent output", "session_id", st.sess.ID, "turn", turnNumber, "error", err)
			emit(&WarningEvent{Message: err.Error()})
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TransportError{Stage: StageStream, Err: err}
		}

		if resp.Usage != nil {
			st.usage.InputTokens += resp.Usage.InputTokens
			st.usage.OutputTokens += resp.Usage.OutputTokens
		}

		for _, choice := range resp.Choices {
			if choice.FinishReason != "" {
				turn.finish = choice.FinishReason
			}

			delta := choice.Delta
			if delta.Content != "" {
				if !utf8.ValidString(delta.Content) {
					slog.Warn("Skipping agent output that is not valid UTF-8", "session_id", st.sess.ID, "turn", turnNumber)
					emit(&WarningEvent{Message: "agent output is not valid UTF-8"})
				} else {
					turn.content.WriteString(delta.Content)
					update := st.progress.Feed(delta.Content)
					emit(&AgentChoiceEvent{Turn: turnNumber, Content: delta.Content, Progress: update})
				}
			}

			turn.toolCalls = append(turn.toolCalls, delta.ToolCalls...)
			for _, res := range delta.ToolResults {
				if res.Result != nil {
					turn.resolved[res.ToolCallID] = res.Result
				}
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting between steps: %w", ctx.Err())
	}
}
