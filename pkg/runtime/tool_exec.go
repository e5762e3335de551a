package runtime

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playwrighty/playwrighty/pkg/tools"
)

// executeToolCall runs call against the tool set. Every failure of the tool
// itself becomes an error result for the agent to read; only a cancelled
// context stops the run.
func (r *Runtime) executeToolCall(ctx context.Context, call tools.ToolCall, byName map[string]tools.Tool) (*tools.ToolCallResult, error) {
	name := call.Function.Name

	ctx, span := r.tracer.Start(ctx, "runtime.tool_call", trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	tool, ok := byName[name]
	if !ok || tool.Handler == nil {
		slog.Warn("Agent called an unknown tool", "tool", name, "call_id", call.ID)
		span.SetStatus(codes.Error, "unknown tool")
		return tools.ResultError(fmt.Sprintf("tool %q is not available", name)), nil
	}

	if !json.Valid([]byte(cmp.Or(call.Function.Arguments, "{}"))) {
		slog.Warn("Agent sent invalid tool arguments", "tool", name, "call_id", call.ID, "arguments", call.Function.Arguments)
		span.SetStatus(codes.Error, "invalid arguments")
		return tools.ResultError(fmt.Sprintf("invalid JSON arguments for tool %q", name)), nil
	}

	slog.Debug("Calling tool", "tool", name, "call_id", call.ID, "arguments", call.Function.Arguments)
	start := time.Now()

	result, err := tool.Handler(ctx, call)

	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(start).Milliseconds()))

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Tool call failed", "tool", name, "call_id", call.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return tools.ResultError(err.Error()), nil
	}
	if result == nil {
		result = tools.ResultSuccess("")
	}

	if result.IsError {
		span.SetStatus(codes.Error, "tool returned an error")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	slog.Debug("Tool call finished", "tool", name, "call_id", call.ID, "is_error", result.IsError, "duration", time.Since(start))

	return result, nil
}
