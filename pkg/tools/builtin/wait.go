package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/playwrighty/playwrighty/pkg/tools"
)

const ToolNameWait = "wait"

// DefaultMaxWait caps a single wait call.
const DefaultMaxWait = 30 * time.Second

type WaitTool struct {
	maxWait time.Duration
	sleep   func(context.Context, time.Duration) error
}

var (
	_ tools.ToolSet      = (*WaitTool)(nil)
	_ tools.Instructable = (*WaitTool)(nil)
)

type WaitArgs struct {
	Seconds      float64 `json:"seconds,omitempty" jsonschema:"How many seconds to wait"`
	Milliseconds int64   `json:"milliseconds,omitempty" jsonschema:"How many milliseconds to wait, added to seconds"`
}

type WaitOption func(*WaitTool)

func WithMaxWait(d time.Duration) WaitOption {
	return func(t *WaitTool) {
		if d > 0 {
			t.maxWait = d
		}
	}
}

func NewWaitTool(opts ...WaitOption) *WaitTool {
	t := &WaitTool{
		maxWait: DefaultMaxWait,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *WaitTool) wait(ctx context.Context, args WaitArgs) (*tools.ToolCallResult, error) {
	if args.Seconds < 0 || args.Milliseconds < 0 {
		return tools.ResultError("wait duration must not be negative"), nil
	}

	d := time.Duration(args.Seconds*float64(time.Second)) + time.Duration(args.Milliseconds)*time.Millisecond
	if d == 0 {
		return tools.ResultError("specify seconds or milliseconds to wait"), nil
	}

	capped := d > t.maxWait
	d = min(d, t.maxWait)

	if err := t.sleep(ctx, d); err != nil {
		return nil, err
	}

	if capped {
		return tools.ResultSuccess(fmt.Sprintf("Waited %s (capped at the maximum of %s)", d, t.maxWait)), nil
	}
	return tools.ResultSuccess(fmt.Sprintf("Waited %s", d)), nil
}

func (t *WaitTool) Instructions() string {
	return fmt.Sprintf(`## Using the wait tool

When a step asks you to wait for a given amount of time, call the wait tool instead of polling the page. A single call waits at most %s.`, t.maxWait)
}

func (t *WaitTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:        ToolNameWait,
			Category:    "wait",
			Description: "Pause the test for a fixed amount of time, for example when a step says to wait a few seconds for the page to settle.",
			Parameters:  tools.MustSchemaFor[WaitArgs](),
			Handler:     tools.NewHandler(t.wait),
			Annotations: tools.ToolAnnotations{
				ReadOnlyHint: true,
				Title:        "Wait",
			},
		},
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
