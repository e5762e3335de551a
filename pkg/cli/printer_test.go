package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/progress"
	"github.com/playwrighty/playwrighty/pkg/runtime"
	"github.com/playwrighty/playwrighty/pkg/sentinel"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

func TestPrinterAppendsProgressWhenNotATerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHeader("Login", "tests/login.md")
	p.HandleEvent(&runtime.TurnStartedEvent{Turn: 1})
	p.HandleEvent(&runtime.ToolCallEvent{ToolCall: tools.ToolCall{Function: tools.FunctionCall{Name: "browser_click"}}})
	p.HandleEvent(&runtime.AgentChoiceEvent{Turn: 1, Content: "step one: test passed", Progress: progress.Update{New: []sentinel.Kind{sentinel.Passed}}})
	p.HandleEvent(&runtime.AgentChoiceEvent{Turn: 1, Content: "no markers"})
	p.HandleEvent(&runtime.TurnStartedEvent{Turn: 2})
	p.HandleEvent(&runtime.AgentChoiceEvent{Turn: 2, Progress: progress.Update{New: []sentinel.Kind{sentinel.Failed}}})
	p.HandleEvent(&runtime.WarningEvent{Message: "skipped a fragment"})

	assert.Equal(t, buf.String(), `▶ Login (tests/login.md)
  turn 1
  turn 1 ✓
  turn 2 ✓
  turn 2 ✓✗
warning: skipped a fragment
`)
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *FileResult
		want string
	}{
		{
			name: "passed",
			res: &FileResult{Title: "Login", Result: &runtime.Result{
				Success: true, Outcome: runtime.OutcomePassed, TotalSteps: 2, ToolCalls: 1,
				Duration: 1500 * time.Millisecond, Usage: chat.Usage{InputTokens: 1200, OutputTokens: 34},
			}},
			want: "✓ Login passed (2 steps, 1 tool call, 1.5s, 1,234 tokens)\n",
		},
		{
			name: "failed",
			res: &FileResult{File: "tests/cart.md", Result: &runtime.Result{
				Outcome: runtime.OutcomeFailed, TotalSteps: 1,
			}},
			want: "✗ cart.md failed (1 step, 0 tool calls, 0s)\n",
		},
		{
			name: "bound",
			res: &FileResult{Title: "Slow", Result: &runtime.Result{
				Outcome: runtime.OutcomeBoundExceeded, TotalSteps: 4,
			}},
			want: "✗ Slow failed: no verdict after 4 turns (4 steps, 0 tool calls, 0s)\n",
		},
		{
			name: "errored",
			res:  &FileResult{Title: "Broken", Err: errors.New("boom"), Stage: StageSetup},
			want: "✗ Broken: error during setup: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			NewPrinter(&buf).PrintResult(tt.res)
			assert.Equal(t, buf.String(), tt.want)
		})
	}
}

func TestPrintList(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewPrinter(&buf).PrintList(nil)
	assert.Assert(t, is.Contains(buf.String(), "No tests found."))
}
