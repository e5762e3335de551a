package runtime

import (
	"github.com/playwrighty/playwrighty/pkg/progress"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

// Event is emitted by RunStream while a run progresses.
type Event interface {
	isEvent()
}

// TurnStartedEvent is sent before each agent request. Turn is 1-based.
type TurnStartedEvent struct {
	Turn int
}

// AgentChoiceEvent carries one fragment of agent text and the progress
// markers it completed.
type AgentChoiceEvent struct {
	Turn     int
	Content  string
	Progress progress.Update
}

// ToolCallEvent is sent before the controller executes a tool call.
type ToolCallEvent struct {
	ToolCall tools.ToolCall
}

// ToolCallResponseEvent reports the result of a tool call. Resolved is true
// when the agent transport executed the call itself.
type ToolCallResponseEvent struct {
	ToolCall tools.ToolCall
	Result   *tools.ToolCallResult
	Resolved bool
}

// WarningEvent reports a recovered problem, such as malformed agent output.
type WarningEvent struct {
	Message string
}

// StreamStoppedEvent is always the last event of a run.
type StreamStoppedEvent struct {
	Result *Result
	Err    error
}

func (*TurnStartedEvent) isEvent()      {}
func (*AgentChoiceEvent) isEvent()      {}
func (*ToolCallEvent) isEvent()         {}
func (*ToolCallResponseEvent) isEvent() {}
func (*WarningEvent) isEvent()          {}
func (*StreamStoppedEvent) isEvent()    {}
