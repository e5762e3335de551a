package runtime

import (
	"fmt"
	"time"

	"github.com/playwrighty/playwrighty/pkg/chat"
)

// Outcome is how a run terminated.
type Outcome string

const (
	OutcomePassed        Outcome = "passed"
	OutcomeFailed        Outcome = "failed"
	OutcomeBoundExceeded Outcome = "bound_exceeded"
	OutcomeError         Outcome = "error"
)

// Result is the verdict of one run.
type Result struct {
	SessionID string `json:"session_id"`

	// Success is derived only from the success sentinel.
	Success bool    `json:"success"`
	Outcome Outcome `json:"outcome"`

	// TotalSteps is the number of assistant turns taken.
	TotalSteps int `json:"total_steps"`

	// StepsPassed and StepsFailed count the per-step progress markers. They
	// are diagnostic and never affect Success.
	StepsPassed int `json:"steps_passed"`
	StepsFailed int `json:"steps_failed"`

	ToolCalls int        `json:"tool_calls"`
	Usage     chat.Usage `json:"usage"`

	// Transcript is the concatenated assistant text.
	Transcript string        `json:"transcript"`
	Duration   time.Duration `json:"duration"`
}

// Stage names the step of the run at which the agent or tool transport
// failed.
type Stage string

const (
	StageStart   Stage = "start"
	StageTools   Stage = "tools"
	StageRequest Stage = "request"
	StageStream  Stage = "stream"
)

// TransportError is returned when the agent session or the tool transport
// fails. The run is not retried.
type TransportError struct {
	Stage Stage
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
