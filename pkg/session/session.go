// Package session holds the transcript of a single test execution.
package session

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playwrighty/playwrighty/pkg/chat"
)

var (
	// ErrTerminated is returned when appending to a terminated session.
	ErrTerminated = errors.New("session is terminated")
	// ErrTurnLimit is returned when an assistant turn would exceed the
	// session's turn capacity.
	ErrTurnLimit = errors.New("session turn limit reached")
)

// Session is the append-only transcript of one run. The initial assistant
// turn plus at most MaxTurns follow-up turns can be recorded. Once
// Terminate is called the session rejects further messages.
//
// A Session is owned by a single run and is not safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	// MaxTurns bounds the follow-up turns. Zero means unbounded.
	MaxTurns int

	messages   []chat.Message
	turnCount  int
	terminated bool
}

type Opt func(*Session)

func WithMaxTurns(maxTurns int) Opt {
	return func(s *Session) {
		s.MaxTurns = maxTurns
	}
}

func WithID(id string) Opt {
	return func(s *Session) {
		s.ID = id
	}
}

func New(opts ...Opt) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddMessage appends msg to the transcript. Assistant messages count as a
// turn.
func (s *Session) AddMessage(msg chat.Message) error {
	if s.terminated {
		return ErrTerminated
	}

	if msg.Role == chat.MessageRoleAssistant {
		if s.MaxTurns > 0 && s.turnCount >= s.MaxTurns+1 {
			return ErrTurnLimit
		}
		s.turnCount++
	}

	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []chat.Message {
	return slices.Clone(s.messages)
}

// TurnCount is the number of assistant turns recorded so far.
func (s *Session) TurnCount() int {
	return s.turnCount
}

// Exceeded reports whether the session has used more turns than MaxTurns.
func (s *Session) Exceeded() bool {
	return s.MaxTurns > 0 && s.turnCount > s.MaxTurns
}

// Terminate marks the session as finished. It is idempotent.
func (s *Session) Terminate() {
	s.terminated = true
}

func (s *Session) Terminated() bool {
	return s.terminated
}

// AssistantText joins the text of every assistant turn, one per line.
func (s *Session) AssistantText() string {
	var parts []string
	for _, msg := range s.messages {
		if msg.Role == chat.MessageRoleAssistant && msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// LastAssistantContent returns the text of the most recent assistant turn.
func (s *Session) LastAssistantContent() string {
	for _, msg := range slices.Backward(s.messages) {
		if msg.Role == chat.MessageRoleAssistant {
			return msg.Content
		}
	}
	return ""
}

// ToolCallCount is the number of tool calls requested across all turns.
func (s *Session) ToolCallCount() int {
	n := 0
	for _, msg := range s.messages {
		n += len(msg.ToolCalls)
	}
	return n
}
