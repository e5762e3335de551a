package chat

import (
	"io"
	"sync"

	"github.com/playwrighty/playwrighty/pkg/tools"
)

// StaticStream replays a fixed list of responses. Transports that do not
// stream wrap their single completed response in one.
type StaticStream struct {
	mu        sync.Mutex
	responses []MessageStreamResponse
	pos       int
	closed    bool
}

var _ MessageStream = (*StaticStream)(nil)

func NewStaticStream(responses ...MessageStreamResponse) *StaticStream {
	return &StaticStream{responses: responses}
}

// NewCompletedStream builds a one-fragment stream for a finished turn.
func NewCompletedStream(content string, toolCalls []tools.ToolCall, finish FinishReason) *StaticStream {
	return NewStaticStream(MessageStreamResponse{
		Choices: []MessageStreamChoice{{
			Delta: MessageDelta{
				Role:      string(MessageRoleAssistant),
				Content:   content,
				ToolCalls: toolCalls,
			},
			FinishReason: finish,
		}},
	})
}

func (s *StaticStream) Recv() (MessageStreamResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pos >= len(s.responses) {
		return MessageStreamResponse{}, io.EOF
	}
	r := s.responses[s.pos]
	s.pos++
	return r, nil
}

func (s *StaticStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
