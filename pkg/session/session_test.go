package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playwrighty/playwrighty/pkg/chat"
	"github.com/playwrighty/playwrighty/pkg/tools"
)

func TestNewSession(t *testing.T) {
	t.Parallel()

	s := New(WithMaxTurns(3))

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.MaxTurns)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Empty(t, s.Messages())

	assert.Equal(t, "fixed", New(WithID("fixed")).ID)
}

func TestTurnCountOnlyCountsAssistantMessages(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.AddMessage(chat.UserMessage("run the test")))
	require.NoError(t, s.AddMessage(chat.AssistantMessage("navigating", tools.ToolCall{ID: "1"}, tools.ToolCall{ID: "2"})))
	require.NoError(t, s.AddMessage(chat.ToolMessage("1", tools.ResultSuccess("ok"))))
	require.NoError(t, s.AddMessage(chat.ToolMessage("2", tools.ResultSuccess("ok"))))
	require.NoError(t, s.AddMessage(chat.AssistantMessage("test passed")))

	assert.Equal(t, 2, s.TurnCount())
	assert.Equal(t, 2, s.ToolCallCount())
	assert.Len(t, s.Messages(), 5)
	assert.Equal(t, "navigating\ntest passed", s.AssistantText())
	assert.Equal(t, "test passed", s.LastAssistantContent())
}

func TestTurnCapacityIsMaxTurnsPlusOne(t *testing.T) {
	t.Parallel()

	s := New(WithMaxTurns(2))
	for range 3 {
		require.NoError(t, s.AddMessage(chat.AssistantMessage("still going")))
	}
	assert.True(t, s.Exceeded())

	err := s.AddMessage(chat.AssistantMessage("one too many"))
	require.ErrorIs(t, err, ErrTurnLimit)
	assert.Equal(t, 3, s.TurnCount())

	require.NoError(t, s.AddMessage(chat.UserMessage("user turns are not bounded")))
}

func TestTerminatedSessionRejectsMessages(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.AddMessage(chat.AssistantMessage("test failed")))

	s.Terminate()
	s.Terminate()

	assert.True(t, s.Terminated())
	require.ErrorIs(t, s.AddMessage(chat.UserMessage("more")), ErrTerminated)
	assert.Len(t, s.Messages(), 1)
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.AddMessage(chat.UserMessage("original")))

	msgs := s.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "original", s.Messages()[0].Content)
}
