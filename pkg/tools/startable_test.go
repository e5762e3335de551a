package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolSet struct {
	name         string
	instructions string
	startErr     error
	starts       int
	stops        int
}

func (f *fakeToolSet) Tools(context.Context) ([]Tool, error) {
	return []Tool{{Name: f.name}}, nil
}

func (f *fakeToolSet) Start(context.Context) error {
	f.starts++
	return f.startErr
}

func (f *fakeToolSet) Stop(context.Context) error {
	f.stops++
	return nil
}

func (f *fakeToolSet) Instructions() string { return f.instructions }

type plainToolSet struct{}

func (plainToolSet) Tools(context.Context) ([]Tool, error) { return nil, nil }

func TestStartableStartsOnce(t *testing.T) {
	t.Parallel()

	inner := &fakeToolSet{name: "a"}
	s := NewStartable(inner)

	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, s.Start(t.Context()))
	assert.True(t, s.IsStarted())
	assert.Equal(t, 1, inner.starts)

	require.NoError(t, s.Stop(t.Context()))
	require.NoError(t, s.Stop(t.Context()))
	assert.Equal(t, 1, inner.stops)
	assert.False(t, s.IsStarted())
}

func TestStartableRetriesFailedStart(t *testing.T) {
	t.Parallel()

	inner := &fakeToolSet{startErr: errors.New("boom")}
	s := NewStartable(inner)

	require.Error(t, s.Start(t.Context()))
	assert.False(t, s.IsStarted())

	inner.startErr = nil
	require.NoError(t, s.Start(t.Context()))
	assert.Equal(t, 2, inner.starts)
}

func TestStartableWithoutStartable(t *testing.T) {
	t.Parallel()

	s := NewStartable(plainToolSet{})
	require.NoError(t, s.Start(t.Context()))
	assert.True(t, s.IsStarted())
	assert.Same(t, s, NewStartable(s))
}

func TestDeepAs(t *testing.T) {
	t.Parallel()

	inner := &fakeToolSet{instructions: "use me"}
	wrapped := NewStartable(NewStartable(inner))

	got, ok := DeepAs[*fakeToolSet](wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)

	_, ok = DeepAs[*CombinedToolSet](wrapped)
	assert.False(t, ok)

	assert.Equal(t, "use me", GetInstructions(wrapped))
}

func TestCombineStartStopsStartedMembersOnFailure(t *testing.T) {
	t.Parallel()

	first := &fakeToolSet{name: "first"}
	second := &fakeToolSet{name: "second", startErr: errors.New("cannot launch")}
	combined := Combine(first, second)

	err := combined.Start(t.Context())
	require.EqualError(t, err, "cannot launch")
	assert.Equal(t, 1, first.stops)
	assert.Equal(t, 0, second.stops)
}

func TestCombineTools(t *testing.T) {
	t.Parallel()

	combined := Combine(
		&fakeToolSet{name: "browser_click", instructions: "browser"},
		nil,
		&fakeToolSet{name: "wait", instructions: "  "},
	)
	require.NoError(t, combined.Start(t.Context()))

	list, err := combined.Tools(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "browser_click", list[0].Name)
	assert.Equal(t, "wait", list[1].Name)
	assert.Equal(t, "browser", combined.Instructions())

	_, err = Combine(&fakeToolSet{name: "x"}, &fakeToolSet{name: "x"}).Tools(t.Context())
	require.ErrorContains(t, err, `duplicate tool name "x"`)
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	type args struct {
		Text string `json:"text"`
	}
	handler := NewHandler(func(_ context.Context, a args) (*ToolCallResult, error) {
		return ResultSuccess("got " + a.Text), nil
	})

	result, err := handler(t.Context(), ToolCall{Function: FunctionCall{Name: "echo", Arguments: `{"text":"hi"}`}})
	require.NoError(t, err)
	assert.Equal(t, "got hi", result.Output)

	result, err = handler(t.Context(), ToolCall{Function: FunctionCall{Name: "echo"}})
	require.NoError(t, err)
	assert.Equal(t, "got ", result.Output)

	_, err = handler(t.Context(), ToolCall{Function: FunctionCall{Name: "echo", Arguments: `{`}})
	require.ErrorContains(t, err, "invalid arguments for echo")
}
