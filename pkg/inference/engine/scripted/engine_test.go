package scripted

import (
	"context"
	"testing"
	"time"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScript(t *testing.T) {
	s, err := LoadScript("testdata/cuisines.yaml")
	require.NoError(t, err)
	require.Len(t, s.Steps, 2)

	e := NewEngine(s)
	conv := conversation.Conversation{conversation.NewUserMessage("what cuisines?")}

	first, err := e.RunInference(context.Background(), conv, nil)
	require.NoError(t, err)
	require.Len(t, first.ToolCalls, 1)
	assert.Equal(t, "call_1", first.ToolCalls[0].ID)
	assert.JSONEq(t, `{}`, string(first.ToolCalls[0].Arguments))

	second, err := e.RunInference(context.Background(), conv, nil)
	require.NoError(t, err)
	assert.Contains(t, second.Text, "Italian")
	require.Len(t, second.ToolCalls, 1)
	assert.NotEmpty(t, second.ToolCalls[0].ID)

	_, err = e.RunInference(context.Background(), conv, nil)
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Equal(t, 3, e.Calls())
}

func TestEngine_RecordsClonedRequests(t *testing.T) {
	e := NewEngineFromSteps(Step{Text: "hi"})
	conv := conversation.Conversation{conversation.NewUserMessage("hello")}

	_, err := e.RunInference(context.Background(), conv, nil)
	require.NoError(t, err)
	conv[0].Text = "mutated"

	reqs := e.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "hello", reqs[0].Messages[0].Text)
}

func TestEngine_LoopAndErrors(t *testing.T) {
	e := NewEngine(Script{Loop: true, Steps: []Step{{Error: "model overloaded"}, {Text: "ok"}}})

	_, err := e.RunInference(context.Background(), nil, nil)
	assert.EqualError(t, err, "model overloaded")
	msg, err := e.RunInference(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Text)
	_, err = e.RunInference(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestEngine_DelayHonoursContext(t *testing.T) {
	e := NewEngineFromSteps(Step{Text: "late", Delay: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.RunInference(ctx, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
