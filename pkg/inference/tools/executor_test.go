package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echoInput struct {
	Value string `json:"value,omitempty"`
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(NewCompletionTool("finishedUsingTools", "done"))

	echo, err := NewToolFromFunc("echo", "echoes its input", func(in echoInput) string {
		return in.Value
	})
	require.NoError(t, err)
	r.MustRegister(*echo)

	r.MustRegister(ToolDefinition{
		Name: "sleepy",
		Function: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Ms  int    `json:"ms"`
				Out string `json:"out"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			select {
			case <-time.After(time.Duration(in.Ms) * time.Millisecond):
				return in.Out, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})
	r.MustRegister(ToolDefinition{
		Name: "panics",
		Function: func(context.Context, json.RawMessage) (string, error) {
			panic("boom")
		},
	})
	return r
}

func call(id, name, args string) conversation.ToolCall {
	return conversation.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestExecutor_ResultsFollowCallOrder(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig().WithMaxParallelTools(8))

	rnd := rand.New(rand.NewSource(1))
	var calls []conversation.ToolCall
	for i := 0; i < 8; i++ {
		calls = append(calls, call(fmt.Sprintf("c%d", i), "sleepy", fmt.Sprintf(`{"ms":%d,"out":"r%d"}`, rnd.Intn(30), i)))
	}

	results, err := ex.ExecuteAll(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, results, len(calls))
	for i, res := range results {
		assert.Equal(t, calls[i].ID, res.ID)
		assert.Equal(t, fmt.Sprintf("r%d", i), res.Content)
		assert.False(t, res.Failed())
	}
}

func TestExecutor_FailuresBecomeResults(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig())

	results, err := ex.ExecuteAll(context.Background(), []conversation.ToolCall{
		call("1", "doAnything", `{}`),
		call("2", "panics", `{}`),
		call("3", "echo", `{"value":12}`),
		call("4", "finishedUsingTools", `{}`),
		call("5", "echo", `{"value":"ok"}`),
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Contains(t, results[0].Error, "unknown capability")
	assert.Contains(t, results[0].Error, "doAnything")
	assert.Contains(t, results[1].Error, "boom")
	assert.Contains(t, results[2].Error, "invalid arguments")
	assert.Contains(t, results[3].Error, "completion signal")
	assert.Equal(t, "ok", results[4].Content)
	assert.False(t, results[4].Failed())
}

func TestExecutor_SkipsValidationWhenDisabled(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig().WithValidateArguments(false))

	res := ex.Execute(context.Background(), call("1", "echo", `{"value":"x","extra":true}`))
	assert.Equal(t, "x", res.Content)
}

func TestExecutor_EmptyArgumentsAreAnObject(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig())

	res := ex.Execute(context.Background(), call("1", "echo", ``))
	assert.False(t, res.Failed(), res.Error)
	assert.Equal(t, "", res.Content)
}

func TestExecutor_PerCallTimeout(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig().WithExecutionTimeout(20*time.Millisecond))

	res := ex.Execute(context.Background(), call("1", "sleepy", `{"ms":2000,"out":"late"}`))
	assert.Contains(t, res.Error, "timed out")
	assert.Less(t, res.Duration, time.Second)
}

func TestExecutor_DisallowedTool(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig().WithAllowedTools([]string{"sleepy"}))

	res := ex.Execute(context.Background(), call("1", "echo", `{"value":"x"}`))
	assert.Contains(t, res.Error, "not allowed")
}

func TestExecutor_CancelledContextAbandonsBatch(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, err := ex.ExecuteAll(ctx, []conversation.ToolCall{
		call("1", "sleepy", `{"ms":5000,"out":"never"}`),
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, results)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecutor_PublishesEvents(t *testing.T) {
	r := newTestRegistry(t)
	ex := NewExecutor(r, DefaultToolConfig())
	sink := events.NewCollectingSink()
	ctx := events.WithEventSinks(context.Background(), sink)
	ctx = events.WithMetadata(ctx, events.EventMetadata{SessionID: "s1"})

	_, err := ex.ExecuteAll(ctx, []conversation.ToolCall{call("c1", "echo", `{"value":"hi"}`)})
	require.NoError(t, err)

	starts := sink.OfType(events.EventTypeToolCallExecute)
	results := sink.OfType(events.EventTypeToolCallExecutionResult)
	require.Len(t, starts, 1)
	require.Len(t, results, 1)
	res := results[0].(*events.EventToolCallExecutionResult)
	assert.Equal(t, "c1", res.ToolResult.ID)
	assert.Equal(t, "hi", res.ToolResult.Result)
	assert.Equal(t, "s1", res.Metadata().SessionID)
}
