package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishEventToContext_NoSinksIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		PublishEventToContext(context.Background(), NewToolCallEvent(EventMetadata{}, ToolCall{ID: "1"}))
	})
}

func TestPublishEventToContext_CarriesMetadata(t *testing.T) {
	sink := NewCollectingSink()
	ctx := WithEventSinks(context.Background(), sink)
	ctx = WithMetadata(ctx, EventMetadata{SessionID: "s1", TurnID: "t1"})

	PublishEventToContext(ctx, NewToolCallEvent(MetadataFromContext(ctx), ToolCall{ID: "c1", Name: "getAllRestaurants"}))
	PublishEventToContext(ctx, NewFinalEvent(MetadataFromContext(ctx), "done", "completed", 2))

	got := sink.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].Metadata().SessionID)
	assert.Equal(t, "t1", got[1].Metadata().TurnID)
	assert.NotEqual(t, got[0].Metadata().ID, got[1].Metadata().ID)
	assert.Len(t, sink.OfType(EventTypeFinal), 1)
}

func TestWithEventSinks_Appends(t *testing.T) {
	a, b := NewCollectingSink(), NewCollectingSink()
	ctx := WithEventSinks(context.Background(), a)
	ctx = WithEventSinks(ctx, b)
	assert.Len(t, GetEventSinks(ctx), 2)

	PublishEventToContext(ctx, NewErrorEvent(EventMetadata{}, assert.AnError))
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestNewEventFromJson_DecodesConcreteType(t *testing.T) {
	ev := NewToolCallExecutionResultEvent(EventMetadata{SessionID: "s"}, ToolResult{ID: "c1", Name: "getAllCuisineTypes", Result: "Italian, Thai", DurationMs: 3})
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	decoded, err := NewEventFromJson(b)
	require.NoError(t, err)
	res, ok := decoded.(*EventToolCallExecutionResult)
	require.True(t, ok)
	assert.Equal(t, "Italian, Thai", res.ToolResult.Result)
	assert.Equal(t, "s", res.Metadata().SessionID)
	assert.Equal(t, b, decoded.Payload())
}

func TestNewEventFromJson_UnknownType(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{"type":"nope"}`))
	assert.Error(t, err)
}

func TestWatermillSink_PublishesJSON(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubsub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := pubsub.Subscribe(ctx, TopicTurns)
	require.NoError(t, err)

	sink := NewWatermillSink(pubsub, TopicTurns)
	require.NoError(t, sink.PublishEvent(NewTurnStartedEvent(EventMetadata{SessionID: "s"}, "hello", false)))

	select {
	case msg := <-msgs:
		msg.Ack()
		ev, err := NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		started, ok := ev.(*EventTurnStarted)
		require.True(t, ok)
		assert.Equal(t, "hello", started.UserText)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestEventRouter_StepPrinter(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	var buf syncBuffer
	done := make(chan struct{})
	router.AddHandler("printer", TopicTurns, func(msg *message.Message) error {
		err := StepPrinterFunc(&buf)(msg)
		close(done)
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	require.NoError(t, router.Sink(TopicTurns).PublishEvent(NewToolCallEvent(EventMetadata{}, ToolCall{ID: "c1", Name: "getAllCuisineTypes", Input: "{}"})))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not invoked")
	}
	assert.Contains(t, buf.String(), "getAllCuisineTypes")
	require.NoError(t, router.Close())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
