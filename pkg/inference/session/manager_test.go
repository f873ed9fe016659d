package session

import (
	"context"
	"sync"
	"testing"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(func(id string) *Session {
		return NewSession(id, answering("ok"))
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	m := newTestManager()

	_, ok := m.Get("a")
	assert.False(t, ok)

	a := m.GetOrCreate("a")
	assert.Equal(t, "a", a.SessionID)
	assert.Same(t, a, m.GetOrCreate("a"))

	def := m.GetOrCreate("")
	assert.Equal(t, DefaultSessionID, def.SessionID)
	got, ok := m.Get("")
	require.True(t, ok)
	assert.Same(t, def, got)

	assert.Equal(t, []string{"a", DefaultSessionID}, m.IDs())
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := newTestManager()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.GetOrCreate(id).Send(context.Background(), "hi from "+id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c"} {
		h := m.GetOrCreate(id).History()
		require.Len(t, h, 2)
		assert.Equal(t, "hi from "+id, h[0].Text)
	}
}

func TestManager_ResetAndDelete(t *testing.T) {
	m := newTestManager()
	s := m.GetOrCreate("a")
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	assert.True(t, m.Reset("a"))
	assert.Equal(t, 0, s.Len())
	assert.False(t, m.Reset("missing"))

	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("a"))
	assert.Empty(t, m.IDs())
}

func TestTokenWindow_CountsAndPassesThrough(t *testing.T) {
	w, err := NewTokenWindow(5)
	require.NoError(t, err)

	conv := conversation.Conversation{
		conversation.NewUserMessage("I would like to eat some Italian food tonight, what do you have?"),
		conversation.NewAssistantMessage("", conversation.ToolCall{ID: "c1", Name: "getRestaurantsByCuisineType", Arguments: []byte(`{"cuisineType":"Italian"}`)}),
	}

	n := w.Count(conv)
	assert.Greater(t, n, 2*perMessageOverhead)
	assert.Equal(t, 0, w.Count(nil))

	out, err := w.Window(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, conv, out)
}
