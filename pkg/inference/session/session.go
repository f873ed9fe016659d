package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/go-go-golems/tablebot/pkg/inference/toolloop"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSessionID   = "default"
	DefaultTurnTimeout = 60 * time.Second
)

var (
	ErrSessionNil     = errors.New("session is nil")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNothingToRetry = errors.New("last turn completed, nothing to retry")
)

// TurnRunner runs a single turn on a conversation. *toolloop.Loop implements it.
type TurnRunner interface {
	RunTurn(ctx context.Context, conv conversation.Conversation) (conversation.Conversation, toolloop.Result)
}

// Reply is what a caller gets back from a turn. Text is always set, falling back to
// an apology when the turn did not complete.
type Reply struct {
	Text       string           `json:"text"`
	Outcome    toolloop.Outcome `json:"outcome"`
	Iterations int              `json:"iterations"`
	ToolCalls  int              `json:"tool_calls"`
	TurnID     string           `json:"turn_id"`
}

// Session is one conversation with the assistant. It owns its history; turns on a
// session are strictly sequential, concurrent Send calls queue on the session lock.
type Session struct {
	SessionID string

	runner      TurnRunner
	turnTimeout time.Duration
	window      HistoryWindow
	sinks       []events.EventSink

	mu   sync.Mutex
	conv conversation.Conversation
}

type Option func(*Session)

func WithTurnTimeout(d time.Duration) Option {
	return func(s *Session) { s.turnTimeout = d }
}

func WithHistoryWindow(w HistoryWindow) Option {
	return func(s *Session) { s.window = w }
}

func WithEventSinks(sinks ...events.EventSink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sinks...) }
}

func NewSession(id string, runner TurnRunner, opts ...Option) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		SessionID:   id,
		runner:      runner,
		turnTimeout: DefaultTurnTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Send appends the user's message, runs one turn and keeps the resulting state.
//
// The returned error is the turn-level failure, if any (see toolloop.Err*). The
// reply text is valid in both cases. When the model is unavailable or the turn times
// out, the user's message and every completed step are kept so Retry can pick the
// turn up again.
func (s *Session) Send(ctx context.Context, text string) (Reply, error) {
	if s == nil {
		return Reply{}, ErrSessionNil
	}
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conv.Append(conversation.NewUserMessage(text))
	return s.runLocked(ctx, text, false)
}

// Retry runs a turn again without adding a user message. It only applies when the
// last turn ended before the model answered.
func (s *Session) Retry(ctx context.Context) (Reply, error) {
	if s == nil {
		return Reply{}, ErrSessionNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completedLocked() {
		return Reply{}, ErrNothingToRetry
	}
	return s.runLocked(ctx, "", true)
}

// completedLocked reports whether the last turn ended with an answer. A turn that
// stopped early leaves the user's message, a committed tool round or an empty model
// response at the end.
func (s *Session) completedLocked() bool {
	last := s.conv.Last()
	if last == nil {
		return true
	}
	switch last.Role {
	case conversation.RoleUser, conversation.RoleTool:
		return false
	case conversation.RoleAssistant:
		return last.HasText() || last.HasToolCalls()
	}
	return true
}

func (s *Session) runLocked(ctx context.Context, userText string, retry bool) (Reply, error) {
	if s.runner == nil {
		return Reply{}, errors.New("session has no turn runner")
	}

	turnID := uuid.NewString()
	ctx = events.WithEventSinks(ctx, s.sinks...)
	ctx = events.WithMetadata(ctx, events.EventMetadata{SessionID: s.SessionID, TurnID: turnID})
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	events.PublishEventToContext(ctx, events.NewTurnStartedEvent(events.MetadataFromContext(ctx), userText, retry))

	input := s.conv
	if s.window != nil {
		windowed, err := s.window.Window(ctx, input)
		if err != nil {
			return Reply{}, errors.Wrap(err, "history window")
		}
		input = windowed
	}

	out, res := s.runner.RunTurn(ctx, input)

	// commit everything the turn appended after its input
	if len(out) > len(input) {
		s.conv.Append(out[len(input):]...)
	}

	logger := log.With().Str("session_id", s.SessionID).Str("turn_id", turnID).Logger()
	if res.Err != nil {
		logger.Warn().Err(res.Err).Str("outcome", string(res.Outcome)).Int("history", len(s.conv)).Msg("turn ended without an answer")
	} else {
		logger.Debug().Int("iterations", res.Iterations).Int("history", len(s.conv)).Msg("turn completed")
	}

	return Reply{
		Text:       res.Text,
		Outcome:    res.Outcome,
		Iterations: res.Iterations,
		ToolCalls:  res.ToolCalls,
		TurnID:     turnID,
	}, res.Err
}

// Reset clears the history. It waits for an in-flight turn to finish.
func (s *Session) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = nil
	log.Debug().Str("session_id", s.SessionID).Msg("session reset")
}

// History returns a deep copy of the conversation.
func (s *Session) History() conversation.Conversation {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Clone()
}

func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conv)
}
