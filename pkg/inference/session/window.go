package session

import (
	"context"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// HistoryWindow selects the part of a session's history sent to the model on a turn.
// The returned conversation must be a prefix-preserving view: the session commits
// whatever the turn appends after it.
type HistoryWindow interface {
	Window(ctx context.Context, conv conversation.Conversation) (conversation.Conversation, error)
}

// perMessageOverhead approximates the role and separator tokens chat formats add.
const perMessageOverhead = 4

// TokenWindow passes the history through unchanged and logs a warning once it grows
// past WarnTokens. Counts are approximate, computed with the cl100k encoding.
type TokenWindow struct {
	WarnTokens int
	codec      tokenizer.Codec
}

func NewTokenWindow(warnTokens int) (*TokenWindow, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "could not load tokenizer")
	}
	return &TokenWindow{WarnTokens: warnTokens, codec: codec}, nil
}

func (w *TokenWindow) Window(ctx context.Context, conv conversation.Conversation) (conversation.Conversation, error) {
	if w.WarnTokens <= 0 {
		return conv, nil
	}
	if n := w.Count(conv); n > w.WarnTokens {
		log.Warn().
			Int("approximate_tokens", n).
			Int("warn_tokens", w.WarnTokens).
			Int("messages", len(conv)).
			Msg("conversation history is getting long")
	}
	return conv, nil
}

// Count returns the approximate number of tokens conv occupies in a model request.
func (w *TokenWindow) Count(conv conversation.Conversation) int {
	total := 0
	for _, m := range conv {
		if m == nil {
			continue
		}
		total += perMessageOverhead + w.countText(m.Text)
		for _, c := range m.ToolCalls {
			total += w.countText(c.Name) + w.countText(string(c.Arguments))
		}
	}
	return total
}

func (w *TokenWindow) countText(s string) int {
	if s == "" {
		return 0
	}
	ids, _, err := w.codec.Encode(s)
	if err != nil {
		// rough fallback, about four characters per token
		return len(s)/4 + 1
	}
	return len(ids)
}
