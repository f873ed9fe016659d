package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventMetadata correlates an event with the session and turn that produced it.
type EventMetadata struct {
	ID        uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty" mapstructure:"session_id"`
	TurnID    string    `json:"turn_id,omitempty" yaml:"turn_id,omitempty" mapstructure:"turn_id"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	// Extra carries engine specific values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if len(em.Extra) > 0 {
		e.Interface("extra", em.Extra)
	}
}

type metadataKey struct{}

// WithMetadata stores the correlation fields events created downstream should carry.
func WithMetadata(ctx context.Context, meta EventMetadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, meta)
}

// MetadataFromContext returns the stored correlation fields with a fresh event ID.
func MetadataFromContext(ctx context.Context) EventMetadata {
	meta, _ := ctx.Value(metadataKey{}).(EventMetadata)
	meta.ID = uuid.New()
	return meta
}
