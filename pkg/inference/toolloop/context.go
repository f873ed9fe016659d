package toolloop

import (
	"context"

	"github.com/go-go-golems/tablebot/pkg/conversation"
)

const (
	PhasePreInference  = "pre_inference"
	PhasePostInference = "post_inference"
	PhasePostTools     = "post_tools"
	PhaseDone          = "done"
)

// SnapshotHook observes the committed conversation at defined phases of a turn.
// Hooks must not retain or mutate conv.
type SnapshotHook func(ctx context.Context, conv conversation.Conversation, phase string)

type snapshotHookKey struct{}

// WithSnapshotHookContext attaches a snapshot hook to the context. A hook set on the
// loop with WithSnapshotHook takes precedence.
func WithSnapshotHookContext(ctx context.Context, hook SnapshotHook) context.Context {
	if hook == nil {
		return ctx
	}
	return context.WithValue(ctx, snapshotHookKey{}, hook)
}

func SnapshotHookFromContext(ctx context.Context) (SnapshotHook, bool) {
	h, ok := ctx.Value(snapshotHookKey{}).(SnapshotHook)
	return h, ok && h != nil
}
