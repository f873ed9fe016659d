package engine

import (
	"context"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
)

// Engine is a language model backend. Given the messages of a conversation and
// the capabilities on offer, it returns one assistant message that carries text,
// capability calls, or both.
//
// Engines must not mutate msgs. A leading system message, when present, is the
// preamble for this call only.
type Engine interface {
	RunInference(ctx context.Context, msgs conversation.Conversation, defs []tools.ToolDefinition) (*conversation.Message, error)
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, msgs conversation.Conversation, defs []tools.ToolDefinition) (*conversation.Message, error)

func (f EngineFunc) RunInference(ctx context.Context, msgs conversation.Conversation, defs []tools.ToolDefinition) (*conversation.Message, error) {
	return f(ctx, msgs, defs)
}

var _ Engine = EngineFunc(nil)
