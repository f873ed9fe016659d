package openai

import (
	"context"
	"net/http"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// Engine talks to OpenAI compatible chat completion endpoints.
type Engine struct {
	client   *go_openai.Client
	settings engine.Settings
}

func NewEngine(s engine.Settings) (*Engine, error) {
	if s.Model == "" {
		return nil, errors.New("openai: no model specified")
	}
	config := go_openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		config.BaseURL = s.BaseURL
	}
	if s.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: s.Timeout}
	}
	return &Engine{
		client:   go_openai.NewClientWithConfig(config),
		settings: s,
	}, nil
}

func (e *Engine) RunInference(ctx context.Context, msgs conversation.Conversation, defs []tools.ToolDefinition) (*conversation.Message, error) {
	req := MakeCompletionRequest(e.settings, msgs, defs)

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("OpenAI RunInference started")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	calls := make([]conversation.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: conversation.ArgumentsFromString(tc.Function.Arguments),
		})
	}

	log.Debug().
		Str("finish_reason", string(choice.FinishReason)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Int("tool_calls", len(calls)).
		Msg("OpenAI RunInference finished")

	return conversation.NewAssistantMessage(choice.Message.Content, calls...), nil
}

// MakeCompletionRequest converts a conversation into a chat completion request.
// Assistant calls without a tool result are dropped.
func MakeCompletionRequest(s engine.Settings, msgs conversation.Conversation, defs []tools.ToolDefinition) go_openai.ChatCompletionRequest {
	resolved := msgs.ResolvedCallIDs()

	messages := make([]go_openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			messages = append(messages, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: m.Text})
		case conversation.RoleUser:
			messages = append(messages, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: m.Text})
		case conversation.RoleAssistant:
			calls := engine.AnsweredCalls(m, resolved)
			if !m.HasText() && len(calls) == 0 {
				continue
			}
			msg := go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: m.Text}
			for _, c := range calls {
				msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
					ID:   c.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      c.Name,
						Arguments: string(c.Arguments),
					},
				})
			}
			messages = append(messages, msg)
		case conversation.RoleTool:
			messages = append(messages, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    m.Text,
				ToolCallID: m.ToolCallID,
			})
		}
	}

	req := go_openai.ChatCompletionRequest{
		Model:       s.Model,
		Messages:    messages,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
	for _, def := range defs {
		req.Tools = append(req.Tools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  engine.ParametersSchema(def),
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}
	return req
}

var _ engine.Engine = (*Engine)(nil)
