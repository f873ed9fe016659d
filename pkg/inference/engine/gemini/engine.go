package gemini

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Engine calls the Gemini API through google.golang.org/genai.
type Engine struct {
	client   *genai.Client
	settings engine.Settings
}

func NewEngine(ctx context.Context, s engine.Settings) (*Engine, error) {
	if s.Model == "" {
		return nil, errors.New("gemini: no model specified")
	}
	cfg := &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &Engine{client: client, settings: s}, nil
}

func (e *Engine) RunInference(ctx context.Context, msgs conversation.Conversation, defs []tools.ToolDefinition) (*conversation.Message, error) {
	system, contents := BuildContents(msgs)
	cfg := MakeConfig(e.settings, system, defs)

	log.Debug().
		Str("model", e.settings.Model).
		Int("contents", len(contents)).
		Int("tools", len(defs)).
		Msg("Gemini RunInference started")

	resp, err := e.client.Models.GenerateContent(ctx, e.settings.Model, contents, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "gemini generate content")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		// a blocked or empty candidate is an empty response, routing decides what to do with it
		log.Warn().Str("model", e.settings.Model).Msg("Gemini returned no content")
		return conversation.NewAssistantMessage(""), nil
	}

	var text strings.Builder
	var calls []conversation.ToolCall
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.Text != "" && !p.Thought {
			text.WriteString(p.Text)
		}
		if p.FunctionCall != nil {
			calls = append(calls, toToolCall(p.FunctionCall))
		}
	}

	log.Debug().
		Str("finish_reason", string(resp.Candidates[0].FinishReason)).
		Int("tool_calls", len(calls)).
		Msg("Gemini RunInference finished")

	return conversation.NewAssistantMessage(text.String(), calls...), nil
}

func toToolCall(fc *genai.FunctionCall) conversation.ToolCall {
	id := fc.ID
	if id == "" {
		// the Gemini API does not always assign call ids
		id = "call_" + uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		b = []byte(`{}`)
	}
	return conversation.ToolCall{ID: id, Name: fc.Name, Arguments: b}
}

// BuildContents splits a conversation into the system instruction and the Gemini
// contents. Consecutive tool results are grouped into a single user content, and
// calls without a result are dropped.
func BuildContents(msgs conversation.Conversation) (string, []*genai.Content) {
	resolved := msgs.ResolvedCallIDs()

	var system []string
	var contents []*genai.Content
	var pendingResponses []*genai.Part
	flush := func() {
		if len(pendingResponses) > 0 {
			contents = append(contents, genai.NewContentFromParts(pendingResponses, genai.RoleUser))
			pendingResponses = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			system = append(system, m.Text)
		case conversation.RoleUser:
			flush()
			contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
		case conversation.RoleAssistant:
			flush()
			var parts []*genai.Part
			if m.HasText() {
				parts = append(parts, genai.NewPartFromText(m.Text))
			}
			for _, c := range engine.AnsweredCalls(m, resolved) {
				var args map[string]any
				if err := json.Unmarshal(c.Arguments, &args); err != nil || args == nil {
					args = map[string]any{}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: args}})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case conversation.RoleTool:
			pendingResponses = append(pendingResponses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.ToolName,
				Response: toolResponse(m),
			}})
		}
	}
	flush()

	return strings.Join(system, "\n\n"), contents
}

func toolResponse(m *conversation.Message) map[string]any {
	if m.IsError {
		return map[string]any{"error": m.Text}
	}
	return map[string]any{"output": m.Text}
}

// MakeConfig builds the generation config: system instruction, sampling settings and
// the function declarations of defs.
func MakeConfig(s engine.Settings, system string, defs []tools.ToolDefinition) *genai.GenerateContentConfig {
	temp := s.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if s.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(s.MaxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(defs) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(defs))
		for _, def := range defs {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 def.Name,
				Description:          def.Description,
				ParametersJsonSchema: engine.ParametersSchema(def),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

var _ engine.Engine = (*Engine)(nil)
