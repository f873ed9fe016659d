package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	// RoleTool carries the result of a single capability invocation.
	RoleTool Role = "tool"
)

// ToolCall is a capability invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ArgumentsFromString turns the raw argument text a model produced into valid JSON.
// Empty input becomes an empty object; text that is not JSON is kept as a JSON string
// so that argument validation reports it back to the model.
func ArgumentsFromString(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

func (tc ToolCall) String() string {
	return fmt.Sprintf("ToolCall{ID: %s, Name: %s, Arguments: %s}", tc.ID, tc.Name, tc.Arguments)
}

// Message is one entry of a conversation. Which fields are meaningful depends on Role:
// assistant messages may carry ToolCalls, tool messages carry ToolCallID.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

func newMessage(role Role, text string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func NewSystemMessage(text string) *Message {
	return newMessage(RoleSystem, text)
}

func NewUserMessage(text string) *Message {
	return newMessage(RoleUser, text)
}

func NewAssistantMessage(text string, calls ...ToolCall) *Message {
	m := newMessage(RoleAssistant, text)
	if len(calls) > 0 {
		m.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return m
}

// NewToolResultMessage wraps the textual output of a capability call.
func NewToolResultMessage(callID, toolName, result string) *Message {
	m := newMessage(RoleTool, result)
	m.ToolCallID = callID
	m.ToolName = toolName
	return m
}

// NewToolErrorMessage wraps a capability failure. The model sees it as regular tool output.
func NewToolErrorMessage(callID, toolName, errText string) *Message {
	m := NewToolResultMessage(callID, toolName, "Error: "+errText)
	m.IsError = true
	return m
}

// HasText reports whether the message carries non-whitespace text.
func (m *Message) HasText() bool {
	return m != nil && strings.TrimSpace(m.Text) != ""
}

func (m *Message) HasToolCalls() bool {
	return m != nil && len(m.ToolCalls) > 0
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	switch m.Role {
	case RoleTool:
		return fmt.Sprintf("[tool %s/%s]: %s", m.ToolName, m.ToolCallID, m.Text)
	case RoleAssistant:
		if len(m.ToolCalls) > 0 {
			names := make([]string, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				names = append(names, c.Name)
			}
			return fmt.Sprintf("[assistant]: %s (calls: %s)", m.Text, strings.Join(names, ", "))
		}
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Text, "\n"))
}
