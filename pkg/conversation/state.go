package conversation

import (
	clone "github.com/huandu/go-clone"
	"github.com/pkg/errors"
)

// Conversation is the ordered, append-only message history of a session.
// Insertion order is the prompt order given to the model.
type Conversation []*Message

// Append adds messages to the end of the conversation. Nil messages are skipped.
func (c *Conversation) Append(msgs ...*Message) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		*c = append(*c, m)
	}
}

func (c Conversation) Len() int {
	return len(c)
}

// Clone returns a deep copy; mutating the copy never leaks into the original.
func (c Conversation) Clone() Conversation {
	if len(c) == 0 {
		return Conversation{}
	}
	return clone.Clone(c).(Conversation)
}

// Last returns the last message, or nil on an empty conversation.
func (c Conversation) Last() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// LastAssistant returns the most recent assistant message.
func (c Conversation) LastAssistant() *Message {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] != nil && c[i].Role == RoleAssistant {
			return c[i]
		}
	}
	return nil
}

// LastAssistantText scans backward for the last assistant message with non-empty text.
func (c Conversation) LastAssistantText() (string, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		m := c[i]
		if m != nil && m.Role == RoleAssistant && m.HasText() {
			return m.Text, true
		}
	}
	return "", false
}

// PendingToolCalls returns the calls of the last assistant message that have no
// tool result following them.
func (c Conversation) PendingToolCalls() []ToolCall {
	idx := -1
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] != nil && c[i].Role == RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 || len(c[idx].ToolCalls) == 0 {
		return nil
	}
	resolved := map[string]bool{}
	for _, m := range c[idx+1:] {
		if m.Role == RoleTool {
			resolved[m.ToolCallID] = true
		}
	}
	var pending []ToolCall
	for _, call := range c[idx].ToolCalls {
		if !resolved[call.ID] {
			pending = append(pending, call)
		}
	}
	return pending
}

// ResolvedCallIDs returns the set of tool call IDs that have a matching tool message.
func (c Conversation) ResolvedCallIDs() map[string]bool {
	ids := map[string]bool{}
	for _, m := range c {
		if m != nil && m.Role == RoleTool && m.ToolCallID != "" {
			ids[m.ToolCallID] = true
		}
	}
	return ids
}

// Validate checks the tool pairing invariant: every tool message answers exactly one
// call of the closest preceding assistant message, in call order, and no call is
// answered twice.
func (c Conversation) Validate() error {
	var (
		open     []ToolCall
		answered = map[string]bool{}
	)
	for i, m := range c {
		if m == nil {
			return errors.Errorf("message %d is nil", i)
		}
		switch m.Role {
		case RoleAssistant:
			open = m.ToolCalls
			for _, call := range m.ToolCalls {
				if call.ID == "" {
					return errors.Errorf("message %d: tool call %q missing id", i, call.Name)
				}
			}
		case RoleTool:
			if m.ToolCallID == "" {
				return errors.Errorf("message %d: tool result missing call id", i)
			}
			if answered[m.ToolCallID] {
				return errors.Errorf("message %d: tool call %q answered twice", i, m.ToolCallID)
			}
			if len(open) == 0 {
				return errors.Errorf("message %d: tool result for unknown call %q", i, m.ToolCallID)
			}
			found := false
			for j, call := range open {
				if call.ID == m.ToolCallID {
					// results follow call order, so earlier calls can no longer be answered
					open = open[j+1:]
					found = true
					break
				}
			}
			if !found {
				return errors.Errorf("message %d: tool result %q out of order or not requested", i, m.ToolCallID)
			}
			answered[m.ToolCallID] = true
		case RoleUser, RoleSystem:
			open = nil
		default:
			return errors.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	return nil
}
