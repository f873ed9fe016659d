package engine

import (
	"encoding/json"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
)

// ParametersSchema returns the parameter schema of def as a plain JSON object, the
// shape provider SDKs expect. The draft marker and schema id are dropped and object
// schemas always carry a properties map.
func ParametersSchema(def tools.ToolDefinition) map[string]interface{} {
	ret := map[string]interface{}{}
	if def.Parameters != nil {
		b, err := json.Marshal(def.Parameters)
		if err == nil {
			_ = json.Unmarshal(b, &ret)
		}
	}
	delete(ret, "$schema")
	delete(ret, "$id")
	if _, ok := ret["type"]; !ok {
		ret["type"] = "object"
	}
	if ret["type"] == "object" {
		if _, ok := ret["properties"]; !ok {
			ret["properties"] = map[string]interface{}{}
		}
	}
	return ret
}

// AnsweredCalls returns the calls of m that have a tool result in msgs. Calls that
// were never answered (the completion signal) must not be sent back to providers,
// which reject dangling calls.
func AnsweredCalls(m *conversation.Message, resolved map[string]bool) []conversation.ToolCall {
	if m == nil || len(m.ToolCalls) == 0 {
		return nil
	}
	ret := make([]conversation.ToolCall, 0, len(m.ToolCalls))
	for _, c := range m.ToolCalls {
		if resolved[c.ID] {
			ret = append(ret, c)
		}
	}
	return ret
}
