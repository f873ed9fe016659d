package events

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeTurnStarted EventType = "turn-started"
	// EventTypeInference is emitted after every model response, before routing.
	EventTypeInference EventType = "inference"
	// EventTypeToolCall is emitted for each capability call the model requested.
	EventTypeToolCall                EventType = "tool-call"
	EventTypeToolCallExecute         EventType = "tool-call-execute"
	EventTypeToolCallExecutionResult EventType = "tool-call-execution-result"
	EventTypeFinal                   EventType = "final"
	EventTypeError                   EventType = "error"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// set when the event was decoded with NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventTurnStarted struct {
	EventImpl
	UserText string `json:"user_text"`
	Retry    bool   `json:"retry,omitempty"`
}

func NewTurnStartedEvent(metadata EventMetadata, userText string, retry bool) *EventTurnStarted {
	return &EventTurnStarted{
		EventImpl: EventImpl{Type_: EventTypeTurnStarted, Metadata_: metadata},
		UserText:  userText,
		Retry:     retry,
	}
}

type EventInference struct {
	EventImpl
	Iteration int    `json:"iteration"`
	Text      string `json:"text,omitempty"`
	ToolCalls int    `json:"tool_calls"`
}

func NewInferenceEvent(metadata EventMetadata, iteration int, text string, toolCalls int) *EventInference {
	return &EventInference{
		EventImpl: EventImpl{Type_: EventTypeInference, Metadata_: metadata},
		Iteration: iteration,
		Text:      text,
		ToolCalls: toolCalls,
	}
}

type ToolCall struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Input string `json:"input" yaml:"input"`
}

type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{
		EventImpl: EventImpl{Type_: EventTypeToolCall, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{
		EventImpl: EventImpl{Type_: EventTypeToolCallExecute, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type ToolResult struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Result     string `json:"result" yaml:"result"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

type EventToolCallExecutionResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallExecutionResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolCallExecutionResult {
	return &EventToolCallExecutionResult{
		EventImpl:  EventImpl{Type_: EventTypeToolCallExecutionResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

type EventFinal struct {
	EventImpl
	Text       string `json:"text"`
	Outcome    string `json:"outcome"`
	Iterations int    `json:"iterations"`
}

func NewFinalEvent(metadata EventMetadata, text string, outcome string, iterations int) *EventFinal {
	return &EventFinal{
		EventImpl:  EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:       text,
		Outcome:    outcome,
		Iterations: iterations,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

var (
	_ Event = &EventTurnStarted{}
	_ Event = &EventInference{}
	_ Event = &EventToolCall{}
	_ Event = &EventToolCallExecute{}
	_ Event = &EventToolCallExecutionResult{}
	_ Event = &EventFinal{}
	_ Event = &EventError{}
)

// NewEventFromJson decodes a serialized event into its concrete type.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	var ev Event
	switch hdr.Type {
	case EventTypeTurnStarted:
		ev = &EventTurnStarted{}
	case EventTypeInference:
		ev = &EventInference{}
	case EventTypeToolCall:
		ev = &EventToolCall{}
	case EventTypeToolCallExecute:
		ev = &EventToolCallExecute{}
	case EventTypeToolCallExecutionResult:
		ev = &EventToolCallExecutionResult{}
	case EventTypeFinal:
		ev = &EventFinal{}
	case EventTypeError:
		ev = &EventError{}
	default:
		return nil, fmt.Errorf("unknown event type: %q", hdr.Type)
	}

	if err := json.Unmarshal(b, ev); err != nil {
		return nil, err
	}
	if p, ok := ev.(interface{ setPayload([]byte) }); ok {
		p.setPayload(b)
	}
	return ev, nil
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}
