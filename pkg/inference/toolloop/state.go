package toolloop

import "github.com/go-go-golems/tablebot/pkg/conversation"

// State is a phase of the turn state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateRouting
	StateExecutingCapabilities
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AwaitingModel"
	case StateRouting:
		return "Routing"
	case StateExecutingCapabilities:
		return "ExecutingCapabilities"
	case StateDone:
		return "Done"
	}
	return "Unknown"
}

// Decision is the outcome of routing one model response.
type Decision struct {
	Next State
	// Calls are the capability calls to execute when Next is StateExecutingCapabilities.
	Calls []conversation.ToolCall
	// Completion is set when the model called the completion capability.
	Completion bool
	// Empty is set when the response carried neither text nor calls.
	Empty bool
}

// Route decides what follows a model response. A call to the completion capability
// ends the turn and wins over any other call in the same response. Other calls are
// executed. Text without calls ends the turn. A response with neither is empty: the
// returned decision goes back to the model with nothing to execute.
func Route(msg *conversation.Message, completionName string) Decision {
	if msg == nil {
		return Decision{Next: StateAwaitingModel, Empty: true}
	}
	if completionName != "" {
		for _, c := range msg.ToolCalls {
			if c.Name == completionName {
				return Decision{Next: StateDone, Completion: true}
			}
		}
	}
	if len(msg.ToolCalls) > 0 {
		return Decision{Next: StateExecutingCapabilities, Calls: msg.ToolCalls}
	}
	if msg.HasText() {
		return Decision{Next: StateDone}
	}
	return Decision{Next: StateAwaitingModel, Empty: true}
}
