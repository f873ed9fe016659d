package toolloop

import "github.com/pkg/errors"

var (
	// ErrModelUnavailable wraps any failure of the model call.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrTurnBudgetExceeded is returned when the model keeps asking for capabilities
	// past LoopConfig.MaxIterations.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")
	// ErrMalformedRouting is returned for an empty model response under EmptyResponseFail.
	ErrMalformedRouting = errors.New("malformed routing: empty model response")
	// ErrTurnTimeout is returned when the turn context ends before the turn does.
	ErrTurnTimeout = errors.New("turn timed out")
)

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeModelUnavailable Outcome = "model_unavailable"
	OutcomeBudgetExceeded   Outcome = "budget_exceeded"
	OutcomeMalformed        Outcome = "malformed"
	OutcomeTimeout          Outcome = "timeout"
)

// Result describes how a turn ended. Text is always set: the model's answer on
// success, the configured fallback otherwise.
type Result struct {
	Text       string
	Outcome    Outcome
	Iterations int
	// ToolCalls counts the capability calls executed during the turn.
	ToolCalls int
	Err       error
}

func (r Result) OK() bool {
	return r.Err == nil
}
