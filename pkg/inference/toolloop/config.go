package toolloop

import "github.com/pkg/errors"

// EmptyResponsePolicy decides what happens when the model answers with neither text
// nor capability calls.
type EmptyResponsePolicy string

const (
	// EmptyResponseContinue logs the malformed response and asks the model again.
	// The retry counts against MaxIterations.
	EmptyResponseContinue EmptyResponsePolicy = "continue"
	// EmptyResponseFail ends the turn with ErrMalformedRouting.
	EmptyResponseFail EmptyResponsePolicy = "fail"
)

const (
	DefaultEmptyText       = "I apologize, but I couldn't generate a proper response. Please try again."
	DefaultBudgetText      = "I'm sorry, I couldn't complete that request. Please try rephrasing it."
	DefaultUnavailableText = "I'm sorry, I can't reach the assistant right now. Please try again in a moment."
	DefaultTimeoutText     = "I'm sorry, that took too long to answer. Please try again."
)

// LoopConfig bounds a turn and holds the texts returned when it cannot end normally.
type LoopConfig struct {
	// MaxIterations is the maximum number of model invocations per turn.
	MaxIterations int                 `mapstructure:"max-iterations" yaml:"max-iterations"`
	EmptyResponse EmptyResponsePolicy `mapstructure:"empty-response" yaml:"empty-response"`

	EmptyText       string `mapstructure:"empty-text" yaml:"empty-text"`
	BudgetText      string `mapstructure:"budget-text" yaml:"budget-text"`
	UnavailableText string `mapstructure:"unavailable-text" yaml:"unavailable-text"`
	TimeoutText     string `mapstructure:"timeout-text" yaml:"timeout-text"`
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations:   8,
		EmptyResponse:   EmptyResponseContinue,
		EmptyText:       DefaultEmptyText,
		BudgetText:      DefaultBudgetText,
		UnavailableText: DefaultUnavailableText,
		TimeoutText:     DefaultTimeoutText,
	}
}

func (c LoopConfig) WithMaxIterations(n int) LoopConfig {
	c.MaxIterations = n
	return c
}

func (c LoopConfig) WithEmptyResponse(p EmptyResponsePolicy) LoopConfig {
	c.EmptyResponse = p
	return c
}

// withDefaults fills zero values from DefaultLoopConfig.
func (c LoopConfig) withDefaults() LoopConfig {
	d := DefaultLoopConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.EmptyResponse == "" {
		c.EmptyResponse = d.EmptyResponse
	}
	if c.EmptyText == "" {
		c.EmptyText = d.EmptyText
	}
	if c.BudgetText == "" {
		c.BudgetText = d.BudgetText
	}
	if c.UnavailableText == "" {
		c.UnavailableText = d.UnavailableText
	}
	if c.TimeoutText == "" {
		c.TimeoutText = d.TimeoutText
	}
	return c
}

func (c LoopConfig) Validate() error {
	switch c.EmptyResponse {
	case "", EmptyResponseContinue, EmptyResponseFail:
	default:
		return errors.Errorf("unknown empty response policy %q", c.EmptyResponse)
	}
	if c.MaxIterations < 0 {
		return errors.New("max iterations must not be negative")
	}
	return nil
}
