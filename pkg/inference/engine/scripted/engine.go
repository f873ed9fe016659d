// Package scripted provides an engine that replays canned model responses. It backs
// the mock provider and the orchestration tests.
package scripted

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Call is a scripted capability call. Arguments are written as YAML and sent as JSON.
type Call struct {
	ID        string                 `yaml:"id"`
	Name      string                 `yaml:"name"`
	Arguments map[string]interface{} `yaml:"arguments"`
}

// Step is one scripted model response.
type Step struct {
	Text  string        `yaml:"text"`
	Calls []Call        `yaml:"calls"`
	Error string        `yaml:"error"`
	Delay time.Duration `yaml:"delay"`
}

type Script struct {
	Steps []Step `yaml:"steps"`
	// Loop restarts the script once it is exhausted instead of failing.
	Loop bool `yaml:"loop"`
}

var ErrScriptExhausted = errors.New("scripted engine: no more steps")

// Request records what the engine was asked.
type Request struct {
	Messages conversation.Conversation
	Tools    []tools.ToolDefinition
}

// Engine replays a Script. It is safe for concurrent use; steps are consumed in
// call order.
type Engine struct {
	mu       sync.Mutex
	script   Script
	next     int
	requests []Request
}

func NewEngine(script Script) *Engine {
	return &Engine{script: script}
}

func NewEngineFromSteps(steps ...Step) *Engine {
	return NewEngine(Script{Steps: steps})
}

// LoadScript reads a YAML fixture.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, errors.Wrapf(err, "reading script %s", path)
	}
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, errors.Wrapf(err, "parsing script %s", path)
	}
	if len(s.Steps) == 0 {
		return Script{}, errors.Errorf("script %s has no steps", path)
	}
	return s, nil
}

func (e *Engine) RunInference(ctx context.Context, msgs conversation.Conversation, defs []tools.ToolDefinition) (*conversation.Message, error) {
	e.mu.Lock()
	e.requests = append(e.requests, Request{Messages: msgs.Clone(), Tools: append([]tools.ToolDefinition(nil), defs...)})
	if e.next >= len(e.script.Steps) {
		if !e.script.Loop || len(e.script.Steps) == 0 {
			e.mu.Unlock()
			return nil, ErrScriptExhausted
		}
		e.next = 0
	}
	step := e.script.Steps[e.next]
	e.next++
	e.mu.Unlock()

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Error != "" {
		return nil, errors.New(step.Error)
	}

	calls := make([]conversation.ToolCall, 0, len(step.Calls))
	for _, c := range step.Calls {
		id := c.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := json.RawMessage(`{}`)
		if len(c.Arguments) > 0 {
			b, err := json.Marshal(c.Arguments)
			if err != nil {
				return nil, errors.Wrapf(err, "scripted call %s", c.Name)
			}
			args = b
		}
		calls = append(calls, conversation.ToolCall{ID: id, Name: c.Name, Arguments: args})
	}
	return conversation.NewAssistantMessage(step.Text, calls...), nil
}

// Requests returns the inputs of every inference so far.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}

// Calls returns how many inferences were requested.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

var _ engine.Engine = (*Engine)(nil)
