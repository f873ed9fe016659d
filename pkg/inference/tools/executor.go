package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"
)

// Executor runs the capability calls of one routing decision.
type Executor struct {
	registry *Registry
	config   ToolConfig

	schemaMu sync.Mutex
	schemas  map[string]*gojsonschema.Schema
}

func NewExecutor(registry *Registry, config ToolConfig) *Executor {
	return &Executor{
		registry: registry,
		config:   config,
		schemas:  map[string]*gojsonschema.Schema{},
	}
}

// ExecuteAll executes calls concurrently (bounded by MaxParallelTools) and returns
// one result per call, in call order. Capability failures are reported in
// ToolResult.Error and never returned as an error. The only error is the context's,
// in which case the results of the in-flight batch are abandoned.
func (e *Executor) ExecuteAll(ctx context.Context, calls []conversation.ToolCall) ([]ToolResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	results := make([]ToolResult, len(calls))
	var g errgroup.Group
	if e.config.MaxParallelTools > 0 {
		g.SetLimit(e.config.MaxParallelTools)
	} else {
		g.SetLimit(1)
	}
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.Execute(ctx, call)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return results, nil
	case <-ctx.Done():
		log.Warn().Int("calls", len(calls)).Msg("tools: context done while executing, abandoning batch")
		return nil, ctx.Err()
	}
}

// Execute runs a single call. It never panics and never returns an error: failures
// become error results.
func (e *Executor) Execute(ctx context.Context, call conversation.ToolCall) (result ToolResult) {
	start := time.Now()
	result = ToolResult{ID: call.ID, Name: call.Name}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("tool", call.Name).Msg("tools: capability panicked")
			result.Content = ""
			result.Error = fmt.Sprintf("capability %s failed: %v", call.Name, r)
		}
		result.Duration = time.Since(start)
		e.publishResult(ctx, call, result)
	}()

	e.publishStart(ctx, call)

	def, ok := e.registry.Lookup(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("unknown capability %q", call.Name)
		log.Warn().Str("tool", call.Name).Str("call_id", call.ID).Msg("tools: model requested unknown capability")
		return result
	}
	if def.Completion {
		result.Error = fmt.Sprintf("%s is a completion signal and cannot be executed", call.Name)
		return result
	}
	if !e.config.IsToolAllowed(call.Name) {
		result.Error = fmt.Sprintf("capability not allowed: %s", call.Name)
		return result
	}

	args := normalizeArguments(call.Arguments)
	if e.config.ValidateArguments {
		if err := e.validate(def, args); err != nil {
			result.Error = err.Error()
			return result
		}
	}

	execCtx := ctx
	if e.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.config.ExecutionTimeout)
		defer cancel()
	}

	out, err := def.Function(execCtx, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Error = (&ToolError{ToolName: call.Name, ToolID: call.ID, Type: ToolErrorTimeout, Message: "capability timed out"}).Error()
		} else {
			result.Error = err.Error()
		}
		log.Debug().Err(err).Str("tool", call.Name).Msg("tools: capability returned error")
		return result
	}
	result.Content = out
	return result
}

func normalizeArguments(args json.RawMessage) json.RawMessage {
	if len(strings.TrimSpace(string(args))) == 0 || string(args) == "null" {
		return json.RawMessage(`{}`)
	}
	return args
}

func (e *Executor) validate(def ToolDefinition, args json.RawMessage) error {
	if def.Parameters == nil {
		return nil
	}
	schema, err := e.compiledSchema(def)
	if err != nil {
		// an uncompilable schema is a programming error, do not block the call on it
		log.Warn().Err(err).Str("tool", def.Name).Msg("tools: could not compile parameter schema")
		return nil
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ToolError{ToolName: def.Name, Type: ToolErrorValidation, Message: "arguments are not valid JSON: " + err.Error()}
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		msgs = append(msgs, re.String())
	}
	return &ToolError{ToolName: def.Name, Type: ToolErrorValidation, Message: "invalid arguments: " + strings.Join(msgs, "; ")}
}

func (e *Executor) compiledSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()
	if s, ok := e.schemas[def.Name]; ok {
		return s, nil
	}

	// the reflected schema advertises draft 2020-12, which the validator does not know;
	// the keywords we emit are draft-7 compatible.
	stripped := *def.Parameters
	stripped.Version = ""
	stripped.ID = ""
	raw, err := json.Marshal(&stripped)
	if err != nil {
		return nil, errors.Wrap(err, "marshal schema")
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "compile schema")
	}
	e.schemas[def.Name] = s
	return s, nil
}

func (e *Executor) publishStart(ctx context.Context, call conversation.ToolCall) {
	events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(
		events.MetadataFromContext(ctx),
		events.ToolCall{ID: call.ID, Name: call.Name, Input: string(call.Arguments)},
	))
}

func (e *Executor) publishResult(ctx context.Context, call conversation.ToolCall, res ToolResult) {
	events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(
		events.MetadataFromContext(ctx),
		events.ToolResult{ID: call.ID, Name: call.Name, Result: res.Content, Error: res.Error, DurationMs: res.Duration.Milliseconds()},
	))
}
