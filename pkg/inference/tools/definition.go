package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ToolDefinition describes a capability the model may ask to have executed.
// Definitions are immutable once registered.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Function    ToolFunc           `json:"-"`
	// Completion marks the reserved turn-termination signal. It is never executed.
	Completion bool `json:"-"`
}

// ToolFunc executes a capability with raw JSON arguments and returns its textual result.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// ToolResult is the outcome of executing one call.
type ToolResult struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Content  string        `json:"content"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r ToolResult) Failed() bool {
	return r.Error != ""
}

type ToolErrorType string

const (
	ToolErrorNotFound   ToolErrorType = "not_found"
	ToolErrorValidation ToolErrorType = "validation"
	ToolErrorExecution  ToolErrorType = "execution"
	ToolErrorTimeout    ToolErrorType = "timeout"
	ToolErrorCompletion ToolErrorType = "completion"
)

// ToolError is a capability level failure. It is always converted to a textual
// result and never aborts a turn.
type ToolError struct {
	ToolName string        `json:"tool_name"`
	ToolID   string        `json:"tool_id,omitempty"`
	Type     ToolErrorType `json:"type"`
	Message  string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s]: %s", e.Type, e.Message)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc creates a ToolDefinition from a Go function. Supported shapes:
//
//	func() (R, error)
//	func(context.Context) (R, error)
//	func(In) (R, error)
//	func(context.Context, In) (R, error)
//
// The trailing error is optional. String results are passed through, anything else
// is JSON encoded. The parameter schema is reflected from In.
func NewToolFromFunc(name, description string, fn interface{}) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}
	if funcType.NumOut() == 0 || funcType.NumOut() > 2 {
		return nil, errors.New("function must return (result) or (result, error)")
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be an error")
	}

	withCtx, inType, err := inspectParams(funcType)
	if err != nil {
		return nil, err
	}

	schema := &jsonschema.Schema{Type: "object"}
	if inType != nil {
		reflector := jsonschema.Reflector{
			DoNotReference:            true,
			AllowAdditionalProperties: true,
		}
		schema = reflector.Reflect(reflect.New(inType).Elem().Interface())
		if schema.Type == "" && schema.Ref == "" {
			schema.Type = "object"
		}
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Function:    makeExecutor(reflect.ValueOf(fn), withCtx, inType),
	}, nil
}

// NewCompletionTool builds the reserved signal the model calls when it has finished
// gathering information.
func NewCompletionTool(name, description string) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  &jsonschema.Schema{Type: "object"},
		Function: func(context.Context, json.RawMessage) (string, error) {
			return "", &ToolError{ToolName: name, Type: ToolErrorCompletion, Message: "completion signal is not executable"}
		},
		Completion: true,
	}
}

func inspectParams(funcType reflect.Type) (bool, reflect.Type, error) {
	switch funcType.NumIn() {
	case 0:
		return false, nil, nil
	case 1:
		if funcType.In(0) == contextType {
			return true, nil, nil
		}
		return false, funcType.In(0), nil
	case 2:
		if funcType.In(0) != contextType {
			return false, nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		return true, funcType.In(1), nil
	default:
		return false, nil, errors.Errorf("unsupported tool function signature: numIn=%d", funcType.NumIn())
	}
}

func makeExecutor(fnValue reflect.Value, withCtx bool, inType reflect.Type) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		var in []reflect.Value
		if withCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inType != nil {
			input := reflect.New(inType)
			if len(args) > 0 && string(args) != "null" {
				if err := json.Unmarshal(args, input.Interface()); err != nil {
					return "", errors.Wrap(err, "failed to unmarshal arguments")
				}
			}
			in = append(in, input.Elem())
		}

		log.Trace().Str("func_type", fnValue.Type().String()).Int("args_len", len(args)).Msg("tools: invoking function")
		return extractResults(fnValue.Call(in))
	}
}

func extractResults(results []reflect.Value) (string, error) {
	var err error
	if len(results) == 2 {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			err = e
		}
	}
	if err != nil {
		return "", err
	}
	return resultToText(results[0].Interface())
}

func resultToText(v interface{}) (string, error) {
	switch r := v.(type) {
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case json.RawMessage:
		return string(r), nil
	case nil:
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v), nil
	}
	return string(b), nil
}
