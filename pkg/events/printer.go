package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a handler that writes the capability activity of a
// turn to w. Model text is left to the caller, which renders the final reply.
func StepPrinterFunc(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("events: could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventToolCall:
			v_, err := yaml.Marshal(p_.ToolCall)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "-> tool call\n%s", v_)
			return err

		case *EventToolCallExecutionResult:
			v_, err := yaml.Marshal(p_.ToolResult)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "<- tool result\n%s", v_)
			return err

		case *EventError:
			_, err = fmt.Fprintf(w, "[error] %s\n", p_.ErrorString)
			return err

		case *EventTurnStarted, *EventInference, *EventToolCallExecute, *EventFinal:
		}

		return nil
	}
}

// LogHandler returns a handler that logs every event at debug level.
func LogHandler() func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("events: could not decode event")
			return nil
		}
		l := log.Debug().Str("event_type", string(e.Type())).Object("meta", e.Metadata())
		switch p_ := e.(type) {
		case *EventToolCall:
			l = l.Str("tool", p_.ToolCall.Name).Str("call_id", p_.ToolCall.ID)
		case *EventToolCallExecutionResult:
			l = l.Str("tool", p_.ToolResult.Name).Int64("duration_ms", p_.ToolResult.DurationMs).Bool("failed", p_.ToolResult.Error != "")
		case *EventFinal:
			l = l.Str("outcome", p_.Outcome).Int("iterations", p_.Iterations)
		case *EventError:
			l = l.Str("error", p_.ErrorString)
		}
		l.Msg("turn event")
		return nil
	}
}
