package toolloop

import (
	"context"

	"github.com/go-go-golems/tablebot/pkg/conversation"
	"github.com/go-go-golems/tablebot/pkg/events"
	"github.com/go-go-golems/tablebot/pkg/inference/engine"
	"github.com/go-go-golems/tablebot/pkg/inference/tools"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Loop runs turns: it alternates model invocations and capability execution until
// the model answers, calls the completion capability, or a bound is hit.
//
// A Loop holds no conversation state and may be shared by many sessions.
type Loop struct {
	eng          engine.Engine
	registry     *tools.Registry
	loopCfg      LoopConfig
	toolCfg      tools.ToolConfig
	executor     *tools.Executor
	systemPrompt string
	snapshotHook SnapshotHook
}

type Option func(*Loop)

func New(opts ...Option) *Loop {
	l := &Loop{
		loopCfg: DefaultLoopConfig(),
		toolCfg: tools.DefaultToolConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.registry == nil {
		l.registry = tools.NewRegistry()
	}
	if l.executor == nil {
		l.executor = tools.NewExecutor(l.registry, l.toolCfg)
	}
	l.loopCfg = l.loopCfg.withDefaults()
	return l
}

func WithEngine(eng engine.Engine) Option {
	return func(l *Loop) { l.eng = eng }
}

func WithRegistry(reg *tools.Registry) Option {
	return func(l *Loop) { l.registry = reg }
}

func WithLoopConfig(cfg LoopConfig) Option {
	return func(l *Loop) { l.loopCfg = cfg }
}

func WithToolConfig(cfg tools.ToolConfig) Option {
	return func(l *Loop) { l.toolCfg = cfg }
}

// WithExecutor overrides the executor built from the registry and tool config.
func WithExecutor(exec *tools.Executor) Option {
	return func(l *Loop) { l.executor = exec }
}

// WithSystemPrompt sets the preamble sent ahead of the conversation on every model
// call. It is never stored in the conversation.
func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) { l.systemPrompt = prompt }
}

func WithSnapshotHook(h SnapshotHook) Option {
	return func(l *Loop) { l.snapshotHook = h }
}

func (l *Loop) Registry() *tools.Registry {
	return l.registry
}

func (l *Loop) Config() LoopConfig {
	return l.loopCfg
}

func (l *Loop) snapshot(ctx context.Context, conv conversation.Conversation, phase string) {
	if l.snapshotHook != nil {
		l.snapshotHook(ctx, conv, phase)
		return
	}
	if h, ok := SnapshotHookFromContext(ctx); ok {
		h(ctx, conv, phase)
	}
}

// RunTurn runs one turn on conv, which must already end with the user's message.
// It returns the committed conversation and how the turn ended. conv itself is not
// modified.
//
// Steps are committed atomically: an assistant message that asks for capabilities is
// appended together with all of its results, or not at all. When ctx ends during a
// step, that step is discarded and the returned conversation holds only the steps
// that completed before.
func (l *Loop) RunTurn(ctx context.Context, conv conversation.Conversation) (conversation.Conversation, Result) {
	out := append(conversation.Conversation(nil), conv...)
	start := len(out)

	if l == nil || l.eng == nil {
		return out, Result{
			Text:    DefaultUnavailableText,
			Outcome: OutcomeModelUnavailable,
			Err:     errors.Wrap(ErrModelUnavailable, "no engine configured"),
		}
	}

	completionName := ""
	if c, ok := l.registry.Completion(); ok {
		completionName = c.Name
	}
	defs := l.toolCfg.FilterTools(l.registry.List())
	callIDs := usedCallIDs(out)

	var (
		res     Result
		pending *conversation.Message
		calls   []conversation.ToolCall
		state   = StateAwaitingModel
	)

	finish := func(r Result) (conversation.Conversation, Result) {
		r.Iterations = res.Iterations
		r.ToolCalls = res.ToolCalls
		l.snapshot(ctx, out, PhaseDone)
		meta := events.MetadataFromContext(ctx)
		if r.Err != nil {
			events.PublishEventToContext(ctx, events.NewErrorEvent(meta, r.Err))
		}
		events.PublishEventToContext(ctx, events.NewFinalEvent(meta, r.Text, string(r.Outcome), r.Iterations))
		log.Debug().
			Str("outcome", string(r.Outcome)).
			Int("iterations", r.Iterations).
			Int("tool_calls", r.ToolCalls).
			Int("appended", len(out)-start).
			Msg("toolloop: turn finished")
		return out, r
	}

	for {
		switch state {
		case StateAwaitingModel:
			if err := ctx.Err(); err != nil {
				return finish(l.timeoutResult(err))
			}
			if res.Iterations >= l.loopCfg.MaxIterations {
				log.Warn().Int("max_iterations", l.loopCfg.MaxIterations).Msg("toolloop: maximum iterations reached")
				return finish(Result{
					Text:    l.loopCfg.BudgetText,
					Outcome: OutcomeBudgetExceeded,
					Err:     errors.Wrapf(ErrTurnBudgetExceeded, "max iterations (%d) reached", l.loopCfg.MaxIterations),
				})
			}

			res.Iterations++
			log.Debug().Int("iteration", res.Iterations).Msg("toolloop: engine inference step")
			l.snapshot(ctx, out, PhasePreInference)

			msg, err := l.eng.RunInference(ctx, l.prompt(out), defs)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return finish(l.timeoutResult(ctxErr))
				}
				log.Error().Err(err).Int("iteration", res.Iterations).Msg("toolloop: model call failed")
				return finish(Result{
					Text:    l.loopCfg.UnavailableText,
					Outcome: OutcomeModelUnavailable,
					Err:     errors.Wrap(ErrModelUnavailable, err.Error()),
				})
			}
			if msg == nil {
				msg = conversation.NewAssistantMessage("")
			}
			msg.Role = conversation.RoleAssistant
			assignCallIDs(msg, callIDs)
			pending = msg
			l.publishInference(ctx, res.Iterations, msg)
			state = StateRouting

		case StateRouting:
			d := Route(pending, completionName)
			log.Debug().
				Str("next", d.Next.String()).
				Bool("completion", d.Completion).
				Int("calls", len(d.Calls)).
				Msg("toolloop: routed model response")

			switch {
			case d.Next == StateDone:
				out.Append(pending)
				l.snapshot(ctx, out, PhasePostInference)
				state = StateDone
			case d.Empty:
				log.Warn().
					Int("iteration", res.Iterations).
					Str("policy", string(l.loopCfg.EmptyResponse)).
					Msg("toolloop: MalformedRouting, model returned neither text nor calls")
				out.Append(pending)
				l.snapshot(ctx, out, PhasePostInference)
				if l.loopCfg.EmptyResponse == EmptyResponseFail {
					return finish(Result{
						Text:    l.loopCfg.EmptyText,
						Outcome: OutcomeMalformed,
						Err:     ErrMalformedRouting,
					})
				}
				pending = nil
				state = StateAwaitingModel
			default:
				calls = d.Calls
				state = StateExecutingCapabilities
			}

		case StateExecutingCapabilities:
			results, err := l.executor.ExecuteAll(ctx, calls)
			if err != nil {
				return finish(l.timeoutResult(err))
			}
			if err := ctx.Err(); err != nil {
				return finish(l.timeoutResult(err))
			}

			round := make([]*conversation.Message, 0, len(results)+1)
			round = append(round, pending)
			for _, r := range results {
				if r.Failed() {
					round = append(round, conversation.NewToolErrorMessage(r.ID, r.Name, r.Error))
					continue
				}
				round = append(round, conversation.NewToolResultMessage(r.ID, r.Name, r.Content))
			}
			out.Append(round...)
			res.ToolCalls += len(results)
			l.snapshot(ctx, out, PhasePostTools)

			pending, calls = nil, nil
			state = StateAwaitingModel

		case StateDone:
			text, ok := out[start:].LastAssistantText()
			if !ok {
				log.Warn().Msg("toolloop: turn ended without assistant text, using fallback")
				text = l.loopCfg.EmptyText
			}
			return finish(Result{Text: text, Outcome: OutcomeCompleted})
		}
	}
}

// usedCallIDs collects the call IDs already present in conv.
func usedCallIDs(conv conversation.Conversation) map[string]bool {
	ids := map[string]bool{}
	for _, m := range conv {
		if m == nil {
			continue
		}
		for _, c := range m.ToolCalls {
			if c.ID != "" {
				ids[c.ID] = true
			}
		}
	}
	return ids
}

// assignCallIDs gives every call of msg with an empty or already used ID a fresh
// one, so that each result pairs with exactly one call. Some OpenAI compatible
// servers leave call IDs empty.
func assignCallIDs(msg *conversation.Message, used map[string]bool) {
	if len(msg.ToolCalls) == 0 {
		return
	}
	calls := make([]conversation.ToolCall, len(msg.ToolCalls))
	copy(calls, msg.ToolCalls)
	for i := range calls {
		if calls[i].ID == "" || used[calls[i].ID] {
			id := "call_" + uuid.NewString()
			log.Debug().Str("tool", calls[i].Name).Str("old_id", calls[i].ID).Str("id", id).Msg("toolloop: assigned call id")
			calls[i].ID = id
		}
		used[calls[i].ID] = true
	}
	msg.ToolCalls = calls
}

func (l *Loop) prompt(conv conversation.Conversation) conversation.Conversation {
	if l.systemPrompt == "" {
		return conv
	}
	ret := make(conversation.Conversation, 0, len(conv)+1)
	ret = append(ret, conversation.NewSystemMessage(l.systemPrompt))
	return append(ret, conv...)
}

func (l *Loop) timeoutResult(err error) Result {
	log.Warn().Err(err).Msg("toolloop: turn context ended, discarding in-flight step")
	return Result{
		Text:    l.loopCfg.TimeoutText,
		Outcome: OutcomeTimeout,
		Err:     errors.Wrap(ErrTurnTimeout, err.Error()),
	}
}

func (l *Loop) publishInference(ctx context.Context, iteration int, msg *conversation.Message) {
	meta := events.MetadataFromContext(ctx)
	events.PublishEventToContext(ctx, events.NewInferenceEvent(meta, iteration, msg.Text, len(msg.ToolCalls)))
	for _, c := range msg.ToolCalls {
		events.PublishEventToContext(ctx, events.NewToolCallEvent(
			events.MetadataFromContext(ctx),
			events.ToolCall{ID: c.ID, Name: c.Name, Input: string(c.Arguments)},
		))
	}
}
