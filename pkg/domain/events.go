package domain

import (
	"context"
	"time"
)

// TurnEvent describes a whole turn.
type TurnEvent struct {
	TraceID  string
	Client   ClientContext
	Result   *TurnResult
	Err      error
	Duration time.Duration
}

// HandlerEvent describes one handler execution.
type HandlerEvent struct {
	TraceID      string
	Handler      HandlerIdentity
	Domain       string
	Intent       string
	Continuation string
	Retrying     bool
	Code         ResultCode
	Err          error
	Duration     time.Duration
}

// TriggerEvent describes one speculative trigger evaluation.
type TriggerEvent struct {
	TraceID  string
	Handler  HandlerIdentity
	Domain   string
	Intent   string
	Signal   BoostSignal
	Err      error
	Duration time.Duration
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart      func(context.Context, *TurnEvent)
	OnTurnEnd        func(context.Context, *TurnEvent)
	OnHandlerInvoke  func(context.Context, *HandlerEvent)
	OnHandlerResult  func(context.Context, *HandlerEvent)
	OnTrigger        func(context.Context, *TriggerEvent)
	OnDisambiguation func(context.Context, *TurnEvent)
}

// Merge returns hooks that call h first and then o.
func (h LifecycleHooks) Merge(o LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurnStart:      chain(h.OnTurnStart, o.OnTurnStart),
		OnTurnEnd:        chain(h.OnTurnEnd, o.OnTurnEnd),
		OnHandlerInvoke:  chain(h.OnHandlerInvoke, o.OnHandlerInvoke),
		OnHandlerResult:  chain(h.OnHandlerResult, o.OnHandlerResult),
		OnTrigger:        chain(h.OnTrigger, o.OnTrigger),
		OnDisambiguation: chain(h.OnDisambiguation, o.OnDisambiguation),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, ev T) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
