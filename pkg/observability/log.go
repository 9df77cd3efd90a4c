package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
)

// LogHooks writes an audit trail of handler executions and turn outcomes.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnHandlerResult: func(ctx context.Context, ev *domain.HandlerEvent) {
			logger.DebugContext(ctx, "Handler executed",
				"trace_id", ev.TraceID,
				"handler_id", ev.Handler.String(),
				"domain", ev.Domain,
				"intent", ev.Intent,
				"continuation", ev.Continuation,
				"retrying", ev.Retrying,
				"code", ev.Code.String(),
				"duration", ev.Duration,
			)
		},
		OnDisambiguation: func(ctx context.Context, ev *domain.TurnEvent) {
			logger.InfoContext(ctx, "Asking user to disambiguate", "trace_id", ev.TraceID)
		},
		OnTurnEnd: func(ctx context.Context, ev *domain.TurnEvent) {
			if ev.Err != nil {
				logger.ErrorContext(ctx, "Turn failed", "trace_id", ev.TraceID, "duration", ev.Duration, "err", ev.Err)
				return
			}
			attrs := []any{"trace_id", ev.TraceID, "duration", ev.Duration}
			if ev.Result != nil {
				attrs = append(attrs, "code", ev.Result.Code.String(), "handler_id", ev.Result.Handler.String(), "next_turn", ev.Result.NextTurn.Mode.String())
			}
			logger.InfoContext(ctx, "Turn completed", attrs...)
		},
	}
}
