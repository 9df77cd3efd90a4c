package session

import (
	"log/slog"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/registry"
)

// HandlerLookup is the part of the registry reconciliation needs.
type HandlerLookup interface {
	Get(id domain.HandlerIdentity) (*registry.Loaded, bool)
	HighestMinor(handlerID string, major int) (*registry.Loaded, bool)
}

// Reconcile reattaches conversation graphs to a freshly loaded stack.
// A frame whose exact handler version is gone moves to the highest loaded
// minor of the same major; frames with no compatible handler, and expired
// frames, are dropped. Frames with an explicit continuation get no graph.
func Reconcile(stack *domain.ConversationStack, handlers HandlerLookup, now time.Time, logger *slog.Logger) *domain.ConversationStack {
	out := domain.NewConversationStack()
	frames := stack.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if f.HandlerID == "" {
			continue
		}
		if f.IsExpired(now) {
			logger.Info("Dropping expired conversation frame", "handler_id", f.Identity().String())
			continue
		}

		l, ok := handlers.Get(f.Identity())
		if !ok {
			l, ok = handlers.HighestMinor(f.HandlerID, f.HandlerVersion.Major)
			if !ok {
				logger.Warn("Dropping conversation frame for handler that is no longer loaded", "handler_id", f.Identity().String())
				continue
			}
			logger.Warn("Upgrading conversation frame",
				"handler_id", f.HandlerID,
				"from", f.HandlerVersion.String(),
				"to", l.Identity.Version.String(),
			)
			f.HandlerVersion = l.Identity.Version
		}

		if f.ExplicitContinuation == "" {
			f.SetGraph(l.Graph)
		} else {
			f.SetGraph(nil)
		}
		out.Push(f)
	}
	return out
}
