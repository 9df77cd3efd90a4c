package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
)

// handoff is where a cross-domain transition lands.
type handoff struct {
	loaded *registry.Loaded
	state  *domain.ConversationState
}

// crossDomain follows an external edge out of origin's conversation. The
// origin handler fills the slots the target asks for, the origin frame moves
// to its callback node (or leaves the stack), and a fresh frame for the
// target is pushed. h is rewritten to the target domain and intent.
// A nil handoff without error means the target domain is not loaded.
func (e *Engine) crossDomain(ctx context.Context, t *turn, p pass, h *domain.Hypothesis, origin *domain.ConversationState, edge domain.Edge, originHandler *registry.Loaded) (*handoff, error) {
	newDomain, newIntent := edge.ExternalDomain, edge.ExternalIntent
	originID := originHandler.Identity.String()
	log := t.logger.With("handler_id", originID, "target", domain.DomainIntent(newDomain, newIntent))
	log.Info("Cross-domain transition")

	target, ok := e.registry.Resolve(newDomain, nil)
	if !ok {
		log.Error("Cross-domain target is not loaded")
		return nil, nil
	}

	req, err := target.Handler.CrossDomainRequest(ctx, newIntent)
	if err != nil {
		return nil, orchestrationError("cross-domain request", target.Identity.String(),
			fmt.Errorf("%s: %w: %w", domain.DomainIntent(newDomain, newIntent), domain.ErrCrossDomainRejected, err))
	}
	if req == nil {
		return nil, orchestrationError("cross-domain request", target.Identity.String(),
			fmt.Errorf("%s: %w", domain.DomainIntent(newDomain, newIntent), domain.ErrCrossDomainRejected))
	}

	cdc := ports.CrossDomainContext{
		RequestDomain:  newDomain,
		RequestIntent:  newIntent,
		RequestedSlots: append([]string(nil), req.RequestedSlots...),
		PastTurns:      append(append([]domain.Hypothesis(nil), origin.History...), h.Clone()),
	}
	svc := &ports.Services{
		TraceID:       t.traceID,
		Logger:        t.logger.With("handler_id", originID, "phase", "cross_domain"),
		Session:       origin.Session.Clone(),
		Profiles:      e.profilesFor(ctx, p.client, originHandler),
		Entities:      copyMap(t.entities),
		DialogActions: domain.NewItemBuffer(),
		WebData:       domain.NewItemBuffer(),
	}
	resp, err := originHandler.Handler.CrossDomainResponse(ctx, cdc, svc)
	if err != nil {
		return nil, orchestrationError("cross-domain response", originID,
			fmt.Errorf("%s: %w: %w", domain.DomainIntent(newDomain, newIntent), domain.ErrCrossDomainRejected, err))
	}
	if resp == nil {
		return nil, orchestrationError("cross-domain response", originID,
			fmt.Errorf("%s: %w", domain.DomainIntent(newDomain, newIntent), domain.ErrCrossDomainRejected))
	}

	if target.Graph != nil && !target.Graph.HasStartNode(newDomain, newIntent) {
		return nil, orchestrationError("cross-domain transition", target.Identity.String(),
			fmt.Errorf("%s cannot open a conversation: %w", domain.DomainIntent(newDomain, newIntent), domain.ErrCrossDomainRejected))
	}

	origin.TransitionToNode(domain.Transit{
		Hypothesis: h.Clone(),
		Behavior:   resp.CallbackBehavior,
		MaxHistory: e.config.MaxConversationHistory,
		Now:        t.now,
	}, "")
	if origin.CurrentNode == "" || !resp.CallbackBehavior.Continues() {
		log.Debug("Origin does not take a callback; removing its frame")
		t.stack.Remove(origin)
	}

	state := domain.NewConversationState(target.Graph)
	t.stack.Push(state)

	h.Domain = newDomain
	h.Intent = newIntent
	for _, s := range resp.FilledSlots {
		s.Format = domain.SlotCrossDomain
		h.Slots = upsertSlot(h.Slots, s)
	}
	for k, v := range resp.Entities {
		t.entities[k] = v
	}

	return &handoff{loaded: target, state: state}, nil
}

// upsertSlot replaces the slot named s.Name or appends s.
func upsertSlot(slots []domain.Slot, s domain.Slot) []domain.Slot {
	for i := range slots {
		if slots[i].Name == s.Name {
			slots[i] = s
			return slots
		}
	}
	return append(slots, s)
}
