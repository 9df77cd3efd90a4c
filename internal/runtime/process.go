package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/registry"
)

// flags describe one hypothesis against one conversation frame.
type flags struct {
	inMultiTurn        bool
	tentative          bool
	ignoringSideSpeech bool
	sideSpeech         bool
	belowConfidence    bool
	common             bool
	// divert routes meaningful side speech to the side speech domain.
	divert bool
}

func (f flags) logAttrs() []any {
	return []any{
		"multi_turn", f.inMultiTurn,
		"tentative", f.tentative,
		"side_speech", f.sideSpeech,
		"below_confidence", f.belowConfidence,
		"common", f.common,
		"divert", f.divert,
	}
}

func (e *Engine) flagsFor(h domain.Hypothesis, frame *domain.ConversationState) flags {
	f := flags{
		inMultiTurn:        frame.InMultiTurn(),
		tentative:          frame.LastBehavior.IsTentative(),
		ignoringSideSpeech: e.config.IgnoreSideSpeech,
		common:             h.Domain == e.config.CommonDomain,
	}
	f.sideSpeech = f.common && (h.Intent == domain.IntentSideSpeech || h.Intent == domain.IntentSideSpeechHighConf)
	f.belowConfidence = h.Confidence < e.config.MinHandlerConfidence && !(f.sideSpeech && !f.ignoringSideSpeech)
	return f
}

func (e *Engine) isNoReco(h domain.Hypothesis) bool {
	return h.Is(e.config.CommonDomain, domain.IntentNoReco)
}

// skipCandidate is a Skip that still carried something to say. The first
// one found answers the turn when nothing succeeds.
type skipCandidate struct {
	result *domain.TurnResult
	wb     *writeback
}

// frameOutcome is the result of routing one hypothesis against one frame.
type frameOutcome struct {
	result *domain.TurnResult
	skip   *skipCandidate
	// stop abandons the remaining frames for this hypothesis.
	stop bool
}

// process is one routing pass: triggers, arbitration, then every hypothesis
// in dialog order against every reachable frame until a handler answers.
func (e *Engine) process(ctx context.Context, t *turn, p pass) (*domain.TurnResult, error) {
	if p.depth > e.config.MaxRecursionDepth {
		return nil, orchestrationError("process", "", fmt.Errorf("depth %d: %w", p.depth, domain.ErrRecursionLimit))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("process turn: %w", err)
	}

	if t.stack.Len() == 0 {
		t.stack.Push(domain.NewConversationState(nil))
	}
	top := t.stack.Peek()
	originalBehavior := top.LastBehavior

	hyps := domain.CloneRanked(p.hyps)
	sideEffects := p.sideEffects

	if p.useTriggers {
		tr, err := e.runTriggers(ctx, t, p, hyps)
		if err != nil {
			return nil, err
		}
		sideEffects = tr.SideEffects
		if tr.RequiresDisambiguation {
			res, err := e.invokeDisambiguation(ctx, t, p, hyps, tr)
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
		}
	}

	if p.arbitrate {
		hyps = NewArbiter(e.config).Arbitrate(hyps, top.Domain)
	} else {
		domain.SortRanked(hyps, top.Domain)
	}

	var best *skipCandidate
	for _, r := range hyps {
		h := r.Hypothesis
		t.logger.Debug("Routing hypothesis",
			"domain", h.Domain,
			"intent", h.Intent,
			"confidence", h.Confidence,
			"priority", r.Priority.String(),
		)

		frames := t.stack.Frames()
		for i, frame := range frames {
			if i > 0 && holdsConversation(frames[i-1]) {
				break
			}
			out, err := e.routeFrame(ctx, t, p, h, frame, i+1, sideEffects)
			if err != nil {
				return nil, err
			}
			if out.result != nil {
				return out.result, nil
			}
			if out.skip != nil && best == nil {
				best = out.skip
			}
			if out.stop {
				break
			}
		}
	}

	if best != nil {
		t.logger.Debug("No handler succeeded; answering with the best skip", "handler_id", best.result.Handler.String())
		res := best.result
		res.Code = domain.ResultSuccess
		res.NextTurn = e.applyStackWriteback(t, p, best.wb)
		return res, nil
	}

	t.logger.Info("No handler accepted the turn")
	return &domain.TurnResult{Code: domain.ResultSkip, NextTurn: originalBehavior}, nil
}

// holdsConversation reports whether frames below f are unreachable.
func holdsConversation(f *domain.ConversationState) bool {
	return f.LastBehavior.Continues() && f.LastBehavior.IsNonTentative()
}

// routeFrame tries to answer src from frame. fallback is the 1-based
// position of frame from the top of the stack.
func (e *Engine) routeFrame(ctx context.Context, t *turn, p pass, src domain.Hypothesis, frame *domain.ConversationState, fallback int, sideEffects map[string]*domain.DataStore) (frameOutcome, error) {
	h := src.Clone()
	f := e.flagsFor(h, frame)
	log := t.logger.With("domain", h.Domain, "intent", h.Intent, "fallback", fallback)

	if !f.inMultiTurn && f.sideSpeech && f.ignoringSideSpeech {
		log.Debug("Ignored as side speech")
		return frameOutcome{stop: true}, nil
	}
	if f.belowConfidence && (!f.inMultiTurn || f.tentative) {
		log.Debug("Hypothesis below confidence threshold", "confidence", h.Confidence)
		return frameOutcome{}, nil
	}
	if f.common && !f.inMultiTurn && !(f.sideSpeech && !f.ignoringSideSpeech) {
		log.Debug("Skipping common intent on first turn")
		return frameOutcome{}, nil
	}

	target := h.Domain
	if f.sideSpeech && (!f.inMultiTurn || f.tentative || frame.Domain == e.config.SideSpeechDomain) {
		target = e.config.SideSpeechDomain
		f.divert = true
	} else if frame.Domain != "" && (!f.tentative || f.common) && target != frame.Domain {
		log.Debug("Diverting to the conversation domain", "conversation_domain", frame.Domain)
		target = frame.Domain
	}

	var ceiling *domain.Version
	if !frame.HandlerVersion.IsZero() && target == frame.Domain {
		v := frame.HandlerVersion
		ceiling = &v
	}
	loaded, ok := e.registry.Resolve(target, ceiling)
	if !ok {
		log.Warn("No handler registered for domain", "target_domain", target)
		return frameOutcome{}, nil
	}

	state := frame
	if state.Graph() == nil && state.TurnNum == 0 {
		state.SetGraph(loaded.Graph)
	}

	var (
		edge          domain.Edge
		hasEdge       bool
		useEmptyState bool
	)
	graph := state.Graph()
	if graph != nil {
		treeDomain := h.Domain
		if treeDomain == e.config.CommonDomain && f.divert {
			treeDomain = e.config.SideSpeechDomain
		}
		var err error
		edge, hasEdge, err = graph.Transition(state.CurrentNode, treeDomain, h.Intent)
		if err != nil {
			log.Warn("Stored conversation position no longer fits the graph", "err", err)
			useEmptyState = true
		}
	}

	external := hasEdge && edge.Scope.IsExternal()
	retry := e.isNoReco(h) && state.CurrentNode != "" && graph != nil && graph.RetryHandler(state.CurrentNode) != ""

	if graph != nil && !hasEdge && !retry {
		if f.inMultiTurn && !f.tentative {
			log.Debug("Locked in a multi-turn conversation; not restarting", "conversation_domain", state.Domain)
			return frameOutcome{}, nil
		}
		useEmptyState = true
		if loaded.Graph != nil {
			startDomain := h.Domain
			if f.divert {
				startDomain = e.config.SideSpeechDomain
			}
			if !loaded.Graph.HasStartNode(startDomain, h.Intent) {
				log.Debug("No start edge for hypothesis", "handler_id", loaded.Identity.String())
				return frameOutcome{}, nil
			}
		}
	}

	if external && target == state.Domain {
		hand, err := e.crossDomain(ctx, t, p, &h, state, edge, loaded)
		if err != nil {
			return frameOutcome{}, err
		}
		if hand == nil {
			return frameOutcome{}, nil
		}
		loaded, state = hand.loaded, hand.state
		useEmptyState = false
	}

	useEmpty := p.newConversation || useEmptyState
	exec := state
	if useEmpty {
		exec = domain.NewConversationState(loaded.Graph)
	}
	log.Debug("Dispatching", append(f.logAttrs(), "handler_id", loaded.Identity.String(), "empty_state", useEmpty)...)

	inv := e.callHandler(ctx, t, p, call{
		loaded:      loaded,
		hyp:         h,
		state:       exec,
		sideEffects: sideEffects[domain.DomainIntent(loaded.Domain, h.Intent)],
	})

	wb := &writeback{
		loaded:      loaded,
		state:       exec,
		hyp:         h,
		result:      inv.result,
		fallback:    fallback,
		divert:      f.divert,
		retrying:    inv.retrying,
		inMultiTurn: f.inMultiTurn,
	}

	switch inv.result.Code {
	case domain.ResultSuccess:
		exec.Session = inv.session
		res, err := e.succeed(ctx, t, p, wb, inv)
		if err != nil {
			return frameOutcome{}, err
		}
		return frameOutcome{result: res}, nil

	case domain.ResultFailure:
		t.commit.ClearState()
		msg := inv.result.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("unspecified handler error in %s", h.Key())
		}
		log.Warn("Handler reported a failure", "handler_id", loaded.Identity.String(), "error_message", msg)
		return frameOutcome{result: &domain.TurnResult{
			Code:         domain.ResultFailure,
			NextTurn:     domain.BehaviorNone,
			Selected:     &h,
			Response:     inv.result.Response,
			Handler:      loaded.Identity,
			ErrorMessage: msg,
			WasRetrying:  inv.retrying,
		}}, nil
	}

	log.Debug("Handler declined", "handler_id", loaded.Identity.String())
	var out frameOutcome
	if inv.result.ErrorMessage != "" || inv.result.Response.HasContent() {
		out.skip = &skipCandidate{
			wb: wb,
			result: &domain.TurnResult{
				Selected:     &h,
				Response:     inv.result.Response,
				Handler:      loaded.Identity,
				ErrorMessage: inv.result.ErrorMessage,
				WasRetrying:  inv.retrying,
			},
		}
	}
	if !f.tentative {
		state.SetGraph(nil)
	}
	return out, nil
}

// succeed stages everything a successful handler produced and follows any
// invoked action.
func (e *Engine) succeed(ctx context.Context, t *turn, p pass, wb *writeback, inv *invocation) (*domain.TurnResult, error) {
	id := wb.loaded.Identity
	if err := e.checkSizes(wb.loaded, wb.state, inv.services.Profiles); err != nil {
		return nil, err
	}

	t.commit.AddProfiles(id.ID, inv.services.Profiles)

	grace := wb.result.NextTurn.Timeout() + e.config.CachedActionGrace
	for _, it := range inv.services.DialogActions.Items() {
		if it.ExpireTime.IsZero() {
			it.ExpireTime = t.now.Add(grace)
		}
		t.commit.DialogActions = append(t.commit.DialogActions, it)
	}
	t.commit.WebData = append(t.commit.WebData, inv.services.WebData.Items()...)

	act := wb.result.InvokedAction
	if act != nil && act.Domain == e.config.SystemDomain && act.Intent == domain.IntentDisambiguationCallback {
		return e.handleDisambiguationCallback(ctx, t, p, act, wb)
	}

	behavior := e.applyStackWriteback(t, p, wb)

	if act == nil {
		t.logger.Debug("Handler succeeded", "handler_id", id.String(), "next_turn", behavior.Mode.String())
		return &domain.TurnResult{
			Code:        domain.ResultSuccess,
			NextTurn:    behavior,
			Selected:    &wb.hyp,
			Response:    wb.result.Response,
			Handler:     id,
			WasRetrying: wb.retrying,
		}, nil
	}

	if act.Domain == "" || act.Intent == "" {
		return nil, orchestrationError("invoke action", id.String(),
			fmt.Errorf("target %q: %w", domain.DomainIntent(act.Domain, act.Intent), domain.ErrInvalidInvokedAction))
	}
	t.logger.Info("Handler invoked a dialog action", "handler_id", id.String(), "target", domain.DomainIntent(act.Domain, act.Intent))

	sub := p
	sub.hyps = invokedHypotheses(wb.loaded.Domain, act, wb.hyp.Utterance)
	sub.newConversation = false
	sub.useTriggers = false
	sub.arbitrate = false
	sub.sideEffects = nil
	sub.depth = p.depth + 1

	res, err := e.process(ctx, t, sub)
	if err != nil {
		return nil, err
	}
	if res.Code == domain.ResultSkip {
		return nil, orchestrationError("invoke action", id.String(),
			fmt.Errorf("target %q did not respond: %w", domain.DomainIntent(act.Domain, act.Intent), domain.ErrInvalidInvokedAction))
	}
	return res, nil
}

func (e *Engine) checkSizes(loaded *registry.Loaded, state *domain.ConversationState, profiles domain.UserProfiles) error {
	if loaded.Domain == e.config.SystemDomain || e.config.MaxStoreSizeBytes <= 0 {
		return nil
	}
	max := e.config.MaxStoreSizeBytes
	check := func(name string, s *domain.DataStore) error {
		if s == nil || !s.Touched() {
			return nil
		}
		if n := s.SizeInBytes(); n > max {
			return orchestrationError("size ceiling", loaded.Identity.String(),
				fmt.Errorf("%s holds %d bytes, limit is %d: %w", name, n, max, domain.ErrStoreTooLarge))
		}
		return nil
	}
	if err := check("session store", state.Session); err != nil {
		return err
	}
	if err := check("local profile", profiles.Local); err != nil {
		return err
	}
	if err := check("global profile", profiles.Global); err != nil {
		return err
	}
	return check("entity history", profiles.EntityHistory)
}

// invokedHypotheses turns an invoked dialog action into the single
// hypothesis of a nested pass. Slots are namespaced by the origin domain.
func invokedHypotheses(originDomain string, act *domain.DialogAction, utterance string) []*domain.RankedHypothesis {
	h := domain.Hypothesis{
		Domain:     act.Domain,
		Intent:     act.Intent,
		Confidence: 1,
		Utterance:  utterance,
		Source:     domain.SourceInvokedAction,
	}
	for _, s := range act.Slots {
		s.Name = originDomain + "." + s.Name
		s.Format = domain.SlotInvoked
		if s.Entities != nil {
			s.Entities = append([]string(nil), s.Entities...)
		}
		h.Slots = append(h.Slots, s)
	}
	return domain.NewRankedList(h)
}

func logFrame(log *slog.Logger, msg string, s *domain.ConversationState) {
	log.Debug(msg,
		"handler_id", s.Identity().String(),
		"conversation_domain", s.Domain,
		"current_node", s.CurrentNode,
		"turn_num", s.TurnNum,
		"retry_num", s.RetryNum,
	)
}
