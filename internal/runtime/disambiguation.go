package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
)

// invokeDisambiguation hands an ambiguous turn to the system disambiguation
// handler. The turn is frozen into a new frame so it can be replayed once
// the user picks. A nil result means the handler did not take the turn and
// routing continues with the static ranking.
func (e *Engine) invokeDisambiguation(ctx context.Context, t *turn, p pass, hyps []*domain.RankedHypothesis, tr *TriggerResults) (*domain.TurnResult, error) {
	triggers := make([]domain.TriggerOutcome, len(tr.Outcomes))
	for i, o := range tr.Outcomes {
		o.SideEffects = nil
		triggers[i] = o
	}
	frozen := &domain.FrozenTurn{
		Hypotheses:    domain.CloneRanked(hyps),
		Client:        p.client,
		InputMethod:   p.inputMethod,
		Text:          p.text,
		EntityContext: copyMap(t.entities),
		RequestData:   p.requestData,
		SideEffects:   tr.SideEffects,
		Triggers:      triggers,
	}

	frame := domain.NewConversationState(nil)
	if err := frozen.Freeze(frame.Session); err != nil {
		return nil, orchestrationError("disambiguate", "", err)
	}

	boosted := tr.Boosted()
	keys := make([]string, 0, len(boosted))
	for _, o := range boosted {
		keys = append(keys, o.Key())
	}
	t.logger.Info("Multiple handlers boosted; starting disambiguation", "candidates", keys)

	saved := *t.commit
	t.stack.Push(frame)
	if e.hooks.OnDisambiguation != nil {
		e.hooks.OnDisambiguation(ctx, &domain.TurnEvent{TraceID: t.traceID, Client: p.client})
	}

	var utterance string
	if len(hyps) > 0 {
		utterance = hyps[0].Hypothesis.Utterance
	}
	sub := pass{
		hyps: domain.NewRankedList(domain.Hypothesis{
			Domain:     e.config.SystemDomain,
			Intent:     domain.IntentDisambiguate,
			Confidence: 1,
			Utterance:  utterance,
			Source:     domain.SourceSynthetic,
		}),
		client:      p.client,
		inputMethod: domain.InputProgrammatic,
		text:        p.text,
		requestData: p.requestData,
		depth:       p.depth + 1,
	}
	res, err := e.process(ctx, t, sub)
	if err != nil {
		return nil, err
	}
	if res.Code == domain.ResultSuccess {
		return res, nil
	}

	t.logger.Warn("Disambiguation handler did not start; falling back to static ranking", "code", res.Code.String())
	t.stack.Remove(frame)
	*t.commit = saved
	return nil, nil
}

// handleDisambiguationCallback replays the frozen turn with the user's pick
// as the only boosted hypothesis. wb is the disambiguation handler's answer.
func (e *Engine) handleDisambiguationCallback(ctx context.Context, t *turn, p pass, act *domain.DialogAction, wb *writeback) (*domain.TurnResult, error) {
	handler := wb.loaded.Identity.String()

	var choice string
	for _, s := range act.Slots {
		if s.Name == domain.SlotDisambiguatedDomainIntent {
			choice = s.Value
		}
	}
	winDomain, winIntent, ok := domain.SplitDomainIntent(choice)
	if !ok {
		return nil, orchestrationError("disambiguation callback", handler,
			fmt.Errorf("selection %q: %w", choice, domain.ErrDisambiguationSelection))
	}

	frozen, err := domain.ThawTurn(wb.state.Session)
	if err != nil {
		return nil, orchestrationError("disambiguation callback", handler, err)
	}

	found := false
	for _, r := range frozen.Hypotheses {
		if r.Priority != domain.PriorityBoosted {
			continue
		}
		if r.Hypothesis.Is(winDomain, winIntent) {
			found = true
			continue
		}
		r.Priority = domain.PriorityNormal
	}
	if !found {
		return nil, orchestrationError("disambiguation callback", handler,
			fmt.Errorf("selection %q was not offered: %w", choice, domain.ErrDisambiguationSelection))
	}
	t.logger.Info("Disambiguation resolved", "selection", choice)

	for n := min(wb.fallback, t.stack.Len()); n > 0; n-- {
		t.stack.Pop()
	}
	for t.stack.Len() > 0 && !t.stack.Peek().LastBehavior.Continues() {
		t.stack.Pop()
	}
	if t.stack.Len() > 0 {
		t.commit.SaveStack(t.stack, !wb.inMultiTurn || p.inputMethod.IsInteractive())
	} else {
		t.commit.ClearState()
	}

	t.entities = copyMap(frozen.EntityContext)
	return e.process(ctx, t, pass{
		hyps:        frozen.Hypotheses,
		client:      frozen.Client,
		inputMethod: frozen.InputMethod,
		text:        frozen.Text,
		requestData: frozen.RequestData,
		arbitrate:   true,
		sideEffects: frozen.SideEffects,
		depth:       p.depth + 1,
	})
}
