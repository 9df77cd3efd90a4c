package runtime

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
)

// TriggerResults is what the speculative trigger round produced.
type TriggerResults struct {
	Outcomes []domain.TriggerOutcome
	// SideEffects holds the non-empty scratch stores, keyed by "domain/intent".
	SideEffects map[string]*domain.DataStore
	// RequiresDisambiguation is set when two or more handlers boosted.
	RequiresDisambiguation bool
}

// Boosted returns the outcomes that bid for the turn.
func (r *TriggerResults) Boosted() []domain.TriggerOutcome {
	var out []domain.TriggerOutcome
	for _, o := range r.Outcomes {
		if o.Signal == domain.BoostUp {
			out = append(out, o)
		}
	}
	return out
}

type triggerJob struct {
	ranked *domain.RankedHypothesis
	loaded *registry.Loaded
}

// runTriggers evaluates every eligible handler concurrently and applies the
// boost and suppress signals to hyps in place.
func (e *Engine) runTriggers(ctx context.Context, t *turn, p pass, hyps []*domain.RankedHypothesis) (*TriggerResults, error) {
	var jobs []triggerJob
	seen := make(map[string]bool)
	for _, r := range hyps {
		h := r.Hypothesis
		if e.isReservedDomain(h.Domain) || seen[h.Key()] {
			continue
		}
		seen[h.Key()] = true
		loaded, ok := e.registry.Resolve(h.Domain, nil)
		if !ok {
			continue
		}
		r.Priority = domain.PriorityNormal
		jobs = append(jobs, triggerJob{ranked: r, loaded: loaded})
	}

	res := &TriggerResults{SideEffects: make(map[string]*domain.DataStore)}
	if len(jobs) == 0 {
		return res, nil
	}

	outcomes := make([]domain.TriggerOutcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if e.config.TriggerConcurrency > 0 {
		g.SetLimit(e.config.TriggerConcurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = e.evaluateTrigger(gctx, t, p, job)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("trigger round: %w", err)
	}

	boosts := 0
	for i, o := range outcomes {
		switch o.Signal {
		case domain.BoostSuppress:
			jobs[i].ranked.Priority = domain.PrioritySuppressed
		case domain.BoostUp:
			jobs[i].ranked.Priority = domain.PriorityBoosted
			boosts++
		}
		if o.SideEffects.Len() > 0 {
			res.SideEffects[o.Key()] = o.SideEffects
		}
	}
	res.Outcomes = outcomes
	res.RequiresDisambiguation = boosts >= 2
	t.logger.Debug("Trigger round finished", "candidates", len(jobs), "boosted", boosts)
	return res, nil
}

func (e *Engine) evaluateTrigger(ctx context.Context, t *turn, p pass, job triggerJob) domain.TriggerOutcome {
	h := job.ranked.Hypothesis
	id := job.loaded.Identity
	out := domain.TriggerOutcome{
		Handler:     id,
		Domain:      h.Domain,
		Intent:      h.Intent,
		SideEffects: domain.NewDataStore(),
	}

	profiles := e.profilesFor(ctx, p.client, job.loaded)
	profiles.Local.SetReadOnly(true)
	profiles.Global.SetReadOnly(true)
	profiles.EntityHistory.SetReadOnly(true)

	svc := &ports.Services{
		TraceID:       t.traceID,
		Logger:        t.logger.With("handler_id", id.String(), "phase", "trigger"),
		Session:       out.SideEffects,
		Profiles:      profiles,
		Entities:      copyMap(t.entities),
		DialogActions: domain.NewItemBuffer(),
		WebData:       domain.NewItemBuffer(),
	}
	input := ports.Input{
		Hypothesis:  h.Clone(),
		Client:      p.client,
		InputMethod: p.inputMethod,
		Text:        p.text,
		RequestData: p.requestData,
	}

	start := time.Now()
	sig, err := safeTrigger(ctx, job.loaded.Handler, input, svc)
	if err != nil {
		t.logger.Warn("Trigger failed; treating as no signal", "handler_id", id.String(), "err", err)
		sig = domain.BoostNoChange
	}
	out.Signal = sig

	if e.hooks.OnTrigger != nil {
		e.hooks.OnTrigger(ctx, &domain.TriggerEvent{
			TraceID:  t.traceID,
			Handler:  id,
			Domain:   h.Domain,
			Intent:   h.Intent,
			Signal:   sig,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return out
}

func safeTrigger(ctx context.Context, h ports.Handler, input ports.Input, svc *ports.Services) (sig domain.BoostSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger panic: %v", r)
		}
	}()
	return h.Trigger(ctx, input, svc)
}

func (e *Engine) isReservedDomain(d string) bool {
	return d == e.config.CommonDomain || d == e.config.SideSpeechDomain || d == e.config.SystemDomain
}
