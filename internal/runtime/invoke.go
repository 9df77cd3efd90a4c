package runtime

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
)

type call struct {
	loaded      *registry.Loaded
	hyp         domain.Hypothesis
	state       *domain.ConversationState
	sideEffects *domain.DataStore
}

// invocation is what one handler execution produced. Nothing in it has been
// applied to the conversation yet.
type invocation struct {
	result   *domain.HandlerResult
	retrying bool
	// session is the working copy of the frame's session store.
	session  *domain.DataStore
	services *ports.Services
}

// profilesFor loads the profiles loaded sees. When an editor allow-list is
// configured, the global profile is read-only to everyone else.
func (e *Engine) profilesFor(ctx context.Context, client domain.ClientContext, loaded *registry.Loaded) domain.UserProfiles {
	p := e.sessions.Profiles(ctx, client.UserID, loaded.Identity.ID)
	if e.config.AllowedGlobalProfileEditors != nil {
		p.Global.SetReadOnly(!slices.Contains(e.config.AllowedGlobalProfileEditors, loaded.Identity.ID))
	}
	return p
}

// callHandler picks the entry point for c and runs the handler. Handler
// errors and panics come back as a plain Skip.
func (e *Engine) callHandler(ctx context.Context, t *turn, p pass, c call) *invocation {
	id := c.loaded.Identity
	h := c.hyp
	state := c.state

	session := state.Session.Clone()
	if c.sideEffects != nil {
		if merged := session.MergeMissing(c.sideEffects); len(merged) > 0 {
			t.logger.Debug("Merged trigger side effects into session", "handler_id", id.String(), "keys", merged)
		}
	}

	svc := &ports.Services{
		TraceID:       t.traceID,
		Logger:        t.logger.With("handler_id", id.String()),
		Session:       session,
		Profiles:      e.profilesFor(ctx, p.client, c.loaded),
		Entities:      copyMap(t.entities),
		DialogActions: domain.NewItemBuffer(),
		WebData:       domain.NewItemBuffer(),
	}
	input := ports.Input{
		Hypothesis:  h.Clone(),
		TurnNum:     state.TurnNum,
		PastTurns:   append([]domain.Hypothesis(nil), state.History...),
		Client:      p.client,
		InputMethod: p.inputMethod,
		Text:        p.text,
		RequestData: p.requestData,
	}
	inv := &invocation{session: session, services: svc}

	graph := state.Graph()
	noReco := e.isNoReco(h)
	inv.retrying = noReco && graph != nil && state.RetryContinuation() != ""
	canConsumeNoReco := graph != nil && graph.TransitionExists(state.CurrentNode, e.config.CommonDomain, domain.IntentNoReco)

	if (!noReco || canConsumeNoReco) && !inv.retrying {
		effectiveDomain := h.Domain
		if c.loaded.Domain == e.config.SideSpeechDomain &&
			(h.Intent == domain.IntentSideSpeech || h.Intent == domain.IntentSideSpeechHighConf) {
			effectiveDomain = e.config.SideSpeechDomain
		}
		input.Continuation = state.NextContinuation(effectiveDomain, h.Intent)
		inv.result = e.execute(ctx, t, c.loaded, input, svc, false)
		return inv
	}

	input.Continuation = state.RetryContinuation()
	if input.Continuation == "" {
		inv.result = &domain.HandlerResult{Code: domain.ResultSkip}
		return inv
	}
	input.RetryCount = state.RetryNum + 1
	t.logger.Debug("Using retry entry point", "handler_id", id.String(), "continuation", input.Continuation, "retry_count", input.RetryCount)

	res := e.execute(ctx, t, c.loaded, input, svc, true)
	switch res.Code {
	case domain.ResultFailure:
		res.NextTurn = domain.BehaviorNone
	case domain.ResultSkip:
		// A declined retry ends the conversation quietly.
		res.Code = domain.ResultSuccess
		res.NextTurn = domain.BehaviorNone
	}
	inv.result = res
	return inv
}

// execute runs one handler call with lifecycle hooks around it. It never
// returns nil.
func (e *Engine) execute(ctx context.Context, t *turn, loaded *registry.Loaded, input ports.Input, svc *ports.Services, retrying bool) *domain.HandlerResult {
	id := loaded.Identity
	ev := &domain.HandlerEvent{
		TraceID:      t.traceID,
		Handler:      id,
		Domain:       input.Hypothesis.Domain,
		Intent:       input.Hypothesis.Intent,
		Continuation: input.Continuation,
		Retrying:     retrying,
	}
	if e.hooks.OnHandlerInvoke != nil {
		e.hooks.OnHandlerInvoke(ctx, ev)
	}
	t.logger.Info("Invoking handler",
		"handler_id", id.String(),
		"handler_domain", loaded.Domain,
		"intent", input.Hypothesis.Intent,
		"continuation", input.Continuation,
	)

	start := time.Now()
	res, err := safeExecute(ctx, loaded.Handler, input, svc)
	if err == nil && res == nil {
		err = fmt.Errorf("handler %s returned no result", id)
	}
	if err != nil {
		t.logger.Error("Handler execution failed", "handler_id", id.String(), "err", err)
		res = &domain.HandlerResult{Code: domain.ResultSkip}
	} else if res.ErrorMessage != "" {
		t.logger.Warn("Handler returned an error message", "handler_id", id.String(), "error_message", res.ErrorMessage)
	}

	ev.Code = res.Code
	ev.Err = err
	ev.Duration = time.Since(start)
	if e.hooks.OnHandlerResult != nil {
		e.hooks.OnHandlerResult(ctx, ev)
	}
	t.logger.Debug("Handler finished", "handler_id", id.String(), "code", res.Code.String(), "duration", ev.Duration)
	return res
}

func safeExecute(ctx context.Context, h ports.Handler, input ports.Input, svc *ports.Services) (res *domain.HandlerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Execute(ctx, input, svc)
}
