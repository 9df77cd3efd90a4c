package runtime

import (
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/registry"
)

// writeback is everything needed to fold one handler result into the stack.
type writeback struct {
	loaded *registry.Loaded
	// state is the frame the handler executed in.
	state  *domain.ConversationState
	hyp    domain.Hypothesis
	result *domain.HandlerResult
	// fallback is how many frames, counted from the top, the answer
	// replaces.
	fallback    int
	divert      bool
	retrying    bool
	inMultiTurn bool
}

// applyStackWriteback updates the stack after a handler answered and stages
// the save or clear in the turn's commit. It returns the behavior the turn
// reports: the handler's own, or that of the frame it fell back from.
func (e *Engine) applyStackWriteback(t *turn, p pass, wb *writeback) domain.MultiTurnBehavior {
	for n := min(wb.fallback, t.stack.Len()); n > 0; n-- {
		t.stack.Pop()
	}

	behavior := wb.result.NextTurn
	if behavior.Continues() {
		s := wb.state
		s.HandlerID = wb.loaded.Identity.ID
		s.HandlerVersion = wb.loaded.Identity.Version
		if s.Domain == "" {
			s.Domain = wb.loaded.Domain
		}

		h := wb.hyp.Clone()
		if h.Domain == e.config.CommonDomain && wb.divert {
			h.Domain = e.config.SideSpeechDomain
		}
		tr := domain.Transit{
			Hypothesis: h,
			Behavior:   behavior,
			Handler:    wb.loaded.Identity,
			MaxHistory: e.config.MaxConversationHistory,
			Now:        t.now,
			NoReco:     wb.retrying,
		}
		if wb.result.ContinuationName != "" {
			s.TransitionToContinuation(tr, wb.result.ContinuationName)
		} else {
			s.TransitionToNode(tr, wb.result.ResultNode)
		}
		t.stack.Push(s)
	} else if t.stack.Len() > 0 {
		behavior = t.stack.Peek().LastBehavior
	}

	for t.stack.Len() > 0 && !t.stack.Peek().LastBehavior.Continues() {
		t.stack.Pop()
	}

	if t.stack.Len() == 0 {
		t.commit.ClearState()
		t.logger.Debug("Conversation finished; clearing state")
		return behavior
	}
	logFrame(t.logger, "Final conversation state", t.stack.Peek())
	t.commit.SaveStack(t.stack, !wb.inMultiTurn || p.inputMethod.IsInteractive())
	return behavior
}
