package runtime

import "github.com/aretw0/parley/pkg/domain"

// Arbiter reorders and completes the hypothesis list before routing.
type Arbiter struct {
	cfg Config
}

// NewArbiter creates an arbiter for cfg.
func NewArbiter(cfg Config) Arbiter {
	return Arbiter{cfg: cfg}
}

// Arbitrate returns a new list in dialog order. The input is not modified.
func (a Arbiter) Arbitrate(hyps []*domain.RankedHypothesis, lockedDomain string) []*domain.RankedHypothesis {
	out := domain.CloneRanked(hyps)
	if !a.cfg.IgnoreSideSpeech {
		out = a.AddHighConfSideSpeech(out)
	}
	a.ArbitrateIdenticalConfidences(out, lockedDomain)
	out = a.EnsureSideSpeech(out)
	out = a.EnsureNoReco(out)
	if !a.cfg.IgnoreSideSpeech {
		a.CapSideSpeech(out)
	}
	domain.SortRanked(out, lockedDomain)
	return out
}

func (a Arbiter) isSideSpeech(h domain.Hypothesis) bool {
	return h.Is(a.cfg.CommonDomain, domain.IntentSideSpeech)
}

func (a Arbiter) isNoReco(h domain.Hypothesis) bool {
	return h.Is(a.cfg.CommonDomain, domain.IntentNoReco)
}

// AddHighConfSideSpeech appends a side_speech_highconf copy of a normal
// priority side speech hypothesis whose confidence exceeds the cap.
func (a Arbiter) AddHighConfSideSpeech(hyps []*domain.RankedHypothesis) []*domain.RankedHypothesis {
	var found *domain.RankedHypothesis
	for _, r := range hyps {
		if a.isSideSpeech(r.Hypothesis) {
			found = r
		}
	}
	if found == nil || found.Priority != domain.PriorityNormal || found.Hypothesis.Confidence <= a.cfg.MaxSideSpeechConfidence {
		return hyps
	}
	h := found.Hypothesis.Clone()
	h.Intent = domain.IntentSideSpeechHighConf
	r := domain.NewRanked(h)
	r.Priority = found.Priority
	return append(hyps, r)
}

// ArbitrateIdenticalConfidences moves hypotheses in lockedDomain ahead of
// neighbours with exactly the same classifier confidence.
func (a Arbiter) ArbitrateIdenticalConfidences(hyps []*domain.RankedHypothesis, lockedDomain string) {
	if lockedDomain == "" {
		return
	}
	for swapped := len(hyps) > 1; swapped; {
		swapped = false
		for i := 0; i < len(hyps)-1; i++ {
			l, r := hyps[i], hyps[i+1]
			if l.Hypothesis.Confidence == r.Hypothesis.Confidence &&
				l.Hypothesis.Domain != lockedDomain &&
				r.Hypothesis.Domain == lockedDomain {
				hyps[i], hyps[i+1] = r, l
				swapped = true
			}
		}
	}
}

// EnsureSideSpeech appends a zero-confidence internal side speech
// hypothesis unless one exists or the list is a lone no-reco.
func (a Arbiter) EnsureSideSpeech(hyps []*domain.RankedHypothesis) []*domain.RankedHypothesis {
	if len(hyps) == 0 || (len(hyps) == 1 && a.isNoReco(hyps[0].Hypothesis)) {
		return hyps
	}
	for _, r := range hyps {
		if a.isSideSpeech(r.Hypothesis) {
			return hyps
		}
	}
	r := domain.NewRanked(domain.Hypothesis{
		Domain:    a.cfg.CommonDomain,
		Intent:    domain.IntentSideSpeech,
		Utterance: hyps[0].Hypothesis.Utterance,
		Source:    domain.SourceSynthetic,
	})
	r.Priority = domain.PriorityInternal
	return append(hyps, r)
}

// EnsureNoReco appends an internal no-reco hypothesis unless one exists.
func (a Arbiter) EnsureNoReco(hyps []*domain.RankedHypothesis) []*domain.RankedHypothesis {
	for _, r := range hyps {
		if a.isNoReco(r.Hypothesis) {
			return hyps
		}
	}
	var utterance string
	if len(hyps) > 0 {
		utterance = hyps[0].Hypothesis.Utterance
	}
	r := domain.NewRanked(domain.Hypothesis{
		Domain:     a.cfg.CommonDomain,
		Intent:     domain.IntentNoReco,
		Confidence: 1,
		Utterance:  utterance,
		Source:     domain.SourceSynthetic,
	})
	r.Priority = domain.PriorityInternal
	return append(hyps, r)
}

// CapSideSpeech caps the effective confidence of side speech hypotheses.
func (a Arbiter) CapSideSpeech(hyps []*domain.RankedHypothesis) {
	for _, r := range hyps {
		if a.isSideSpeech(r.Hypothesis) {
			r.CapConfidence(a.cfg.MaxSideSpeechConfidence)
		}
	}
}
