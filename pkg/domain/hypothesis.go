package domain

import (
	"sort"
	"strings"
)

// SlotFormat tags where a slot value came from.
type SlotFormat int

const (
	// SlotText is a slot tagged by the language understanding layer.
	SlotText SlotFormat = iota
	// SlotCrossDomain is a slot carried over during a cross-domain hand-off.
	SlotCrossDomain
	// SlotInvoked is a slot attached to an invoked dialog action.
	SlotInvoked
)

// Slot is a single tagged value attached to a hypothesis.
type Slot struct {
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Format   SlotFormat `json:"format,omitempty"`
	Entities []string   `json:"entities,omitempty"`
}

// Hypothesis is a classified candidate for the user's input.
type Hypothesis struct {
	Domain     string  `json:"domain"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Utterance  string  `json:"utterance,omitempty"`
	Slots      []Slot  `json:"slots,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// Key returns the "domain/intent" pair used to index trigger side effects.
func (h Hypothesis) Key() string {
	return DomainIntent(h.Domain, h.Intent)
}

// Is reports whether the hypothesis matches the given domain and intent.
func (h Hypothesis) Is(domain, intent string) bool {
	return h.Domain == domain && h.Intent == intent
}

// Slot looks up a slot by name.
func (h Hypothesis) Slot(name string) (Slot, bool) {
	for _, s := range h.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// Clone returns a deep copy. Rewriting the domain of a clone never touches
// the classification record it came from.
func (h Hypothesis) Clone() Hypothesis {
	out := h
	if h.Slots != nil {
		out.Slots = make([]Slot, len(h.Slots))
		for i, s := range h.Slots {
			out.Slots[i] = s
			if s.Entities != nil {
				out.Slots[i].Entities = append([]string(nil), s.Entities...)
			}
		}
	}
	return out
}

// DomainIntent joins a domain and intent with a slash.
func DomainIntent(domain, intent string) string {
	return domain + "/" + intent
}

// SplitDomainIntent parses "domain/intent". Both halves must be non-empty.
func SplitDomainIntent(s string) (domain, intent string, ok bool) {
	domain, intent, ok = strings.Cut(s, "/")
	if !ok || domain == "" || intent == "" {
		return "", "", false
	}
	return domain, intent, true
}

// Priority is the dialog priority used for final ordering.
type Priority int

const (
	PriorityInternal   Priority = -2
	PrioritySuppressed Priority = -1
	PriorityNormal     Priority = 0
	PriorityBoosted    Priority = 1
)

func (p Priority) String() string {
	switch p {
	case PriorityInternal:
		return "internal"
	case PrioritySuppressed:
		return "suppressed"
	case PriorityBoosted:
		return "boosted"
	default:
		return "normal"
	}
}

// RankedHypothesis wraps a Hypothesis with its dialog priority.
// Confidence is the effective confidence used for ordering; it may be capped
// below Hypothesis.Confidence, which always keeps the classifier's value.
type RankedHypothesis struct {
	Hypothesis Hypothesis `json:"hypothesis"`
	Priority   Priority   `json:"priority"`
	Confidence float64    `json:"confidence"`
}

// NewRanked creates a ranked hypothesis at normal priority.
func NewRanked(h Hypothesis) *RankedHypothesis {
	return &RankedHypothesis{Hypothesis: h, Priority: PriorityNormal, Confidence: h.Confidence}
}

// NewRankedList wraps each hypothesis at normal priority.
func NewRankedList(hyps ...Hypothesis) []*RankedHypothesis {
	out := make([]*RankedHypothesis, 0, len(hyps))
	for _, h := range hyps {
		out = append(out, NewRanked(h))
	}
	return out
}

// CapConfidence lowers the effective confidence to max.
func (r *RankedHypothesis) CapConfidence(max float64) {
	if r.Confidence > max {
		r.Confidence = max
	}
}

// Clone deep-copies the ranked hypothesis.
func (r *RankedHypothesis) Clone() *RankedHypothesis {
	out := *r
	out.Hypothesis = r.Hypothesis.Clone()
	return &out
}

// CloneRanked deep-copies a ranked list.
func CloneRanked(list []*RankedHypothesis) []*RankedHypothesis {
	out := make([]*RankedHypothesis, len(list))
	for i, r := range list {
		out[i] = r.Clone()
	}
	return out
}

// RankBefore reports whether a sorts before b: priority descending, then
// effective confidence descending, then the hypothesis in lockedDomain first.
func RankBefore(a, b *RankedHypothesis, lockedDomain string) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if lockedDomain == "" {
		return false
	}
	return a.Hypothesis.Domain == lockedDomain && b.Hypothesis.Domain != lockedDomain
}

// SortRanked stable-sorts the list into dialog order.
func SortRanked(list []*RankedHypothesis, lockedDomain string) {
	sort.SliceStable(list, func(i, j int) bool {
		return RankBefore(list[i], list[j], lockedDomain)
	})
}
