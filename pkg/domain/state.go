package domain

import "time"

// ConversationState is one frame of the conversation stack: where a single
// handler stands in its conversation.
type ConversationState struct {
	HandlerID      string  `json:"handler_id,omitempty"`
	HandlerVersion Version `json:"handler_version"`
	Domain         string  `json:"domain,omitempty"`

	// CurrentNode is the position in the handler's graph. Empty before the
	// first transition.
	CurrentNode string `json:"current_node,omitempty"`

	// ExplicitContinuation, when set, replaces graph navigation for this frame.
	ExplicitContinuation string `json:"explicit_continuation,omitempty"`

	TurnNum  int `json:"turn_num"`
	RetryNum int `json:"retry_num"`

	Session      *DataStore        `json:"session"`
	LastBehavior MultiTurnBehavior `json:"last_behavior"`
	ExpireTime   time.Time         `json:"expire_time,omitempty"`
	History      []Hypothesis      `json:"history,omitempty"`

	graph *ConversationGraph
}

// NewConversationState creates a turn-zero frame navigating graph.
func NewConversationState(graph *ConversationGraph) *ConversationState {
	return &ConversationState{Session: NewDataStore(), graph: graph}
}

// Graph returns the attached conversation graph, if any.
func (s *ConversationState) Graph() *ConversationGraph { return s.graph }

// SetGraph attaches or detaches (nil) the conversation graph.
func (s *ConversationState) SetGraph(g *ConversationGraph) { s.graph = g }

// Identity returns the handler identity recorded in the frame.
func (s *ConversationState) Identity() HandlerIdentity {
	return HandlerIdentity{ID: s.HandlerID, Version: s.HandlerVersion}
}

// InMultiTurn reports whether a previous turn already ran in this frame.
func (s *ConversationState) InMultiTurn() bool {
	return s.TurnNum > 0
}

// NextContinuation returns the entry point for domain/intent. Without a
// graph the explicit continuation applies.
func (s *ConversationState) NextContinuation(domain, intent string) string {
	if s.graph == nil {
		return s.ExplicitContinuation
	}
	return s.graph.NextContinuation(s.CurrentNode, domain, intent)
}

// RetryContinuation returns the retry entry point of the current node.
func (s *ConversationState) RetryContinuation() string {
	if s.graph == nil || s.CurrentNode == "" {
		return ""
	}
	return s.graph.RetryHandler(s.CurrentNode)
}

// IsExpired reports whether the conversation timed out.
func (s *ConversationState) IsExpired(now time.Time) bool {
	return !s.ExpireTime.IsZero() && now.After(s.ExpireTime)
}

// Transit describes the turn that just completed in this frame.
type Transit struct {
	Hypothesis Hypothesis
	Behavior   MultiTurnBehavior
	// Handler fills identity fields left empty; zero leaves them alone.
	Handler    HandlerIdentity
	MaxHistory int
	Now        time.Time
	// NoReco marks a retry turn.
	NoReco bool
}

func (s *ConversationState) transitCommon(t Transit) {
	s.TurnNum++
	s.History = append(s.History, t.Hypothesis.Clone())
	if t.MaxHistory > 0 && len(s.History) > t.MaxHistory {
		s.History = append([]Hypothesis(nil), s.History[len(s.History)-t.MaxHistory:]...)
	}
	if s.Domain == "" {
		s.Domain = t.Hypothesis.Domain
	}
	if s.HandlerID == "" {
		s.HandlerID = t.Handler.ID
	}
	if s.HandlerVersion.IsZero() {
		s.HandlerVersion = t.Handler.Version
	}
	s.LastBehavior = t.Behavior
	s.ExpireTime = t.Now.Add(t.Behavior.Timeout())
}

// TransitionToContinuation records the turn and pins the next entry point
// explicitly. The graph is detached for the rest of the conversation.
func (s *ConversationState) TransitionToContinuation(t Transit, continuation string) {
	s.transitCommon(t)
	s.ExplicitContinuation = continuation
	s.graph = nil
}

// TransitionToNode records the turn and moves along the graph, or jumps to
// target when it is non-empty. It reports false when the graph had no edge
// for the hypothesis; CurrentNode is then empty. A retry without an edge
// stays on the current node.
func (s *ConversationState) TransitionToNode(t Transit, target string) bool {
	s.transitCommon(t)
	if t.NoReco {
		s.RetryNum++
	} else {
		s.RetryNum = 0
	}
	if s.graph == nil {
		return true
	}
	if target != "" {
		s.CurrentNode = target
		return true
	}
	e, ok, err := s.graph.Transition(s.CurrentNode, t.Hypothesis.Domain, t.Hypothesis.Intent)
	if !ok || err != nil {
		if t.NoReco && err == nil {
			// A retry asks the same question again.
			return true
		}
		s.CurrentNode = ""
		return false
	}
	s.CurrentNode = e.Target
	return true
}

// Clone copies the frame; the graph pointer is shared.
func (s *ConversationState) Clone() *ConversationState {
	out := *s
	out.Session = s.Session.Clone()
	out.History = make([]Hypothesis, len(s.History))
	for i, h := range s.History {
		out.History[i] = h.Clone()
	}
	return &out
}
