package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingGraph() *ConversationGraph {
	g := NewConversationGraph()
	g.AddStart(Edge{Domain: "calendar", Intent: "create", Target: "ask_time", Continuation: "Create"})
	g.AddNode(Node{
		ID:           "ask_time",
		RetryHandler: "RepeatTime",
		Edges: []Edge{
			{Domain: "calendar", Intent: "confirm", Target: "done", Continuation: "Confirm"},
			{Domain: "calendar", Intent: "weather", Scope: ScopeExternal, ExternalDomain: "weather", ExternalIntent: "get_forecast"},
		},
	})
	g.AddNode(Node{ID: "done"})
	return g
}

func TestConversationGraph_Navigation(t *testing.T) {
	g := bookingGraph()
	require.NoError(t, g.Validate())

	assert.True(t, g.HasStartNode("calendar", "create"))
	assert.False(t, g.HasStartNode("calendar", "confirm"))

	e, ok, err := g.Transition("", "calendar", "create")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ask_time", e.Target)

	assert.Equal(t, "Confirm", g.NextContinuation("ask_time", "calendar", "confirm"))
	assert.Equal(t, "RepeatTime", g.RetryHandler("ask_time"))
	assert.True(t, g.TransitionExists("ask_time", "calendar", "weather"))
	assert.False(t, g.TransitionExists("done", "calendar", "confirm"))

	_, _, err = g.Transition("gone", "calendar", "confirm")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestConversationGraph_ValidateRejectsDanglingTarget(t *testing.T) {
	g := NewConversationGraph()
	g.AddStart(Edge{Domain: "d", Intent: "i", Target: "missing"})
	assert.Error(t, g.Validate())

	g = NewConversationGraph()
	g.AddStart(Edge{Domain: "d", Intent: "i", Scope: ScopeExternal})
	assert.Error(t, g.Validate())
}

func TestConversationGraph_Unreachable(t *testing.T) {
	g := bookingGraph()
	assert.Empty(t, g.Unreachable())

	g.AddNode(Node{ID: "orphan", Edges: []Edge{{Domain: "calendar", Intent: "x", Target: "island"}}})
	g.AddNode(Node{ID: "island"})
	assert.Equal(t, []string{"island", "orphan"}, g.Unreachable())
}

func TestConversationState_TransitionToNode(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewConversationState(bookingGraph())
	id := HandlerIdentity{ID: "calendar", Version: Version{1, 0}}

	moved := s.TransitionToNode(Transit{
		Hypothesis: Hypothesis{Domain: "calendar", Intent: "create"},
		Behavior:   MultiTurnBehavior{Mode: TurnContinuesLocked, TimeoutSeconds: 60},
		Handler:    id,
		MaxHistory: 2,
		Now:        now,
	}, "")

	require.True(t, moved)
	assert.Equal(t, "ask_time", s.CurrentNode)
	assert.Equal(t, 1, s.TurnNum)
	assert.Equal(t, "calendar", s.Domain)
	assert.Equal(t, id, s.Identity())
	assert.Equal(t, now.Add(time.Minute), s.ExpireTime)
	assert.Equal(t, "RepeatTime", s.RetryContinuation())

	s.TransitionToNode(Transit{Hypothesis: Hypothesis{Domain: CommonDomain, Intent: IntentNoReco}, Behavior: BehaviorLocked, MaxHistory: 2, Now: now, NoReco: true}, "ask_time")
	assert.Equal(t, 1, s.RetryNum)
	s.TransitionToNode(Transit{Hypothesis: Hypothesis{Domain: CommonDomain, Intent: IntentNoReco}, Behavior: BehaviorLocked, MaxHistory: 2, Now: now, NoReco: true}, "ask_time")
	assert.Equal(t, 2, s.RetryNum)
	assert.Len(t, s.History, 2, "history is capped")

	moved = s.TransitionToNode(Transit{Hypothesis: Hypothesis{Domain: "calendar", Intent: "unknown"}, Behavior: BehaviorLocked, Now: now}, "")
	assert.False(t, moved)
	assert.Empty(t, s.CurrentNode)
	assert.Equal(t, 0, s.RetryNum)
	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(time.Hour)))
}

func TestConversationState_TransitionToContinuationDropsGraph(t *testing.T) {
	s := NewConversationState(bookingGraph())
	s.TransitionToContinuation(Transit{Hypothesis: Hypothesis{Domain: "calendar", Intent: "create"}, Behavior: BehaviorTentative, Now: time.Now()}, "AskAgain")

	assert.Nil(t, s.Graph())
	assert.Equal(t, "AskAgain", s.NextContinuation("calendar", "anything"))
}

func TestConversationStack_RoundTrip(t *testing.T) {
	bottom := NewConversationState(bookingGraph())
	bottom.HandlerID = "calendar"
	bottom.HandlerVersion = Version{1, 3}
	bottom.Domain = "calendar"
	bottom.CurrentNode = "ask_time"
	bottom.TurnNum = 2
	bottom.LastBehavior = BehaviorLocked
	require.NoError(t, bottom.Session.PutString("title", "dentist"))

	top := NewConversationState(nil)
	top.HandlerID = "weather"
	top.Domain = "weather"
	top.TurnNum = 1
	top.LastBehavior = BehaviorTentative
	top.History = []Hypothesis{{Domain: "weather", Intent: "get_forecast", Confidence: 0.9}}

	stack := NewConversationStack(bottom, top)
	b, err := json.Marshal(stack)
	require.NoError(t, err)

	var restored ConversationStack
	require.NoError(t, json.Unmarshal(b, &restored))
	require.Equal(t, 2, restored.Len())

	frames := restored.Frames()
	assert.Equal(t, "weather", frames[0].Domain)
	assert.Equal(t, TurnContinuesTentative, frames[0].LastBehavior.Mode)
	assert.Equal(t, "calendar", frames[1].Domain)
	assert.Equal(t, Version{1, 3}, frames[1].HandlerVersion)
	assert.Equal(t, "ask_time", frames[1].CurrentNode)
	assert.Nil(t, frames[1].Graph(), "graphs are reattached on load")

	title, ok := frames[1].Session.GetString("title")
	assert.True(t, ok)
	assert.Equal(t, "dentist", title)
}

func TestConversationStack_PushPop(t *testing.T) {
	s := NewConversationStack()
	assert.Nil(t, s.Pop())
	assert.Nil(t, s.Peek())

	a, b := NewConversationState(nil), NewConversationState(nil)
	s.Push(a)
	s.Push(b)
	assert.Same(t, b, s.Peek())
	assert.Same(t, b, s.Pop())
	assert.Same(t, a, s.Pop())
	assert.Equal(t, 0, s.Len())
}

func TestDataStore(t *testing.T) {
	d := NewDataStore()
	assert.False(t, d.Touched())
	require.NoError(t, d.PutString("k", "vv"))
	assert.True(t, d.Touched())
	assert.Equal(t, 3, d.SizeInBytes())

	d.SetReadOnly(true)
	assert.ErrorIs(t, d.PutString("x", "y"), ErrReadOnlyStore)

	src := NewDataStore()
	require.NoError(t, src.PutString("k", "other"))
	require.NoError(t, src.PutString("new", "1"))
	dst := NewDataStore()
	require.NoError(t, dst.PutString("k", "mine"))
	merged := dst.MergeMissing(src)
	assert.Equal(t, []string{"new"}, merged)
	v, _ := dst.GetString("k")
	assert.Equal(t, "mine", v, "existing keys are never overwritten")
}

func TestFrozenTurn_RoundTrip(t *testing.T) {
	side := NewDataStore()
	require.NoError(t, side.PutString("track", "42"))
	f := &FrozenTurn{
		Hypotheses: []*RankedHypothesis{
			{Hypothesis: Hypothesis{Domain: "music", Intent: "play", Confidence: 0.8}, Priority: PriorityBoosted, Confidence: 0.8},
			{Hypothesis: Hypothesis{Domain: "game", Intent: "play", Confidence: 0.7}, Priority: PriorityBoosted, Confidence: 0.7},
		},
		Client:      ClientContext{UserID: "u", ClientID: "c"},
		InputMethod: InputSpoken,
		Text:        "play something",
		SideEffects: map[string]*DataStore{"music/play": side},
	}

	store := NewDataStore()
	require.NoError(t, f.Freeze(store))

	got, err := ThawTurn(store)
	require.NoError(t, err)
	assert.Equal(t, f.Client, got.Client)
	assert.Equal(t, InputSpoken, got.InputMethod)
	assert.Len(t, got.Candidates(), 2)
	v, ok := got.SideEffects["music/play"].GetString("track")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	_, err = ThawTurn(NewDataStore())
	assert.Error(t, err)
}
