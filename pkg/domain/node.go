package domain

import (
	"fmt"
	"sort"
)

// Node is a position in a handler's conversation graph.
type Node struct {
	ID string `json:"id" yaml:"id"`

	// RetryHandler names the continuation invoked when the user says
	// nothing recognizable while at this node.
	RetryHandler string `json:"retry_handler,omitempty" yaml:"retry_handler,omitempty" mapstructure:"retry_handler"`

	Edges []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// ConversationGraph maps (node, domain, intent) to the next node for one
// handler. Start edges are the valid first-turn entry points. A graph is
// immutable once handed to the registry.
type ConversationGraph struct {
	nodes  map[string]*Node
	starts []Edge
}

// NewConversationGraph creates an empty graph.
func NewConversationGraph() *ConversationGraph {
	return &ConversationGraph{nodes: make(map[string]*Node)}
}

// AddNode registers a node, replacing any node with the same ID.
func (g *ConversationGraph) AddNode(n Node) *ConversationGraph {
	cp := n
	cp.Edges = append([]Edge(nil), n.Edges...)
	g.nodes[n.ID] = &cp
	return g
}

// AddStart registers a first-turn entry point.
func (g *ConversationGraph) AddStart(e Edge) *ConversationGraph {
	g.starts = append(g.starts, e)
	return g
}

// Node returns the node with the given ID.
func (g *ConversationGraph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// NodeIDs returns all node IDs in sorted order.
func (g *ConversationGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Starts returns the first-turn entry points.
func (g *ConversationGraph) Starts() []Edge {
	return append([]Edge(nil), g.starts...)
}

// HasStartNode reports whether domain/intent may open a conversation.
func (g *ConversationGraph) HasStartNode(domain, intent string) bool {
	_, ok := g.start(domain, intent)
	return ok
}

func (g *ConversationGraph) start(domain, intent string) (Edge, bool) {
	for _, e := range g.starts {
		if e.Matches(domain, intent) {
			return e, true
		}
	}
	return Edge{}, false
}

// Transition finds the edge taken from node on domain/intent. An empty node
// means the conversation has not started, so start edges apply. An unknown
// node is an error: the stored state no longer fits this graph.
func (g *ConversationGraph) Transition(node, domain, intent string) (Edge, bool, error) {
	if node == "" {
		e, ok := g.start(domain, intent)
		return e, ok, nil
	}
	n, ok := g.nodes[node]
	if !ok {
		return Edge{}, false, fmt.Errorf("node %q: %w", node, ErrUnknownNode)
	}
	for _, e := range n.Edges {
		if e.Matches(domain, intent) {
			return e, true, nil
		}
	}
	return Edge{}, false, nil
}

// TransitionExists reports whether Transition would find an edge.
func (g *ConversationGraph) TransitionExists(node, domain, intent string) bool {
	_, ok, err := g.Transition(node, domain, intent)
	return ok && err == nil
}

// NextContinuation returns the entry point to invoke for domain/intent.
func (g *ConversationGraph) NextContinuation(node, domain, intent string) string {
	e, ok, err := g.Transition(node, domain, intent)
	if !ok || err != nil {
		return ""
	}
	return e.Continuation
}

// RetryHandler returns the retry continuation declared on node.
func (g *ConversationGraph) RetryHandler(node string) string {
	if n, ok := g.nodes[node]; ok {
		return n.RetryHandler
	}
	return ""
}

// Validate checks that every edge target and start target exists.
func (g *ConversationGraph) Validate() error {
	check := func(where string, e Edge) error {
		if e.Domain == "" || e.Intent == "" {
			return fmt.Errorf("%s: edge needs domain and intent", where)
		}
		if e.Scope.IsExternal() && (e.ExternalDomain == "" || e.ExternalIntent == "") {
			return fmt.Errorf("%s: external edge %s needs external_domain and external_intent", where, DomainIntent(e.Domain, e.Intent))
		}
		if e.Target != "" {
			if _, ok := g.nodes[e.Target]; !ok {
				return fmt.Errorf("%s: edge %s targets missing node %q", where, DomainIntent(e.Domain, e.Intent), e.Target)
			}
		}
		return nil
	}
	for _, e := range g.starts {
		if err := check("start", e); err != nil {
			return err
		}
	}
	for _, id := range g.NodeIDs() {
		for _, e := range g.nodes[id].Edges {
			if err := check("node "+id, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unreachable lists, in sorted order, the nodes no start edge can lead to.
func (g *ConversationGraph) Unreachable() []string {
	visited := make(map[string]bool)
	var queue []string
	for _, e := range g.starts {
		if e.Target != "" {
			queue = append(queue, e.Target)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		for _, e := range n.Edges {
			if e.Target != "" && !visited[e.Target] {
				queue = append(queue, e.Target)
			}
		}
	}

	var out []string
	for _, id := range g.NodeIDs() {
		if !visited[id] {
			out = append(out, id)
		}
	}
	return out
}
