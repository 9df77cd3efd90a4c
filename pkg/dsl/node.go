package dsl

import "github.com/aretw0/parley/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// On adds a local edge: intent moves the conversation to target and runs
// continuation. An empty target ends the conversation.
func (n *NodeBuilder) On(intent, target, continuation string) *NodeBuilder {
	n.node.Edges = append(n.node.Edges, domain.Edge{
		Intent:       intent,
		Target:       target,
		Continuation: continuation,
	})
	return n
}

// Handoff adds an edge that passes the conversation to another domain.
func (n *NodeBuilder) Handoff(intent, externalDomain, externalIntent, continuation string) *NodeBuilder {
	n.node.Edges = append(n.node.Edges, domain.Edge{
		Intent:         intent,
		Continuation:   continuation,
		Scope:          domain.ScopeExternal,
		ExternalDomain: externalDomain,
		ExternalIntent: externalIntent,
	})
	return n
}

// Retry names the continuation run when the user says nothing usable here.
func (n *NodeBuilder) Retry(continuation string) *NodeBuilder {
	n.node.RetryHandler = continuation
	return n
}

// Add starts the next node. It is Builder.Add, for chaining.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Done returns to the handler builder.
func (n *NodeBuilder) Done() *Builder {
	return n.builder
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	cp := n.node
	cp.Edges = append([]domain.Edge(nil), n.node.Edges...)
	return cp
}
