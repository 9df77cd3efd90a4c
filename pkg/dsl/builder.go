package dsl

import (
	"fmt"

	"github.com/aretw0/parley/pkg/adapters/scripted"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/schema"
)

// Builder manages the handler construction.
type Builder struct {
	def   schema.Definition
	nodes []*NodeBuilder
	err   error
}

// New creates a builder for handler id at version ("major.minor").
func New(id, version string) *Builder {
	b := &Builder{def: schema.Definition{
		ID:        id,
		Domain:    id,
		Responses: make(map[string]schema.ResponseSpec),
	}}
	v, err := domain.ParseVersion(version)
	if err != nil {
		b.err = fmt.Errorf("handler %s: %w", id, err)
	}
	b.def.Version = v
	return b
}

// Domain sets the handler domain.
func (b *Builder) Domain(d string) *Builder {
	b.def.Domain = d
	return b
}

// Describe sets the display name and description.
func (b *Builder) Describe(name, description string) *Builder {
	b.def.Info.Name = name
	b.def.Info.Description = description
	return b
}

// Start adds a first-turn entry point on intent in the handler's domain.
// An empty target starts the conversation without moving to a node.
func (b *Builder) Start(intent, target, continuation string) *Builder {
	b.def.Start = append(b.def.Start, domain.Edge{Intent: intent, Target: target, Continuation: continuation})
	return b
}

// Add creates a node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	for _, nb := range b.nodes {
		if nb.node.ID == id {
			return nb
		}
	}
	nb := &NodeBuilder{node: domain.Node{ID: id}, builder: b}
	b.nodes = append(b.nodes, nb)
	return nb
}

// Respond sets what the handler does when continuation runs.
func (b *Builder) Respond(continuation string, r *ResponseBuilder) *Builder {
	b.def.Responses[continuation] = r.spec
	return b
}

// Trigger bids signal on ambiguous turns carrying intent.
func (b *Builder) Trigger(intent string, signal domain.BoostSignal) *Builder {
	b.def.Triggers = append(b.def.Triggers, schema.TriggerSpec{Intent: intent, Signal: signal})
	return b
}

// Accepts declares a cross-domain intent this handler takes over and the
// slots it asks the source domain for.
func (b *Builder) Accepts(intent string, slots ...string) *Builder {
	if b.def.CrossDomain.Accepts == nil {
		b.def.CrossDomain.Accepts = make(map[string][]string)
	}
	b.def.CrossDomain.Accepts[intent] = slots
	return b
}

// Provides fills slot from a template when another domain asks.
func (b *Builder) Provides(slot, tmpl string) *Builder {
	if b.def.CrossDomain.Provides == nil {
		b.def.CrossDomain.Provides = make(map[string]string)
	}
	b.def.CrossDomain.Provides[slot] = tmpl
	return b
}

// Definition returns the assembled definition without validating it.
func (b *Builder) Definition() *schema.Definition {
	def := b.def
	def.Nodes = make([]domain.Node, len(b.nodes))
	for i, nb := range b.nodes {
		def.Nodes[i] = nb.Build()
	}
	return &def
}

// Build validates and compiles the handler.
func (b *Builder) Build() (*scripted.Handler, error) {
	if b.err != nil {
		return nil, b.err
	}
	h, err := scripted.New(b.Definition())
	if err != nil {
		return nil, fmt.Errorf("failed to build handler: %w", err)
	}
	return h, nil
}
