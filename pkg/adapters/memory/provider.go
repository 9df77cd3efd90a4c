package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Provider implements ports.HandlerProvider over handlers living in this process.
// Safe for concurrent use.
type Provider struct {
	mu       sync.RWMutex
	handlers map[domain.HandlerIdentity]ports.Handler
}

// NewProvider creates a provider offering the given handlers.
func NewProvider(handlers ...ports.Handler) *Provider {
	p := &Provider{handlers: make(map[domain.HandlerIdentity]ports.Handler)}
	for _, h := range handlers {
		p.Add(h)
	}
	return p
}

// Add offers a handler, replacing any handler with the same identity.
func (p *Provider) Add(h ports.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[h.Metadata().Identity] = h
}

// Remove stops offering a handler.
func (p *Provider) Remove(id domain.HandlerIdentity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, id)
}

// Available lists the offered identities.
func (p *Provider) Available(ctx context.Context) ([]domain.HandlerIdentity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]domain.HandlerIdentity, 0, len(p.handlers))
	for id := range p.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Open returns the handler with this identity.
func (p *Provider) Open(ctx context.Context, id domain.HandlerIdentity) (ports.Handler, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, ok := p.handlers[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrHandlerNotFound)
	}
	return h, nil
}

// Providers offers the union of several providers. When two offer the same
// identity, the earlier one wins.
type Providers []ports.HandlerProvider

// Available lists every identity once.
func (ps Providers) Available(ctx context.Context) ([]domain.HandlerIdentity, error) {
	seen := make(map[domain.HandlerIdentity]struct{})
	var ids []domain.HandlerIdentity
	for _, p := range ps {
		got, err := p.Available(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range got {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Open asks each provider in turn.
func (ps Providers) Open(ctx context.Context, id domain.HandlerIdentity) (ports.Handler, error) {
	for _, p := range ps {
		h, err := p.Open(ctx, id)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, domain.ErrHandlerNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", id, domain.ErrHandlerNotFound)
}
