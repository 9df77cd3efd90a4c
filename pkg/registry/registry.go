package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Loaded is a handler that passed its load hook, with its metadata.
type Loaded struct {
	ports.HandlerMetadata
	Handler ports.Handler
}

// Registry holds the loaded handlers, keyed by identity. Lookups take a
// read lock; mutations hold the write lock only for the map edit, never
// while a handler's lifecycle hook runs.
type Registry struct {
	provider ports.HandlerProvider
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[domain.HandlerIdentity]*Loaded
	pending  map[domain.HandlerIdentity]struct{}
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty registry that opens handlers through provider.
func New(provider ports.HandlerProvider, opts ...Option) *Registry {
	r := &Registry{
		provider: provider,
		logger:   logging.NewNop(),
		handlers: make(map[domain.HandlerIdentity]*Loaded),
		pending:  make(map[domain.HandlerIdentity]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load opens the handler, runs its load hook and publishes it.
// Loading an identity that is already loaded is a no-op.
func (r *Registry) Load(ctx context.Context, id domain.HandlerIdentity) error {
	r.mu.Lock()
	_, loaded := r.handlers[id]
	_, inFlight := r.pending[id]
	if loaded || inFlight {
		r.mu.Unlock()
		return nil
	}
	r.pending[id] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	h, err := r.provider.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("open handler %s: %w", id, err)
	}
	meta := h.Metadata()
	if meta.Identity != id {
		return fmt.Errorf("open handler %s: provider returned %s", id, meta.Identity)
	}
	if meta.Domain == "" {
		return fmt.Errorf("handler %s declares no domain", id)
	}
	if meta.Graph != nil {
		if err := meta.Graph.Validate(); err != nil {
			return fmt.Errorf("handler %s graph: %w", id, err)
		}
	}

	if err := h.OnLoad(ctx, r.logger.With("handler_id", id.String())); err != nil {
		return fmt.Errorf("load hook %s: %w", id, err)
	}

	r.mu.Lock()
	r.handlers[id] = &Loaded{HandlerMetadata: meta, Handler: h}
	count := len(r.handlers)
	r.mu.Unlock()

	r.logger.Info("handler loaded", "handler_id", id.String(), "domain", meta.Domain, "loaded_count", count)
	return nil
}

// Unload removes the handler and then runs its unload hook.
func (r *Registry) Unload(ctx context.Context, id domain.HandlerIdentity) error {
	r.mu.Lock()
	l, ok := r.handlers[id]
	if ok {
		delete(r.handlers, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unload %s: %w", id, domain.ErrHandlerNotFound)
	}

	if err := l.Handler.OnUnload(ctx, r.logger.With("handler_id", id.String())); err != nil {
		return fmt.Errorf("unload hook %s: %w", id, err)
	}
	r.logger.Info("handler unloaded", "handler_id", id.String())
	return nil
}

// UnloadAll unloads every handler.
func (r *Registry) UnloadAll(ctx context.Context) error {
	var errs []error
	for _, id := range r.identities() {
		if err := r.Unload(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetLoadedSet makes the loaded set equal to ids. With reloadAll, handlers
// present in both sets are unloaded and loaded again.
func (r *Registry) SetLoadedSet(ctx context.Context, ids []domain.HandlerIdentity, reloadAll bool) error {
	want := make(map[domain.HandlerIdentity]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var toRemove, toLoad []domain.HandlerIdentity
	current := r.identities()
	have := make(map[domain.HandlerIdentity]bool, len(current))
	for _, id := range current {
		have[id] = true
		if reloadAll || !want[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range ids {
		if reloadAll || !have[id] {
			toLoad = append(toLoad, id)
		}
	}

	var errs []error
	for _, id := range toRemove {
		if err := r.Unload(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range toLoad {
		if err := r.Load(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadAvailable loads everything the provider offers.
func (r *Registry) LoadAvailable(ctx context.Context) error {
	ids, err := r.provider.Available(ctx)
	if err != nil {
		return fmt.Errorf("list available handlers: %w", err)
	}
	return r.SetLoadedSet(ctx, ids, false)
}

// Resolve returns the highest version serving domainName. With a ceiling,
// versions from the next major upward are excluded, so minor upgrades are
// allowed mid-conversation but major ones are not. Handlers of one domain
// at the same version are ordered by ID.
func (r *Registry) Resolve(domainName string, ceiling *domain.Version) (*Loaded, bool) {
	max := domain.MaxVersion
	if ceiling != nil {
		max = domain.Version{Major: ceiling.Major + 1}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Loaded
	for id, l := range r.handlers {
		if l.Domain != domainName || !id.Version.Less(max) {
			continue
		}
		if best == nil || best.Identity.Version.Less(id.Version) ||
			(best.Identity.Version == id.Version && id.ID < best.Identity.ID) {
			best = l
		}
	}
	return best, best != nil
}

// Get returns the handler with exactly this identity.
func (r *Registry) Get(id domain.HandlerIdentity) (*Loaded, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.handlers[id]
	return l, ok
}

// HighestMinor returns the highest loaded version of handlerID within major.
func (r *Registry) HighestMinor(handlerID string, major int) (*Loaded, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Loaded
	for id, l := range r.handlers {
		if id.ID != handlerID || id.Version.Major != major {
			continue
		}
		if best == nil || best.Identity.Version.Less(id.Version) {
			best = l
		}
	}
	return best, best != nil
}

// Snapshot returns the metadata of every loaded handler, sorted by identity.
func (r *Registry) Snapshot() []ports.HandlerMetadata {
	r.mu.RLock()
	out := make([]ports.HandlerMetadata, 0, len(r.handlers))
	for _, l := range r.handlers {
		out = append(out, l.HandlerMetadata)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Identity.ID != out[j].Identity.ID {
			return out[i].Identity.ID < out[j].Identity.ID
		}
		return out[i].Identity.Version.Less(out[j].Identity.Version)
	})
	return out
}

// Domains returns the distinct domains served by loaded handlers.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	set := make(map[string]struct{}, len(r.handlers))
	for _, l := range r.handlers {
		set[l.Domain] = struct{}{}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) identities() []domain.HandlerIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.HandlerIdentity, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	return ids
}
