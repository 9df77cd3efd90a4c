package parley

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/scripted"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/handlers/disambig"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/session"
)

// Version is the parley release.
var Version = "0.4.0"

// Config is the dialog configuration. See DefaultConfig.
type Config = runtime.Config

// DefaultConfig returns the stock dialog configuration.
func DefaultConfig() Config {
	return runtime.DefaultConfig()
}

// Engine is the entry point for embedding parley. It wires a handler
// registry, a conversation state manager and the turn router.
type Engine struct {
	runtime  *runtime.Engine
	registry *registry.Registry
	sessions *session.Manager
	Name     string

	provider      ports.HandlerProvider
	config        Config
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	states        ports.StateCache
	stateMW       []middleware.Middleware
	profiles      ports.ProfileStore
	dialogActions ports.Cache
	webData       ports.Cache
	locker        ports.DistributedLocker
	lockTTL       time.Duration
	writeTimeout  time.Duration
	noDisambig    bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithProvider replaces the scripted handler directory with a custom provider.
func WithProvider(p ports.HandlerProvider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithHandlers serves the given in-process handlers.
func WithHandlers(handlers ...ports.Handler) Option {
	return func(e *Engine) {
		e.provider = memory.NewProvider(handlers...)
	}
}

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig replaces the dialog configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithStateCache sets where conversation stacks are kept. State, profiles
// and caches default to in-process stores.
func WithStateCache(cache ports.StateCache) Option {
	return func(e *Engine) {
		e.states = cache
	}
}

// WithStateMiddleware wraps the state cache. The first middleware sees
// writes first.
func WithStateMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		e.stateMW = append(e.stateMW, mws...)
	}
}

// WithProfileStore sets the user profile store.
func WithProfileStore(store ports.ProfileStore) Option {
	return func(e *Engine) {
		e.profiles = store
	}
}

// WithCaches sets the dialog action and web data caches.
func WithCaches(dialogActions, webData ports.Cache) Option {
	return func(e *Engine) {
		e.dialogActions = dialogActions
		e.webData = webData
	}
}

// WithLocker serializes turns of the same user across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithWriteTimeout bounds the asynchronous state writes after each turn.
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.writeTimeout = d
	}
}

// WithoutDisambiguation skips the built-in disambiguation handler, for hosts
// that provide their own in the system domain.
func WithoutDisambiguation() Option {
	return func(e *Engine) {
		e.noDisambig = true
	}
}

// New loads the scripted handlers in dir and builds an engine around them.
// With WithProvider or WithHandlers, dir only names the engine.
func New(ctx context.Context, dir string, opts ...Option) (*Engine, error) {
	eng := &Engine{config: DefaultConfig()}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.provider == nil {
		if dir == "" {
			return nil, fmt.Errorf("dir is required when no handler provider is configured")
		}
		p, err := scripted.NewProvider(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load handlers: %w", err)
		}
		eng.provider = p
	}
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			eng.Name = filepath.Base(abs)
		}
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("app", eng.Name)
	}

	provider := eng.provider
	if !eng.noDisambig {
		system := eng.config.SystemDomain
		if system == "" {
			system = domain.SystemDomain
		}
		provider = memory.Providers{provider, memory.NewProvider(disambig.New(disambig.WithDomain(system)))}
	}

	eng.registry = registry.New(provider, registry.WithLogger(eng.logger))
	if err := eng.registry.LoadAvailable(ctx); err != nil {
		return nil, fmt.Errorf("failed to load handlers: %w", err)
	}

	states := eng.states
	if states == nil {
		states = memory.NewStateCache()
	}
	states = middleware.Chain(states, eng.stateMW...)

	if eng.profiles == nil {
		eng.profiles = memory.NewProfileStore()
	}
	if eng.dialogActions == nil {
		eng.dialogActions = memory.NewCache()
	}
	if eng.webData == nil {
		eng.webData = memory.NewCache()
	}
	sessionOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithProfileStore(eng.profiles),
		session.WithDialogActionCache(eng.dialogActions),
		session.WithWebDataCache(eng.webData),
	}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker, eng.lockTTL))
	}
	if eng.writeTimeout > 0 {
		sessionOpts = append(sessionOpts, session.WithWriteTimeout(eng.writeTimeout))
	}
	eng.sessions = session.NewManager(states, sessionOpts...)

	eng.runtime = runtime.NewEngine(eng.registry, eng.sessions,
		runtime.WithLogger(eng.logger),
		runtime.WithConfig(eng.config),
		runtime.WithLifecycleHooks(eng.hooks),
	)
	return eng, nil
}

// Process runs one turn.
func (e *Engine) Process(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	return e.runtime.Process(ctx, req)
}

// Handlers lists the loaded handlers.
func (e *Engine) Handlers() []ports.HandlerMetadata {
	return e.runtime.Handlers()
}

// Registry exposes the handler registry for hot loading and unloading.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Wait blocks until every pending state write has been applied.
func (e *Engine) Wait() {
	e.sessions.Wait()
}

// Close waits for pending writes and unloads every handler.
func (e *Engine) Close(ctx context.Context) error {
	e.sessions.Wait()
	return e.registry.UnloadAll(ctx)
}

var _ ports.TurnProcessor = (*Engine)(nil)
