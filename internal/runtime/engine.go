package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/session"
	"github.com/google/uuid"
)

// Config holds the dialog tuning knobs.
type Config struct {
	// MinHandlerConfidence is the floor below which hypotheses are ignored
	// outside locked multi-turn conversations.
	MinHandlerConfidence float64
	// MaxSideSpeechConfidence caps the effective confidence of side speech.
	MaxSideSpeechConfidence float64
	// IgnoreSideSpeech disables routing side speech to the side speech domain.
	IgnoreSideSpeech bool
	// MaxStoreSizeBytes bounds session stores and user profiles.
	MaxStoreSizeBytes int
	// AllowedGlobalProfileEditors lists the handler IDs that may write the
	// global profile. Nil leaves the global profile writable for everyone.
	AllowedGlobalProfileEditors []string
	// MaxConversationHistory is the number of past turns kept per frame.
	MaxConversationHistory int
	// MaxRecursionDepth bounds invoked actions, hand-offs and disambiguation.
	MaxRecursionDepth int
	// TriggerConcurrency limits parallel trigger evaluations. Zero is unlimited.
	TriggerConcurrency int
	// CachedActionGrace is added to the conversation timeout for cached
	// dialog actions that carry no expiry.
	CachedActionGrace time.Duration

	CommonDomain     string
	SideSpeechDomain string
	SystemDomain     string
}

// DefaultConfig returns the stock dialog configuration.
func DefaultConfig() Config {
	return Config{
		MinHandlerConfidence:    0.75,
		MaxSideSpeechConfidence: 0.8,
		MaxStoreSizeBytes:       64 * 1024,
		MaxConversationHistory:  10,
		MaxRecursionDepth:       8,
		CachedActionGrace:       30 * time.Second,
		CommonDomain:            domain.CommonDomain,
		SideSpeechDomain:        domain.SideSpeechDomain,
		SystemDomain:            domain.SystemDomain,
	}
}

// Engine routes turns to handlers.
type Engine struct {
	registry *registry.Registry
	sessions *session.Manager
	config   Config
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithConfig replaces the dialog configuration. Empty reserved domain names
// keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.CommonDomain == "" {
			cfg.CommonDomain = def.CommonDomain
		}
		if cfg.SideSpeechDomain == "" {
			cfg.SideSpeechDomain = def.SideSpeechDomain
		}
		if cfg.SystemDomain == "" {
			cfg.SystemDomain = def.SystemDomain
		}
		if cfg.MaxRecursionDepth <= 0 {
			cfg.MaxRecursionDepth = def.MaxRecursionDepth
		}
		e.config = cfg
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine routing to the handlers in reg and keeping
// conversation state through sessions.
func NewEngine(reg *registry.Registry, sessions *session.Manager, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		sessions: sessions,
		config:   DefaultConfig(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handlers lists the loaded handlers.
func (e *Engine) Handlers() []ports.HandlerMetadata {
	return e.registry.Snapshot()
}

// Config returns the active dialog configuration.
func (e *Engine) Config() Config {
	return e.config
}

// turn is the state shared by every routing pass of one request.
type turn struct {
	traceID  string
	logger   *slog.Logger
	stack    *domain.ConversationStack
	commit   *session.Commit
	entities map[string]string
	now      time.Time
}

// pass is one routing pass. Invoked actions, disambiguation and its
// callback each run a nested pass over the same turn.
type pass struct {
	hyps            []*domain.RankedHypothesis
	client          domain.ClientContext
	inputMethod     domain.InputMethod
	text            string
	requestData     map[string]string
	newConversation bool
	useTriggers     bool
	arbitrate       bool
	sideEffects     map[string]*domain.DataStore
	depth           int
}

// Process runs one orchestration turn. Orchestration errors abort the turn
// and nothing it staged is persisted.
func (e *Engine) Process(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	logger := e.logger.With("trace_id", traceID, "user_id", req.Client.UserID)
	start := e.now()

	if e.hooks.OnTurnStart != nil {
		e.hooks.OnTurnStart(ctx, &domain.TurnEvent{TraceID: traceID, Client: req.Client})
	}

	if len(req.Hypotheses) == 0 {
		logger.Warn("No hypotheses passed to the engine")
	} else {
		logger.Debug("Processing turn", "top_domain", req.Hypotheses[0].Domain, "top_intent", req.Hypotheses[0].Intent)
	}

	unlock, err := e.sessions.Lock(ctx, req.Client.UserID)
	if err != nil {
		logger.Error("Turn aborted", "err", err)
		e.endTurn(ctx, traceID, req.Client, nil, err, start)
		return nil, err
	}

	var stack *domain.ConversationStack
	switch {
	case req.NewConversation:
		logger.Info("New conversation requested; ignoring stored state")
		stack = domain.NewConversationStack()
	case req.Stack != nil:
		logger.Debug("Using prefetched conversation state", "frames", req.Stack.Len())
		stack = req.Stack.Clone()
	default:
		stack = e.sessions.Retrieve(ctx, req.Client)
	}
	stack = session.Reconcile(stack, e.registry, start, logger)

	t := &turn{
		traceID:  traceID,
		logger:   logger,
		stack:    stack,
		commit:   session.NewCommit(req.Client, traceID),
		entities: copyMap(req.EntityContext),
		now:      start,
	}
	p := pass{
		hyps:            domain.NewRankedList(req.Hypotheses...),
		client:          req.Client,
		inputMethod:     req.InputMethod,
		text:            req.Text,
		requestData:     req.RequestData,
		newConversation: req.NewConversation,
		useTriggers:     true,
		arbitrate:       true,
	}

	t.commit.HoldLock(unlock)

	res, err := e.process(ctx, t, p)
	if err == nil {
		res.TraceID = traceID
		e.sessions.Commit(ctx, t.commit)
	} else {
		logger.Error("Turn aborted", "err", err)
		e.sessions.Release(ctx, t.commit)
	}

	e.endTurn(ctx, traceID, req.Client, res, err, start)
	return res, err
}

func (e *Engine) endTurn(ctx context.Context, traceID string, client domain.ClientContext, res *domain.TurnResult, err error, start time.Time) {
	if e.hooks.OnTurnEnd != nil {
		e.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
			TraceID:  traceID,
			Client:   client,
			Result:   res,
			Err:      err,
			Duration: e.now().Sub(start),
		})
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func orchestrationError(op, handler string, err error) error {
	return &domain.OrchestrationError{Op: op, Handler: handler, Err: err}
}
