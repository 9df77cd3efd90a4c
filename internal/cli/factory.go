package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/adapters/scripted"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// App is a fully wired engine and the resources it owns.
type App struct {
	Engine  *parley.Engine
	Metrics *observability.Metrics

	closers []func() error
}

// Close waits for pending state writes, unloads handlers and releases
// backend connections.
func (a *App) Close(ctx context.Context) error {
	errs := []error{a.Engine.Close(ctx)}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Build wires an engine from configuration: handlers, state backend, state
// middleware, metrics and audit logging.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{}
	opts := []parley.Option{
		parley.WithLogger(logger),
		parley.WithConfig(cfg.Dialog.Runtime()),
		parley.WithLifecycleHooks(observability.LogHooks(logger)),
		parley.WithWriteTimeout(cfg.State.WriteTimeout),
	}

	if len(cfg.Handlers.Files) > 0 {
		handlers, err := scripted.Load(cfg.Handlers.Files...)
		if err != nil {
			return nil, fmt.Errorf("failed to load handlers: %w", err)
		}
		hs := make([]ports.Handler, len(handlers))
		for i, h := range handlers {
			hs[i] = h
		}
		opts = append(opts, parley.WithHandlers(hs...))
	}

	if cfg.Metrics.Enabled {
		app.Metrics = observability.NewMetrics(prometheus.NewRegistry())
		opts = append(opts, parley.WithLifecycleHooks(app.Metrics.Hooks()))
	}

	var mws []middleware.Middleware
	if len(cfg.State.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.State.PIIPatterns)
		if err != nil {
			return nil, fmt.Errorf("state.pii_patterns: %w", err)
		}
		mws = append(mws, pii)
	}
	if enc, ok, err := cfg.State.Encryption.Middleware(); err != nil {
		return nil, err
	} else if ok {
		mws = append(mws, enc)
	}
	opts = append(opts, parley.WithStateMiddleware(mws...))

	switch cfg.State.Backend {
	case "file":
		opts = append(opts, parley.WithStateCache(file.New(cfg.State.File.Dir)))
		logger.Info("Using file state backend", "dir", cfg.State.File.Dir)
	case "redis":
		store := redis.New(cfg.State.Redis.Addr, cfg.State.Redis.Password, cfg.State.Redis.DB,
			redis.WithPrefix(cfg.State.Redis.Prefix),
			redis.WithTTL(cfg.State.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.State.Redis.Addr, err)
		}
		app.closers = append(app.closers, store.Close)
		opts = append(opts,
			parley.WithStateCache(store),
			parley.WithProfileStore(store),
			parley.WithCaches(store, store),
			parley.WithLocker(redis.NewLocker(store.Client(), cfg.State.Redis.Prefix), cfg.State.LockTTL),
		)
		logger.Info("Using redis state backend", "addr", cfg.State.Redis.Addr, "prefix", cfg.State.Redis.Prefix)
	}

	eng, err := parley.New(ctx, cfg.Handlers.Dir, opts...)
	if err != nil {
		for _, c := range app.closers {
			_ = c()
		}
		return nil, err
	}
	app.Engine = eng
	logger.Info("Engine ready", "handlers", len(eng.Handlers()), "backend", cfg.State.Backend)
	return app, nil
}
