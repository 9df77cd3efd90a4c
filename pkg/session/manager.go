package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// lockEntry orders the commits of one user. tail is closed when the most
// recently dispatched commit finishes.
type lockEntry struct {
	tail chan struct{}
	refs int
}

// Manager reads conversation state at the start of a turn and dispatches
// the turn's writes when it ends. Writes are fire-and-forget: failures are
// logged and never reach the turn result. Writes for the same user are
// applied in dispatch order within this process.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	cache         ports.StateCache
	profiles      ports.ProfileStore
	dialogActions ports.Cache
	webData       ports.Cache

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active per-user queues

	locker  ports.DistributedLocker
	lockTTL time.Duration

	inflight     sync.WaitGroup
	writeTimeout time.Duration
	logger       *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithProfileStore enables user profile reads and writes.
func WithProfileStore(store ports.ProfileStore) Option {
	return func(m *Manager) {
		m.profiles = store
	}
}

// WithDialogActionCache enables persisting cached dialog actions.
func WithDialogActionCache(cache ports.Cache) Option {
	return func(m *Manager) {
		m.dialogActions = cache
	}
}

// WithWebDataCache enables persisting cached web data.
func WithWebDataCache(cache ports.Cache) Option {
	return func(m *Manager) {
		m.webData = cache
	}
}

// WithLocker serializes each user's turns through locker. ttl bounds how
// long a crashed replica can hold a user.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		m.lockTTL = ttl
	}
}

// WithWriteTimeout bounds each dispatched write.
func WithWriteTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.writeTimeout = d
	}
}

// NewManager creates a Manager persisting conversation stacks to cache.
func NewManager(cache ports.StateCache, opts ...Option) *Manager {
	m := &Manager{
		cache:        cache,
		locks:        make(map[string]*lockEntry),
		writeTimeout: 10 * time.Second,
		logger:       logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire enqueues a commit for key. It returns the channel to wait on
// (nil when the queue was empty) and the channel to close when done.
// The caller MUST call release(key) after closing done.
func (m *Manager) acquire(key string) (prev <-chan struct{}, done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	prev = entry.tail
	done = make(chan struct{})
	entry.tail = done
	return prev, done
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Lock takes the user's turn lock. Without a locker it returns a no-op.
func (m *Manager) Lock(ctx context.Context, userID string) (ports.UnlockFunc, error) {
	if m.locker == nil {
		return func(context.Context) error { return nil }, nil
	}
	unlock, err := m.locker.Lock(ctx, "turn:"+userID, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %q: %w", userID, err)
	}
	return unlock, nil
}

func (m *Manager) unlock(ctx context.Context, c *Commit) {
	if c == nil || c.unlock == nil {
		return
	}
	if err := c.unlock(ctx); err != nil {
		m.logger.Warn("Failed to release turn lock", "user_id", c.Client.UserID, "err", err)
	}
	c.unlock = nil
}

// Release drops the turn lock a commit holds without writing anything.
func (m *Manager) Release(ctx context.Context, c *Commit) {
	m.unlock(context.WithoutCancel(ctx), c)
}

// Retrieve loads the stored stack for the client. Missing or unreadable
// state yields an empty stack: a turn must tolerate stale state.
func (m *Manager) Retrieve(ctx context.Context, client domain.ClientContext) *domain.ConversationStack {
	stack, err := m.cache.TryRetrieve(ctx, client.UserID, client.ClientID)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			m.logger.Warn("Failed to retrieve conversation state; starting empty",
				"user_id", client.UserID,
				"client_id", client.ClientID,
				"err", err,
			)
		}
		return domain.NewConversationStack()
	}
	return stack
}

// Profiles loads the user's profiles as seen by handlerID. Failures yield
// empty profiles.
func (m *Manager) Profiles(ctx context.Context, userID, handlerID string) domain.UserProfiles {
	if m.profiles == nil {
		return domain.UserProfiles{}.Normalize()
	}
	p, err := m.profiles.GetProfiles(ctx, domain.ProfileAll, userID, handlerID)
	if err != nil {
		m.logger.Warn("Failed to load user profiles",
			"user_id", userID,
			"handler_id", handlerID,
			"err", err,
		)
		return domain.UserProfiles{}.Normalize()
	}
	return p.Normalize()
}

// Commit dispatches every write in c and returns immediately. Commits for
// the same user run in the order Commit was called.
func (m *Manager) Commit(ctx context.Context, c *Commit) {
	if c == nil || c.Empty() {
		m.Release(ctx, c)
		return
	}
	ctx = context.WithoutCancel(ctx)
	key := c.Client.UserID
	prev, done := m.acquire(key)

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer m.release(key)
		defer close(done)
		if prev != nil {
			<-prev
		}
		m.apply(ctx, c)
		m.unlock(ctx, c)
	}()
}

// Wait blocks until every dispatched commit has finished.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

func (m *Manager) apply(ctx context.Context, c *Commit) {
	ctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	var wg sync.WaitGroup
	run := func(what string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				m.logger.Error("Writeback failed",
					"write", what,
					"trace_id", c.TraceID,
					"user_id", c.Client.UserID,
					"err", err,
				)
			}
		}()
	}

	switch c.State {
	case StateSave:
		stack := c.Stack
		run("client_state", func(ctx context.Context) error {
			return m.cache.SetClientState(ctx, c.Client.UserID, c.Client.ClientID, stack)
		})
		if c.Roam {
			run("roaming_state", func(ctx context.Context) error {
				return m.cache.SetRoamingState(ctx, c.Client.UserID, stack)
			})
		}
	case StateClear:
		run("clear_state", func(ctx context.Context) error {
			return m.cache.ClearBothStates(ctx, c.Client.UserID, c.Client.ClientID)
		})
	}

	if m.profiles != nil {
		for _, pw := range c.Profiles {
			run("profiles", func(ctx context.Context) error {
				return m.profiles.UpdateProfiles(ctx, pw.Scope, pw.Profiles, c.Client.UserID, pw.HandlerID)
			})
		}
	}
	if m.dialogActions != nil && len(c.DialogActions) > 0 {
		run("dialog_actions", func(ctx context.Context) error {
			return m.dialogActions.Store(ctx, c.DialogActions)
		})
	}
	if m.webData != nil && len(c.WebData) > 0 {
		run("web_data", func(ctx context.Context) error {
			return m.webData.Store(ctx, c.WebData)
		})
	}

	wg.Wait()
}
