// Package redis stores conversation state, user profiles and cached items
// in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "parley:"

// Store implements ports.StateCache, ports.ProfileStore and ports.Cache
// over one Redis client.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration of conversation states. Zero keeps them
// until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to Redis at address.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a store over an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to build a Locker on it.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) clientKey(userID, clientID string) string {
	return s.prefix + "state:client:" + userID + ":" + clientID
}

func (s *Store) roamingKey(userID string) string {
	return s.prefix + "state:roaming:" + userID
}

// TryRetrieve returns the client stack, falling back to the roaming stack.
func (s *Store) TryRetrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	data, err := s.client.Get(ctx, s.clientKey(userID, clientID)).Bytes()
	if errors.Is(err, backend.Nil) {
		data, err = s.client.Get(ctx, s.roamingKey(userID)).Bytes()
	}
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var stack domain.ConversationStack
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stack: %w", err)
	}
	return &stack, nil
}

// SetClientState stores the stack for one user/device.
func (s *Store) SetClientState(ctx context.Context, userID, clientID string, stack *domain.ConversationStack) error {
	return s.setStack(ctx, s.clientKey(userID, clientID), stack)
}

// SetRoamingState stores the stack that follows the user across devices.
func (s *Store) SetRoamingState(ctx context.Context, userID string, stack *domain.ConversationStack) error {
	return s.setStack(ctx, s.roamingKey(userID), stack)
}

func (s *Store) setStack(ctx context.Context, key string, stack *domain.ConversationStack) error {
	data, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// ClearBothStates removes the client and roaming stacks.
func (s *Store) ClearBothStates(ctx context.Context, userID, clientID string) error {
	if err := s.client.Del(ctx, s.clientKey(userID, clientID), s.roamingKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}
