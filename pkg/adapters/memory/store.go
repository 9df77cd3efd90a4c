package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// StateCache implements ports.StateCache in memory.
// Stacks are stored serialized so callers never share frames with the cache.
// Safe for concurrent use.
type StateCache struct {
	mu      sync.RWMutex
	client  map[string][]byte
	roaming map[string][]byte
}

// NewStateCache creates a new in-memory state cache.
func NewStateCache() *StateCache {
	return &StateCache{
		client:  make(map[string][]byte),
		roaming: make(map[string][]byte),
	}
}

func clientKey(userID, clientID string) string {
	return userID + "|" + clientID
}

// TryRetrieve returns the client stack, falling back to the roaming stack.
func (s *StateCache) TryRetrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error) {
	s.mu.RLock()
	data, ok := s.client[clientKey(userID, clientID)]
	if !ok {
		data, ok = s.roaming[userID]
	}
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrStateNotFound
	}

	var stack domain.ConversationStack
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stack: %w", err)
	}
	return &stack, nil
}

// SetClientState stores the stack for one user/device.
func (s *StateCache) SetClientState(ctx context.Context, userID, clientID string, stack *domain.ConversationStack) error {
	data, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client[clientKey(userID, clientID)] = data
	return nil
}

// SetRoamingState stores the stack that follows the user across devices.
func (s *StateCache) SetRoamingState(ctx context.Context, userID string, stack *domain.ConversationStack) error {
	data, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roaming[userID] = data
	return nil
}

// ClearBothStates removes the client and roaming stacks.
func (s *StateCache) ClearBothStates(ctx context.Context, userID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.client, clientKey(userID, clientID))
	delete(s.roaming, userID)
	return nil
}
