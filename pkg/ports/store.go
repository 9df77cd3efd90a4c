package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// StateCache persists conversation stacks between turns. Client state is
// per user/device; roaming state follows the user across devices.
type StateCache interface {
	// TryRetrieve returns the client state, falling back to the roaming state.
	// Returns domain.ErrStateNotFound when neither exists.
	TryRetrieve(ctx context.Context, userID, clientID string) (*domain.ConversationStack, error)

	SetClientState(ctx context.Context, userID, clientID string, stack *domain.ConversationStack) error

	SetRoamingState(ctx context.Context, userID string, stack *domain.ConversationStack) error

	// ClearBothStates removes the client and the roaming state.
	ClearBothStates(ctx context.Context, userID, clientID string) error
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	// GetProfiles loads the requested collections. Missing collections come back empty.
	GetProfiles(ctx context.Context, scope domain.ProfileScope, userID, handlerID string) (domain.UserProfiles, error)

	// UpdateProfiles writes the requested collections.
	UpdateProfiles(ctx context.Context, scope domain.ProfileScope, profiles domain.UserProfiles, userID, handlerID string) error
}

// Cache is a keyed store with per-item expiry, used for dialog actions and
// cached web data.
type Cache interface {
	// Store writes a batch. Items without ExpireTime never expire.
	Store(ctx context.Context, items []domain.CachedItem) error

	// Retrieve returns domain.ErrCacheMiss for absent or expired keys.
	Retrieve(ctx context.Context, key string) (domain.CachedItem, error)
}
