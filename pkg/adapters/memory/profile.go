package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// ProfileStore implements ports.ProfileStore in memory.
// Safe for concurrent use.
type ProfileStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewProfileStore creates an empty profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{data: make(map[string][]byte)}
}

func profileKey(scope domain.ProfileScope, userID, handlerID string) string {
	switch scope {
	case domain.ProfileLocal:
		return "local|" + userID + "|" + handlerID
	case domain.ProfileGlobal:
		return "global|" + userID
	default:
		return "history|" + userID
	}
}

var singleScopes = []domain.ProfileScope{domain.ProfileLocal, domain.ProfileGlobal, domain.ProfileEntityHistory}

// GetProfiles loads the requested collections.
func (p *ProfileStore) GetProfiles(ctx context.Context, scope domain.ProfileScope, userID, handlerID string) (domain.UserProfiles, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := domain.UserProfiles{}.Normalize()
	for _, s := range singleScopes {
		if !scope.Has(s) {
			continue
		}
		data, ok := p.data[profileKey(s, userID, handlerID)]
		if !ok {
			continue
		}
		store := domain.NewDataStore()
		if err := json.Unmarshal(data, store); err != nil {
			return out, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		switch s {
		case domain.ProfileLocal:
			out.Local = store
		case domain.ProfileGlobal:
			out.Global = store
		case domain.ProfileEntityHistory:
			out.EntityHistory = store
		}
	}
	return out, nil
}

// UpdateProfiles writes the requested collections.
func (p *ProfileStore) UpdateProfiles(ctx context.Context, scope domain.ProfileScope, profiles domain.UserProfiles, userID, handlerID string) error {
	profiles = profiles.Normalize()
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range singleScopes {
		if !scope.Has(s) {
			continue
		}
		var store *domain.DataStore
		switch s {
		case domain.ProfileLocal:
			store = profiles.Local
		case domain.ProfileGlobal:
			store = profiles.Global
		case domain.ProfileEntityHistory:
			store = profiles.EntityHistory
		}
		data, err := json.Marshal(store)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		p.data[profileKey(s, userID, handlerID)] = data
	}
	return nil
}
