package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

func (s *Store) profileKey(scope domain.ProfileScope, userID, handlerID string) string {
	switch scope {
	case domain.ProfileLocal:
		return s.prefix + "profile:local:" + userID + ":" + handlerID
	case domain.ProfileGlobal:
		return s.prefix + "profile:global:" + userID
	default:
		return s.prefix + "profile:history:" + userID
	}
}

var singleScopes = []domain.ProfileScope{domain.ProfileLocal, domain.ProfileGlobal, domain.ProfileEntityHistory}

// GetProfiles loads the requested collections in one round trip.
func (s *Store) GetProfiles(ctx context.Context, scope domain.ProfileScope, userID, handlerID string) (domain.UserProfiles, error) {
	out := domain.UserProfiles{}.Normalize()

	pipe := s.client.Pipeline()
	cmds := make(map[domain.ProfileScope]*backend.StringCmd)
	for _, sc := range singleScopes {
		if scope.Has(sc) {
			cmds[sc] = pipe.Get(ctx, s.profileKey(sc, userID, handlerID))
		}
	}
	if len(cmds) == 0 {
		return out, nil
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return out, fmt.Errorf("failed to load profiles: %w", err)
	}

	for sc, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("failed to load profile: %w", err)
		}
		store := domain.NewDataStore()
		if err := json.Unmarshal(data, store); err != nil {
			return out, fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		switch sc {
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
func (s *Store) UpdateProfiles(ctx context.Context, scope domain.ProfileScope, profiles domain.UserProfiles, userID, handlerID string) error {
	profiles = profiles.Normalize()
	pipe := s.client.Pipeline()
	for _, sc := range singleScopes {
		if !scope.Has(sc) {
			continue
		}
		var store *domain.DataStore
		switch sc {
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
		pipe.Set(ctx, s.profileKey(sc, userID, handlerID), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	return nil
}
