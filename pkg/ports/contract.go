package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractStack(domainName string, turn int) *domain.ConversationStack {
	f := domain.NewConversationState(nil)
	f.HandlerID = domainName
	f.HandlerVersion = domain.Version{Major: 1, Minor: 0}
	f.Domain = domainName
	f.TurnNum = turn
	f.LastBehavior = domain.BehaviorLocked
	_ = f.Session.PutString("foo", "bar")
	return domain.NewConversationStack(f)
}

// RunStateCacheContract runs a suite of tests to verify that a StateCache
// implementation adheres to the defined interface contract.
func RunStateCacheContract(t *testing.T, cache StateCache) {
	ctx := context.Background()
	user := "contract-user-" + time.Now().Format("20060102150405")

	t.Run("Client state round trip", func(t *testing.T) {
		require.NoError(t, cache.SetClientState(ctx, user, "phone", contractStack("calendar", 2)))

		got, err := cache.TryRetrieve(ctx, user, "phone")
		require.NoError(t, err)
		require.Equal(t, 1, got.Len())
		top := got.Peek()
		assert.Equal(t, "calendar", top.Domain)
		assert.Equal(t, 2, top.TurnNum)
		v, ok := top.Session.GetString("foo")
		assert.True(t, ok)
		assert.Equal(t, "bar", v)
	})

	t.Run("Retrieve Non-Existent", func(t *testing.T) {
		_, err := cache.TryRetrieve(ctx, "non-existent-"+user, "phone")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Roaming fallback", func(t *testing.T) {
		require.NoError(t, cache.SetRoamingState(ctx, user, contractStack("weather", 1)))

		got, err := cache.TryRetrieve(ctx, user, "laptop")
		require.NoError(t, err)
		assert.Equal(t, "weather", got.Peek().Domain)

		got, err = cache.TryRetrieve(ctx, user, "phone")
		require.NoError(t, err)
		assert.Equal(t, "calendar", got.Peek().Domain, "client state wins over roaming state")
	})

	t.Run("Clear both", func(t *testing.T) {
		require.NoError(t, cache.ClearBothStates(ctx, user, "phone"))

		_, err := cache.TryRetrieve(ctx, user, "phone")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
		_, err = cache.TryRetrieve(ctx, user, "laptop")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Stored stacks are isolated from callers", func(t *testing.T) {
		stack := contractStack("timer", 1)
		require.NoError(t, cache.SetClientState(ctx, user, "watch", stack))
		stack.Peek().Domain = "mutated"

		got, err := cache.TryRetrieve(ctx, user, "watch")
		require.NoError(t, err)
		assert.Equal(t, "timer", got.Peek().Domain)
		_ = cache.ClearBothStates(ctx, user, "watch")
	})
}

// RunCacheContract verifies a keyed Cache implementation.
func RunCacheContract(t *testing.T, cache Cache) {
	ctx := context.Background()

	t.Run("Store and Retrieve", func(t *testing.T) {
		err := cache.Store(ctx, []domain.CachedItem{
			{Key: "a", Value: []byte("alpha")},
			{Key: "b", Value: []byte("beta"), ExpireTime: time.Now().Add(time.Hour)},
		})
		require.NoError(t, err)

		got, err := cache.Retrieve(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("alpha"), got.Value)

		got, err = cache.Retrieve(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []byte("beta"), got.Value)
	})

	t.Run("Miss", func(t *testing.T) {
		_, err := cache.Retrieve(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Already expired", func(t *testing.T) {
		err := cache.Store(ctx, []domain.CachedItem{{Key: "old", Value: []byte("x"), ExpireTime: time.Now().Add(-time.Minute)}})
		require.NoError(t, err)
		_, err = cache.Retrieve(ctx, "old")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})
}

// RunProfileStoreContract verifies a ProfileStore implementation.
func RunProfileStoreContract(t *testing.T, store ProfileStore) {
	ctx := context.Background()
	user := "profile-user-" + time.Now().Format("20060102150405")

	t.Run("Empty profiles", func(t *testing.T) {
		p, err := store.GetProfiles(ctx, domain.ProfileAll, user, "weather")
		require.NoError(t, err)
		require.NotNil(t, p.Local)
		require.NotNil(t, p.Global)
		require.NotNil(t, p.EntityHistory)
		assert.Equal(t, 0, p.Local.Len())
	})

	t.Run("Update selected scopes", func(t *testing.T) {
		p := domain.UserProfiles{}.Normalize()
		require.NoError(t, p.Local.PutString("units", "metric"))
		require.NoError(t, p.Global.PutString("name", "Ana"))

		require.NoError(t, store.UpdateProfiles(ctx, domain.ProfileLocal, p, user, "weather"))

		got, err := store.GetProfiles(ctx, domain.ProfileAll, user, "weather")
		require.NoError(t, err)
		v, ok := got.Local.GetString("units")
		assert.True(t, ok)
		assert.Equal(t, "metric", v)
		assert.False(t, got.Global.Contains("name"), "global scope was not requested")

		other, err := store.GetProfiles(ctx, domain.ProfileLocal, user, "calendar")
		require.NoError(t, err)
		assert.False(t, other.Local.Contains("units"), "local profiles are per handler")
	})
}
