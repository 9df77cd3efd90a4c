package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretStack(t *testing.T, value string) *domain.ConversationStack {
	t.Helper()
	f := domain.NewConversationState(nil)
	f.HandlerID = "banking"
	f.HandlerVersion = domain.Version{Major: 1}
	f.Domain = "banking"
	f.TurnNum = 1
	require.NoError(t, f.Session.PutString("secret", value))
	return domain.NewConversationStack(f)
}

func encrypted(t *testing.T, next ports.StateCache, cfg middleware.EncryptionConfig) ports.StateCache {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunStateCacheContract(t, encrypted(t, memory.NewStateCache(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStateCache()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	require.NoError(t, secure.SetClientState(ctx, "ana", "phone", secretStack(t, "my-secret-sauce")))

	stored, err := underlying.TryRetrieve(ctx, "ana", "phone")
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	top := stored.Peek()
	assert.Empty(t, top.HandlerID, "envelope must not reveal the handler")
	assert.False(t, top.Session.Contains("secret"))
	assert.True(t, top.Session.Contains(middleware.EnvelopeKey))

	loaded, err := secure.TryRetrieve(ctx, "ana", "phone")
	require.NoError(t, err)
	assert.Equal(t, "banking", loaded.Peek().HandlerID)
	v, _ := loaded.Peek().Session.GetString("secret")
	assert.Equal(t, "my-secret-sauce", v)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStateCache()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	secureOld := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, secureOld.SetClientState(ctx, "ana", "phone", secretStack(t, "old")))

	secureNew := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := secureNew.TryRetrieve(ctx, "ana", "phone")
	require.NoError(t, err)
	v, _ := loaded.Peek().Session.GetString("secret")
	assert.Equal(t, "old", v)

	require.NoError(t, secureNew.SetClientState(ctx, "ana", "phone", secretStack(t, "new")))
	_, err = secureOld.TryRetrieve(ctx, "ana", "phone")
	assert.Error(t, err, "old key alone cannot read data sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainState(t *testing.T) {
	underlying := memory.NewStateCache()
	ctx := context.Background()
	require.NoError(t, underlying.SetClientState(ctx, "ana", "phone", secretStack(t, "plain")))

	_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).TryRetrieve(ctx, "ana", "phone")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}
