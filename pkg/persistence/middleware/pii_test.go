package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStateCache()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	f := domain.NewConversationState(nil)
	f.HandlerID = "account"
	f.Domain = "account"
	require.NoError(t, f.Session.PutString("username", "jdoe"))
	require.NoError(t, f.Session.PutString("user_password", "secret123"))
	f.History = []domain.Hypothesis{{
		Domain: "account",
		Intent: "verify",
		Slots:  []domain.Slot{{Name: "ssn_number", Value: "999-99-9999"}, {Name: "city", Value: "Lisbon"}},
	}}
	stack := domain.NewConversationStack(f)

	require.NoError(t, secure.SetRoamingState(ctx, "ana", stack))

	pw, _ := f.Session.GetString("user_password")
	assert.Equal(t, "secret123", pw, "caller's stack must not be modified")

	stored, err := underlying.TryRetrieve(ctx, "ana", "laptop")
	require.NoError(t, err)
	top := stored.Peek()

	name, _ := top.Session.GetString("username")
	assert.Equal(t, "jdoe", name)
	pw, _ = top.Session.GetString("user_password")
	assert.Equal(t, middleware.Mask, pw)
	assert.Equal(t, middleware.Mask, top.History[0].Slots[0].Value)
	assert.Equal(t, "Lisbon", top.History[0].Slots[1].Value)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_EncryptsMaskedState(t *testing.T) {
	underlying := memory.NewStateCache()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	cache := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, cache.SetClientState(ctx, "ana", "phone", secretStack(t, "hunter2")))

	loaded, err := cache.TryRetrieve(ctx, "ana", "phone")
	require.NoError(t, err)
	v, _ := loaded.Peek().Session.GetString("secret")
	assert.Equal(t, middleware.Mask, v)

	raw, err := underlying.TryRetrieve(ctx, "ana", "phone")
	require.NoError(t, err)
	assert.True(t, raw.Peek().Session.Contains(middleware.EnvelopeKey))
}
