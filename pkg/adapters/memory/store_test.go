package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateCache_Contract(t *testing.T) {
	ports.RunStateCacheContract(t, memory.NewStateCache())
}

func TestMemoryCache_Contract(t *testing.T) {
	ports.RunCacheContract(t, memory.NewCache())
}

func TestMemoryProfileStore_Contract(t *testing.T) {
	ports.RunProfileStoreContract(t, memory.NewProfileStore())
}

type stubHandler struct {
	ports.BaseHandler
	id domain.HandlerIdentity
}

func (s stubHandler) Metadata() ports.HandlerMetadata {
	return ports.HandlerMetadata{Identity: s.id, Domain: s.id.ID}
}

func (s stubHandler) Execute(context.Context, ports.Input, *ports.Services) (*domain.HandlerResult, error) {
	return &domain.HandlerResult{Code: domain.ResultSuccess}, nil
}

func TestProvider(t *testing.T) {
	ctx := context.Background()
	a := domain.HandlerIdentity{ID: "weather", Version: domain.Version{Major: 1}}
	b := domain.HandlerIdentity{ID: "calendar", Version: domain.Version{Major: 2, Minor: 1}}
	p := memory.NewProvider(stubHandler{id: a}, stubHandler{id: b})

	ids, err := p.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerIdentity{b, a}, ids)

	h, err := p.Open(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a, h.Metadata().Identity)

	p.Remove(a)
	_, err = p.Open(ctx, a)
	assert.ErrorIs(t, err, domain.ErrHandlerNotFound)
}

func TestProviders(t *testing.T) {
	ctx := context.Background()
	a := domain.HandlerIdentity{ID: "weather", Version: domain.Version{Major: 1}}
	b := domain.HandlerIdentity{ID: "calendar", Version: domain.Version{Major: 2}}
	first := memory.NewProvider(stubHandler{id: a})
	second := memory.NewProvider(stubHandler{id: a}, stubHandler{id: b})
	ps := memory.Providers{first, second}

	ids, err := ps.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.HandlerIdentity{b, a}, ids)

	h, err := ps.Open(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, b, h.Metadata().Identity)

	_, err = ps.Open(ctx, domain.HandlerIdentity{ID: "music"})
	assert.ErrorIs(t, err, domain.ErrHandlerNotFound)
}
