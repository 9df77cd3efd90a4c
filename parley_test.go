package parley_test

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/handlers/disambig"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingYAML = `
id: booking
version: 1.0
domain: booking
start:
  - intent: book
    target: ask_time
    continuation: start
nodes:
  - id: ask_time
    edges:
      - intent: set_time
        target: done
        continuation: confirm
  - id: done
responses:
  start:
    text: "What time?"
    next_turn: locked
    slots:
      party_size: int
    session:
      party: "{{.party_size}}"
  confirm:
    text: "Booked for {{.session.party}} at {{.time}}."
`

var client = domain.ClientContext{UserID: "u1", ClientID: "kitchen"}

func handlerDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "booking.yaml"), []byte(bookingYAML), 0o600))
	return dir
}

func turn(t *testing.T, eng *parley.Engine, h domain.Hypothesis) *domain.TurnResult {
	t.Helper()
	res, err := eng.Process(context.Background(), domain.TurnRequest{
		Client:     client,
		Hypotheses: []domain.Hypothesis{h},
	})
	require.NoError(t, err)
	eng.Wait()
	return res
}

func bookingConversation(t *testing.T, eng *parley.Engine) {
	t.Helper()
	first := turn(t, eng, domain.Hypothesis{
		Domain: "booking", Intent: "book", Confidence: 0.9,
		Slots: []domain.Slot{{Name: "party_size", Value: "4"}},
	})
	assert.Equal(t, domain.ResultSuccess, first.Code)
	assert.Equal(t, "What time?", first.Response.Text)
	assert.Equal(t, domain.TurnContinuesLocked, first.NextTurn.Mode)

	second := turn(t, eng, domain.Hypothesis{
		Domain: "booking", Intent: "set_time", Confidence: 0.9,
		Slots: []domain.Slot{{Name: "time", Value: "8pm"}},
	})
	assert.Equal(t, domain.ResultSuccess, second.Code)
	assert.Equal(t, "Booked for 4 at 8pm.", second.Response.Text)
	assert.False(t, second.NextTurn.Continues())
}

func TestNew_FromDirectory(t *testing.T) {
	ctx := context.Background()
	eng, err := parley.New(ctx, handlerDir(t))
	require.NoError(t, err)
	defer eng.Close(ctx)

	var ids []string
	for _, md := range eng.Handlers() {
		ids = append(ids, md.Identity.ID)
	}
	assert.ElementsMatch(t, []string{"booking", disambig.ID}, ids)

	bookingConversation(t, eng)
}

func TestNew_WithoutDisambiguation(t *testing.T) {
	ctx := context.Background()
	eng, err := parley.New(ctx, handlerDir(t), parley.WithoutDisambiguation())
	require.NoError(t, err)

	require.Len(t, eng.Handlers(), 1)
	assert.Equal(t, "booking", eng.Handlers()[0].Domain)
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := parley.New(ctx, "")
	assert.ErrorContains(t, err, "dir is required")

	_, err = parley.New(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "failed to load handlers")
}

func TestNew_RedisBackedEncryptedState(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := redis.New(mr.Addr(), "", 0, redis.WithTTL(time.Hour))
	defer store.Close()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	require.NoError(t, err)

	eng, err := parley.New(ctx, handlerDir(t),
		parley.WithStateCache(store),
		parley.WithStateMiddleware(encrypt),
		parley.WithProfileStore(store),
		parley.WithCaches(store, store),
		parley.WithLocker(redis.NewLocker(store.Client(), redis.DefaultPrefix), 5*time.Second),
		parley.WithWriteTimeout(time.Second),
	)
	require.NoError(t, err)

	bookingConversation(t, eng)

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "lock:", "turn locks are released")
	}
}
