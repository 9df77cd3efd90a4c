package cli

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(t *testing.T, app *App) *domain.TurnResult {
	t.Helper()
	res, err := app.Engine.Process(context.Background(), domain.TurnRequest{
		Client: domain.ClientContext{UserID: "u1", ClientID: "c1"},
		Hypotheses: []domain.Hypothesis{{
			Domain: "booking", Intent: "book", Confidence: 0.9,
			Slots: []domain.Slot{{Name: "party_size", Value: "2"}},
		}},
	})
	require.NoError(t, err)
	app.Engine.Wait()
	return res
}

func TestBuild_Memory(t *testing.T) {
	ctx := context.Background()
	_, file := writeHandler(t)
	cfg := config.Default()
	cfg.Handlers.Files = []string{file}

	app, err := Build(ctx, &cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	res := book(t, app)
	assert.Equal(t, "What time?", res.Response.Text)

	require.NotNil(t, app.Metrics)
	w := httptest.NewRecorder()
	app.Metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, w.Body.String(), `parley_turns_total{code="success"} 1`)
}

func TestBuild_MetricsDisabled(t *testing.T) {
	ctx := context.Background()
	dir, _ := writeHandler(t)
	cfg := config.Default()
	cfg.Handlers.Dir = dir
	cfg.Metrics.Enabled = false

	app, err := Build(ctx, &cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Nil(t, app.Metrics)
	assert.Equal(t, "What time?", book(t, app).Response.Text)
}

func TestBuild_File(t *testing.T) {
	ctx := context.Background()
	dir, _ := writeHandler(t)
	stateDir := t.TempDir()

	cfg := config.Default()
	cfg.Handlers.Dir = dir
	cfg.State.Backend = "file"
	cfg.State.File.Dir = stateDir

	app, err := Build(ctx, &cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Equal(t, "What time?", book(t, app).Response.Text)
	assert.FileExists(t, filepath.Join(stateDir, "u1", "clients", "c1.json"))
}

func TestBuild_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	dir, _ := writeHandler(t)

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Handlers.Dir = dir
	cfg.State.Backend = "redis"
	cfg.State.Redis.Addr = mr.Addr()
	cfg.State.Redis.Prefix = "test:"
	cfg.State.Encryption.Key = base64.StdEncoding.EncodeToString(key)
	cfg.State.PIIPatterns = []string{`\d{3}-\d{4}`}

	app, err := Build(ctx, &cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	assert.Equal(t, "What time?", book(t, app).Response.Text)
	assert.NotEmpty(t, mr.Keys())
	for _, k := range mr.Keys() {
		assert.Regexp(t, `^test:`, k)
	}
}

func TestBuild_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Handlers.Files = []string{"missing.yaml"}
	_, err := Build(ctx, &cfg, logging.NewNop())
	assert.ErrorContains(t, err, "failed to load handlers")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	dir, _ := writeHandler(t)
	cfg = config.Default()
	cfg.Handlers.Dir = dir
	cfg.State.Backend = "redis"
	cfg.State.Redis.Addr = addr
	_, err = Build(ctx, &cfg, logging.NewNop())
	assert.ErrorContains(t, err, "failed to reach redis")
}
