package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateCache_Contract(t *testing.T) {
	ports.RunStateCacheContract(t, file.New(t.TempDir()))
}

func stack(d string) *domain.ConversationStack {
	f := domain.NewConversationState(nil)
	f.HandlerID = d
	f.Domain = d
	return domain.NewConversationStack(f)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.SetClientState(ctx, "ana/b", "car:1", stack("music")))
	require.NoError(t, store.SetRoamingState(ctx, "ana/b", stack("weather")))

	assert.FileExists(t, filepath.Join(dir, "ana%2Fb", "clients", "car:1.json"))
	assert.FileExists(t, filepath.Join(dir, "ana%2Fb", "roaming.json"))

	leftovers, err := filepath.Glob(filepath.Join(dir, "ana%2Fb", "clients", "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files are renamed into place")

	users, err := store.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana/b"}, users)
}

func TestFileStore_Errors(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	_, err := store.TryRetrieve(ctx, "", "phone")
	assert.Error(t, err)
	assert.Error(t, store.SetClientState(ctx, "", "phone", stack("x")))
	assert.Error(t, store.SetRoamingState(ctx, "", stack("x")))
	assert.Error(t, store.ClearBothStates(ctx, "", "phone"))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bob", "clients"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob", "clients", "phone.json"), []byte("{"), 0o600))
	_, err = store.TryRetrieve(ctx, "bob", "phone")
	assert.ErrorContains(t, err, "failed to unmarshal stack")
	assert.NotErrorIs(t, err, domain.ErrStateNotFound)
}

func TestFileStore_UsersEmpty(t *testing.T) {
	users, err := file.New(filepath.Join(t.TempDir(), "missing")).Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestNew_DefaultDir(t *testing.T) {
	assert.Equal(t, file.DefaultDir, file.New("").BasePath)
}
