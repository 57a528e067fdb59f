package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// exerciseStore runs the read/write/clear lifecycle every writable backend must honor.
func exerciseStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Read(ctx)
	require.ErrorIs(t, err, ErrTokenNotFound, "empty store")

	require.NoError(t, store.Write(ctx, "abc123"))
	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)

	require.NoError(t, store.Write(ctx, "new456"))
	got, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new456", got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Read(ctx)
	require.ErrorIs(t, err, ErrTokenNotFound, "after clear")

	require.NoError(t, store.Clear(ctx), "clear must be idempotent")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(""))
}

func TestMemoryStoreSeeded(t *testing.T) {
	store := NewMemoryStore("seed")
	got, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seed", got)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Write(context.Background(), "abc123"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, os.Chmod(path, 0644))
	_, err = store.Read(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTokenNotFound), "insecure file must not look like a missing token")
}

func TestFileStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestFileStoreCancelledContext(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, store.Write(ctx, "abc123"), context.Canceled)
}

func TestEnvStore(t *testing.T) {
	t.Setenv("BACKOFFICE_TEST_TOKEN", "static-token")

	store, err := NewEnvStore("BACKOFFICE_TEST_TOKEN")
	require.NoError(t, err)

	got, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-token", got)

	require.ErrorIs(t, store.Write(context.Background(), "other"), ErrReadOnly)
	require.ErrorIs(t, store.Clear(context.Background()), ErrReadOnly)

	t.Setenv("BACKOFFICE_TEST_TOKEN", "")
	_, err = store.Read(context.Background())
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, err = NewEnvStore("")
	require.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore("backoffice-test", "alice")
	require.NoError(t, err)

	exerciseStore(t, store)

	_, err = NewKeyringStore("", "alice")
	require.Error(t, err)
	_, err = NewKeyringStore("backoffice-test", "")
	require.Error(t, err)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisStore(t *testing.T) {
	_, rdb := newTestRedis(t)

	store, err := NewRedisStore(rdb, "backoffice", 0)
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)

	store, err := NewRedisStore(rdb, "backoffice", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), "abc123"))

	assert.Equal(t, time.Minute, mr.TTL("backoffice:accessToken"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Read(context.Background())
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRedisStoreValidation(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := NewRedisStore(nil, "backoffice", 0)
	require.Error(t, err)
	_, err = NewRedisStore(rdb, "", 0)
	require.Error(t, err)
	_, err = NewRedisStore(rdb, "backoffice", -time.Second)
	require.Error(t, err)
}
