package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsphere/internal/storage"
)

func exerciseStore(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "analytics_returning_user")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "analytics_returning_user", "true"))
	v, err := s.Get(ctx, "analytics_returning_user")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Set(ctx, "analytics_returning_user", "false"))
	v, err = s.Get(ctx, "analytics_returning_user")
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	require.NoError(t, s.Delete(ctx, "analytics_returning_user"))
	_, err = s.Get(ctx, "analytics_returning_user")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, storage.NewMemory())
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	require.NoError(t, m.Set(ctx, "analytics_session_id", "sess_1"))
	m.Clear()
	_, err := m.Get(ctx, "analytics_session_id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseStore(t, storage.NewRedis(client, "device-1:", 0))
}

func TestRedisPrefixAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := storage.NewRedisFromURL("redis://"+mr.Addr(), "kiosk:", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Set(context.Background(), "analytics_consent", "false"))
	assert.True(t, mr.Exists("kiosk:analytics_consent"))
	assert.Equal(t, time.Hour, mr.TTL("kiosk:analytics_consent"))

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(context.Background(), "analytics_consent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	_, err := storage.NewRedis(client, "", 0).Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestDatabase(t *testing.T) {
	dsn := fmt.Sprintf("file:storage_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&storage.Entry{}))

	exerciseStore(t, storage.NewDatabase(db, "device-1", nil))

	// Scopes do not see each other's keys.
	ctx := context.Background()
	a := storage.NewDatabase(db, "device-a", nil)
	b := storage.NewDatabase(db, "device-b", nil)
	require.NoError(t, a.Set(ctx, "analytics_returning_user", "true"))
	_, err = b.Get(ctx, "analytics_returning_user")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var s storage.Store = storage.Unavailable{}
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), storage.ErrUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, "k"), storage.ErrUnavailable)
}
