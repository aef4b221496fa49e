package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsphere/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(sessionStore, longLived storage.Store, clk clock.Clock) *Manager {
	return NewManager(Options{
		SessionStore:   sessionStore,
		LongLivedStore: longLived,
		Clock:          clk,
		Logger:         testLogger(),
	})
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	m := newTestManager(storage.NewMemory(), storage.NewMemory(), clk)

	first := m.GetOrCreate(ctx)
	clk.Add(time.Minute)
	second := m.GetOrCreate(ctx)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.True(t, strings.HasPrefix(first.SessionID, IDPrefix))
	assert.Equal(t, first.StartTime, second.StartTime)
}

func TestNewSessionPersistsState(t *testing.T) {
	ctx := context.Background()
	perSession := storage.NewMemory()
	longLived := storage.NewMemory()
	m := newTestManager(perSession, longLived, clock.NewMock())

	s := m.GetOrCreate(ctx)
	assert.False(t, s.IsReturningUser, "first session on a device is not returning")

	id, err := perSession.Get(ctx, KeySessionID)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, id)

	start, err := perSession.Get(ctx, KeySessionStart)
	require.NoError(t, err)
	parsed, err := time.Parse(time.RFC3339Nano, start)
	require.NoError(t, err)
	assert.True(t, s.StartTime.Equal(parsed))

	views, err := perSession.Get(ctx, KeyPageViews)
	require.NoError(t, err)
	assert.Equal(t, "0", views)

	returning, err := longLived.Get(ctx, KeyReturningUser)
	require.NoError(t, err)
	assert.Equal(t, "true", returning)
}

func TestRehydratesFromSessionStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	perSession := storage.NewMemory()
	longLived := storage.NewMemory()

	first := newTestManager(perSession, longLived, clk)
	original := first.GetOrCreate(ctx)
	first.RecordPageView(ctx)
	first.RecordPageView(ctx)

	// A reload builds a fresh manager over the same stores.
	clk.Add(5 * time.Minute)
	reloaded := newTestManager(perSession, longLived, clk)
	s := reloaded.GetOrCreate(ctx)

	assert.Equal(t, original.SessionID, s.SessionID)
	assert.Equal(t, 2, s.PageViews)
	assert.True(t, s.IsReturningUser)
}

func TestReturningUserAcrossSessions(t *testing.T) {
	ctx := context.Background()
	longLived := storage.NewMemory()

	tab1 := newTestManager(storage.NewMemory(), longLived, clock.NewMock())
	assert.False(t, tab1.GetOrCreate(ctx).IsReturningUser)

	// New browsing session: fresh per-session store, same device.
	for i := 0; i < 3; i++ {
		tab := newTestManager(storage.NewMemory(), longLived, clock.NewMock())
		assert.True(t, tab.GetOrCreate(ctx).IsReturningUser)
	}
}

func TestRecordPageView(t *testing.T) {
	ctx := context.Background()
	perSession := storage.NewMemory()
	m := newTestManager(perSession, storage.NewMemory(), clock.NewMock())

	m.RecordPageView(ctx)
	m.RecordPageView(ctx)
	m.RecordPageView(ctx)

	s, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 3, s.PageViews)

	views, err := perSession.Get(ctx, KeyPageViews)
	require.NoError(t, err)
	assert.Equal(t, "3", views)
}

func TestSessionExpiresAfterInactivity(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	m := NewManager(Options{
		SessionStore:   storage.NewMemory(),
		LongLivedStore: storage.NewMemory(),
		Clock:          clk,
		Timeout:        10 * time.Minute,
		Logger:         testLogger(),
	})

	first := m.GetOrCreate(ctx)
	clk.Add(9 * time.Minute)
	assert.Equal(t, first.SessionID, m.GetOrCreate(ctx).SessionID)

	clk.Add(11 * time.Minute)
	second := m.GetOrCreate(ctx)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.True(t, second.IsReturningUser)
	assert.Zero(t, second.PageViews)
}

func TestExpiredStoredSessionIsNotRehydrated(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	perSession := storage.NewMemory()

	old := newTestManager(perSession, storage.NewMemory(), clk).GetOrCreate(ctx)
	clk.Add(DefaultTimeout + time.Second)

	fresh := newTestManager(perSession, storage.NewMemory(), clk).GetOrCreate(ctx)
	assert.NotEqual(t, old.SessionID, fresh.SessionID)
}

func TestStorageFailureDegradesToMemory(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(storage.Unavailable{}, storage.Unavailable{}, clock.NewMock())

	first := m.GetOrCreate(ctx)
	require.NotEmpty(t, first.SessionID)
	assert.False(t, first.IsReturningUser)

	m.RecordPageView(ctx)
	second := m.GetOrCreate(ctx)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, second.PageViews)
}

func TestEndKeepsReturningFlag(t *testing.T) {
	ctx := context.Background()
	perSession := storage.NewMemory()
	longLived := storage.NewMemory()
	m := newTestManager(perSession, longLived, clock.NewMock())

	first := m.GetOrCreate(ctx)
	m.End(ctx)

	_, ok := m.Snapshot()
	assert.False(t, ok)
	_, err := perSession.Get(ctx, KeySessionID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	second := m.GetOrCreate(ctx)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.True(t, second.IsReturningUser)
}

func TestRecordPageViewRacingEnd(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(storage.NewMemory(), storage.NewMemory(), clock.NewMock())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 200 {
				m.RecordPageView(ctx)
			}
		}()
		go func() {
			defer wg.Done()
			for range 200 {
				m.End(ctx)
			}
		}()
	}
	wg.Wait()

	m.RecordPageView(ctx)
	s, ok := m.Snapshot()
	require.True(t, ok)
	assert.GreaterOrEqual(t, s.PageViews, 1)
}
