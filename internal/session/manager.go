package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"shopsphere/internal/environment"
	"shopsphere/internal/pkg/ids"
	"shopsphere/internal/storage"
)

// Options configures a Manager. Nil stores fall back to memory.
type Options struct {
	SessionStore   storage.Store
	LongLivedStore storage.Store
	Device         environment.DeviceInfo
	Timeout        time.Duration
	Clock          clock.Clock
	Logger         *slog.Logger
}

// Manager owns one session record. Storage failures switch the affected
// store to memory for the rest of the Manager's life; callers never see them.
type Manager struct {
	mu           sync.Mutex
	sessionStore storage.Store
	longLived    storage.Store
	device       environment.DeviceInfo
	timeout      time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	current      *Session
	lastActivity time.Time
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		sessionStore: opts.SessionStore,
		longLived:    opts.LongLivedStore,
		device:       opts.Device,
		timeout:      opts.Timeout,
		clock:        opts.Clock,
		logger:       opts.Logger,
	}
	if m.sessionStore == nil {
		m.sessionStore = storage.NewMemory()
	}
	if m.longLived == nil {
		m.longLived = storage.NewMemory()
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// GetOrCreate returns the active session, rehydrating it from the per-session
// store or starting a new one. Repeated calls within the timeout return the
// same session id.
func (m *Manager) GetOrCreate(ctx context.Context) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.getOrCreateLocked(ctx)
}

func (m *Manager) getOrCreateLocked(ctx context.Context) *Session {
	now := m.clock.Now()
	if m.current != nil && !m.expired(now) {
		m.lastActivity = now
		return m.current
	}

	if m.current == nil {
		if s, ok := m.rehydrate(ctx, now); ok {
			m.current = &s
			m.lastActivity = now
			return m.current
		}
	}

	s := m.create(ctx, now)
	m.current = &s
	m.lastActivity = now
	return m.current
}

// RecordPageView increments and persists the page-view counter. Call it once
// per navigation.
func (m *Manager) RecordPageView(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.getOrCreateLocked(ctx)
	current.PageViews++
	m.write(ctx, KeyPageViews, strconv.Itoa(current.PageViews))
	m.write(ctx, KeyLastActivity, m.lastActivity.UTC().Format(time.RFC3339Nano))
}

// Snapshot returns the current session without creating one.
func (m *Manager) Snapshot() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// End drops the in-memory session and clears the per-session keys; the
// returning-user flag is kept.
func (m *Manager) End(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	for _, key := range []string{KeySessionID, KeySessionStart, KeyPageViews, KeyLastActivity} {
		if err := m.sessionStore.Delete(ctx, key); err != nil {
			m.degradeSessionStore(err)
		}
	}
}

func (m *Manager) expired(now time.Time) bool {
	return !m.lastActivity.IsZero() && now.Sub(m.lastActivity) > m.timeout
}

func (m *Manager) rehydrate(ctx context.Context, now time.Time) (Session, bool) {
	id, ok := m.read(ctx, KeySessionID)
	if !ok || id == "" {
		return Session{}, false
	}
	startRaw, ok := m.read(ctx, KeySessionStart)
	if !ok {
		return Session{}, false
	}
	start, err := time.Parse(time.RFC3339Nano, startRaw)
	if err != nil {
		m.logger.Debug("Discarding stored session with bad start time", slog.String("value", startRaw))
		return Session{}, false
	}

	last := start
	if raw, ok := m.read(ctx, KeyLastActivity); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			last = t
		}
	}
	if now.Sub(last) > m.timeout {
		m.logger.Debug("Stored session expired", slog.String("session_id", id))
		return Session{}, false
	}

	pageViews := 0
	if raw, ok := m.read(ctx, KeyPageViews); ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			pageViews = n
		}
	}

	return Session{
		SessionID:       id,
		StartTime:       start,
		PageViews:       pageViews,
		IsReturningUser: m.readReturning(ctx),
		DeviceInfo:      m.device,
	}, true
}

func (m *Manager) create(ctx context.Context, now time.Time) Session {
	s := Session{
		SessionID:       ids.New(IDPrefix, now),
		StartTime:       now.UTC(),
		IsReturningUser: m.readReturning(ctx),
		DeviceInfo:      m.device,
	}

	m.write(ctx, KeySessionID, s.SessionID)
	m.write(ctx, KeySessionStart, s.StartTime.Format(time.RFC3339Nano))
	m.write(ctx, KeyPageViews, "0")
	m.write(ctx, KeyLastActivity, now.UTC().Format(time.RFC3339Nano))

	if err := m.longLived.Set(ctx, KeyReturningUser, "true"); err != nil {
		m.degradeLongLived(err)
		_ = m.longLived.Set(ctx, KeyReturningUser, "true")
	}

	m.logger.Debug("Started session",
		slog.String("session_id", s.SessionID),
		slog.Bool("returning", s.IsReturningUser))
	return s
}

func (m *Manager) readReturning(ctx context.Context) bool {
	v, err := m.longLived.Get(ctx, KeyReturningUser)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.degradeLongLived(err)
		}
		return false
	}
	return v == "true"
}

func (m *Manager) read(ctx context.Context, key string) (string, bool) {
	v, err := m.sessionStore.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.degradeSessionStore(err)
		}
		return "", false
	}
	return v, true
}

func (m *Manager) write(ctx context.Context, key, value string) {
	if err := m.sessionStore.Set(ctx, key, value); err != nil {
		m.degradeSessionStore(err)
		_ = m.sessionStore.Set(ctx, key, value)
	}
}

func (m *Manager) degradeSessionStore(err error) {
	if _, ok := m.sessionStore.(*storage.Memory); ok {
		return
	}
	m.logger.Warn("Session storage unavailable, continuing in memory", slog.Any("error", err))
	m.sessionStore = storage.NewMemory()
}

func (m *Manager) degradeLongLived(err error) {
	if _, ok := m.longLived.(*storage.Memory); ok {
		return
	}
	m.logger.Warn("Long-lived storage unavailable, continuing in memory", slog.Any("error", err))
	m.longLived = storage.NewMemory()
}
