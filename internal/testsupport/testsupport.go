package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsphere/internal"
	"shopsphere/internal/config"
	"shopsphere/internal/database"
	"shopsphere/internal/events"
	"shopsphere/internal/pkg/ids"
	"shopsphere/internal/session"
	"shopsphere/internal/tracking"
)

// testDBCache caches test databases by root test name so setup helpers called
// from subtests share one database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a migrated named in-memory database. cache=shared lets
// several connections see the same data within a test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	t.Setenv("SHOPSPHERE_ENV", config.Test)
	config.Reset()
	t.Cleanup(config.Reset)

	if cfg := config.GetConfig(); cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a Fiber app with all routes mounted on db.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()

	cfg := internal.NewServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

// TestSession returns a session as the storefront would report it.
func TestSession(returning bool) session.Session {
	start := time.Now().UTC()
	return session.Session{
		SessionID:       ids.New(session.IDPrefix, start),
		StartTime:       start,
		PageViews:       1,
		IsReturningUser: returning,
	}
}

// EventOption customises an event built by NewEvent.
type EventOption func(*tracking.EnrichedEvent)

func WithProduct(productID, name string) EventOption {
	return func(e *tracking.EnrichedEvent) {
		e.ProductID = productID
		e.Metadata[tracking.MetaProductName] = name
	}
}

func WithCategory(categoryID, name string) EventOption {
	return func(e *tracking.EnrichedEvent) {
		e.CategoryID = categoryID
		e.Metadata[tracking.MetaCategoryName] = name
	}
}

func WithMeta(key string, value any) EventOption {
	return func(e *tracking.EnrichedEvent) { e.Metadata[key] = value }
}

func At(ts time.Time) EventOption {
	return func(e *tracking.EnrichedEvent) {
		e.Timestamp = ts
		e.EventID = ids.New(tracking.EventIDPrefix, ts)
	}
}

func WithDevice(deviceType, browser string) EventOption {
	return func(e *tracking.EnrichedEvent) {
		e.DeviceType = deviceType
		e.BrowserName = browser
	}
}

func WithSource(source string) EventOption {
	return func(e *tracking.EnrichedEvent) { e.TrafficSource = source }
}

func WithReferrer(referrer string) EventOption {
	return func(e *tracking.EnrichedEvent) { e.Referrer = referrer }
}

// NewEvent builds a valid enriched event of the given type.
func NewEvent(typ tracking.EventType, opts ...EventOption) tracking.EnrichedEvent {
	now := time.Now().UTC()
	e := tracking.EnrichedEvent{
		Event: tracking.Event{
			Type:      typ,
			Metadata:  tracking.Metadata{},
			Timestamp: now,
		},
		EventID:          ids.New(tracking.EventIDPrefix, now),
		PageURL:          "https://shop.example.com/",
		DeviceType:       "desktop",
		BrowserName:      "Chrome",
		BrowserVersion:   "120.0",
		ScreenResolution: "1920x1080",
		TrafficSource:    "direct",
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// StoreEvents collects events for info and fails the test on error.
func StoreEvents(t *testing.T, dbManager cartridge.DBManager, info session.Session, evts ...tracking.EnrichedEvent) {
	t.Helper()
	_, err := events.Collect(dbManager, GetLogger(), nil, events.CollectInput{Events: evts, Session: info})
	require.NoError(t, err)
}
