package v1_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	v1 "shopsphere/api/v1"
	"shopsphere/internal/analytics"
	"shopsphere/internal/events"
	"shopsphere/internal/session"
	"shopsphere/internal/testsupport"
	"shopsphere/internal/tracking"
	"shopsphere/internal/transport"
)

type collectResponse struct {
	Success    bool `json:"success"`
	Stored     int  `json:"stored"`
	Duplicates int  `json:"duplicates"`
	Rejected   int  `json:"rejected"`
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB, *testsupport.TestDBManager) {
	t.Helper()
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	return testsupport.CreateMinimalTestApp(t, db), db, dbManager
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			reader = bytes.NewReader(b)
		default:
			payload, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func eventCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	n, err := events.CountEvents(db)
	require.NoError(t, err)
	return n
}

func TestTrackEventHandler(t *testing.T) {
	app, db, _ := setupApp(t)
	info := testsupport.TestSession(false)
	purchase := testsupport.NewEvent(tracking.EventPurchase,
		testsupport.WithProduct("p1", "Mug"),
		testsupport.WithMeta(tracking.MetaOrderID, "o-1"),
		testsupport.WithMeta(tracking.MetaRevenue, 14.5))

	resp, body := do(t, app, fiber.MethodPost, transport.PathTrack, tracking.TrackRequest{Event: purchase, SessionInfo: info})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var result collectResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stored)

	var stored events.Event
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, info.SessionID, stored.SessionID)
	assert.Equal(t, "o-1", stored.OrderID)
	assert.InDelta(t, 14.5, stored.Revenue, 0.001)
}

func TestBatchTrackDeduplicatesRedelivery(t *testing.T) {
	app, db, _ := setupApp(t)
	req := tracking.BatchRequest{
		Events: []tracking.EnrichedEvent{
			testsupport.NewEvent(tracking.EventProductClick, testsupport.WithProduct("p1", "Mug")),
			testsupport.NewEvent(tracking.EventAddToCart, testsupport.WithProduct("p1", "Mug")),
		},
		SessionInfo: testsupport.TestSession(false),
	}

	resp, body := do(t, app, fiber.MethodPost, transport.PathBatchTrack, req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	resp, body = do(t, app, fiber.MethodPost, transport.PathBatchTrack, req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var result collectResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Zero(t, result.Stored)
	assert.Equal(t, 2, result.Duplicates)

	assert.Equal(t, int64(2), eventCount(t, db))
}

func TestBatchTrackRejectsInvalidEventsIndividually(t *testing.T) {
	app, db, _ := setupApp(t)
	bad := testsupport.NewEvent(tracking.EventSearch)
	bad.EventID = ""

	resp, body := do(t, app, fiber.MethodPost, transport.PathBatchTrack, tracking.BatchRequest{
		Events:      []tracking.EnrichedEvent{bad, testsupport.NewEvent(tracking.EventSearch)},
		SessionInfo: testsupport.TestSession(false),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result collectResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, int64(1), eventCount(t, db))
}

func TestCollectorRejectsBadRequests(t *testing.T) {
	app, db, _ := setupApp(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"malformed json", transport.PathBatchTrack, []byte(`{"events": [`), http.StatusBadRequest},
		{"missing session", transport.PathTrack, tracking.TrackRequest{Event: testsupport.NewEvent(tracking.EventSearch)}, http.StatusBadRequest},
		{"batch without session", transport.PathBatchTrack, tracking.BatchRequest{Events: []tracking.EnrichedEvent{testsupport.NewEvent(tracking.EventSearch)}, SessionInfo: session.Session{}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, app, fiber.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Zero(t, eventCount(t, db))
}

func TestBatchTrackTooLarge(t *testing.T) {
	app, db, _ := setupApp(t)
	evts := make([]tracking.EnrichedEvent, v1.MaxBatchEvents+1)
	for i := range evts {
		evts[i] = testsupport.NewEvent(tracking.EventSearch)
	}

	resp, body := do(t, app, fiber.MethodPost, transport.PathBatchTrack, tracking.BatchRequest{
		Events:      evts,
		SessionInfo: testsupport.TestSession(false),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, string(body), "BATCH_TOO_LARGE")
	assert.Zero(t, eventCount(t, db))
}

func TestBeaconAlwaysAccepts(t *testing.T) {
	app, db, _ := setupApp(t)

	resp, _ := do(t, app, fiber.MethodPost, transport.PathBeacon, []byte("garbage"))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = do(t, app, fiber.MethodPost, transport.PathBeacon, tracking.BatchRequest{
		Events: []tracking.EnrichedEvent{testsupport.NewEvent(tracking.EventPageTime,
			testsupport.WithMeta(tracking.MetaTimeSpent, 12))},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, "missing session is still 202")
	assert.Zero(t, eventCount(t, db))

	resp, _ = do(t, app, fiber.MethodPost, transport.PathBeacon, tracking.BatchRequest{
		Events:      []tracking.EnrichedEvent{testsupport.NewEvent(tracking.EventPageTime)},
		SessionInfo: testsupport.TestSession(true),
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int64(1), eventCount(t, db))
}

func TestPreflight(t *testing.T) {
	app, _, _ := setupApp(t)
	req := httptest.NewRequest(fiber.MethodOptions, transport.PathBatchTrack, nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProductPerformanceHandler(t *testing.T) {
	app, _, dbManager := setupApp(t)
	info := testsupport.TestSession(false)
	testsupport.StoreEvents(t, dbManager, info,
		testsupport.NewEvent(tracking.EventProductClick, testsupport.WithProduct("p1", "Mug")),
		testsupport.NewEvent(tracking.EventProductClick, testsupport.WithProduct("p1", "Mug")),
		testsupport.NewEvent(tracking.EventPurchase, testsupport.WithProduct("p1", "Mug"),
			testsupport.WithMeta(tracking.MetaOrderID, "o-1"),
			testsupport.WithMeta(tracking.MetaRevenue, 29.0)),
	)

	resp, body := do(t, app, fiber.MethodGet, transport.PathAdminProducts, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var rows []analytics.ProductPerformance
	require.NoError(t, json.Unmarshal(body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ProductID)
	assert.Equal(t, int64(2), rows[0].Clicks)
	assert.Equal(t, int64(1), rows[0].Purchases)
	assert.InDelta(t, 29.0, rows[0].Revenue, 0.001)
	assert.InDelta(t, 50.0, rows[0].ConversionRate, 0.001)
}

func TestAdminRejectsInvalidDates(t *testing.T) {
	app, _, _ := setupApp(t)
	for _, path := range []string{
		transport.PathAdminProducts + "?startDate=yesterday",
		transport.PathAdminCategory + "?endDate=2024-13-01",
		transport.PathAdminOrders + "?tz=Mars/Olympus",
		transport.PathAdminTraffic + "?startDate=01/05/2024",
		transport.PathAdminLog + "?startDate=nope",
	} {
		resp, _ := do(t, app, fiber.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestOrderAnalyticsHandler(t *testing.T) {
	app, _, dbManager := setupApp(t)
	info := testsupport.TestSession(false)
	testsupport.StoreEvents(t, dbManager, info,
		testsupport.NewEvent(tracking.EventCheckoutStart, testsupport.WithMeta(tracking.MetaCartValue, 40.0)),
		testsupport.NewEvent(tracking.EventCheckoutStart, testsupport.WithMeta(tracking.MetaCartValue, 20.0)),
		testsupport.NewEvent(tracking.EventCheckoutComplete,
			testsupport.WithMeta(tracking.MetaOrderID, "o-1"),
			testsupport.WithMeta(tracking.MetaRevenue, 40.0)),
	)

	resp, body := do(t, app, fiber.MethodGet, transport.PathAdminOrders, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var report analytics.OrderAnalytics
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, int64(2), report.Metrics.CheckoutStarts)
	assert.Equal(t, int64(1), report.Metrics.CheckoutCompletes)
	assert.InDelta(t, 50.0, report.Metrics.CheckoutConversionRate, 0.001)
	assert.NotEmpty(t, report.DailyTrends)
}

func TestTrafficBreakdownHandler(t *testing.T) {
	app, _, dbManager := setupApp(t)
	testsupport.StoreEvents(t, dbManager, testsupport.TestSession(false),
		testsupport.NewEvent(tracking.EventPageTime, testsupport.WithDevice("mobile", "Safari"), testsupport.WithSource("search")))
	testsupport.StoreEvents(t, dbManager, testsupport.TestSession(false),
		testsupport.NewEvent(tracking.EventPageTime, testsupport.WithDevice("desktop", "Chrome")))

	resp, body := do(t, app, fiber.MethodGet, transport.PathAdminTraffic, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var report analytics.TrafficBreakdown
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Len(t, report.Devices, 2)
	assert.Len(t, report.Sources, 2)
	assert.Contains(t, string(body), `"trafficSources"`)
	assert.Contains(t, string(body), `"referrers"`)
	require.Len(t, report.Countries, 1)
	assert.Equal(t, events.UnknownCountry, report.Countries[0].Name)
}

func TestUserInteractionsPagination(t *testing.T) {
	app, _, dbManager := setupApp(t)
	info := testsupport.TestSession(false)
	base := time.Now().Add(-time.Hour)
	testsupport.StoreEvents(t, dbManager, info,
		testsupport.NewEvent(tracking.EventAddToCart, testsupport.WithProduct("p1", "Mug"), testsupport.At(base)),
		testsupport.NewEvent(tracking.EventAddToCart, testsupport.WithProduct("p2", "Lamp"), testsupport.At(base.Add(time.Minute))),
		testsupport.NewEvent(tracking.EventAddToCart, testsupport.WithProduct("p1", "Mug"), testsupport.At(base.Add(2*time.Minute))),
		testsupport.NewEvent(tracking.EventSearch, testsupport.At(base.Add(3*time.Minute))),
	)

	resp, body := do(t, app, fiber.MethodGet, transport.PathAdminLog+"?eventType=add_to_cart&limit=2&page=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var page analytics.InteractionPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Interactions, 2)

	_, body = do(t, app, fiber.MethodGet, transport.PathAdminLog+"?productId=p1", nil)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 50, page.Limit, "default limit")

	_, body = do(t, app, fiber.MethodGet, transport.PathAdminLog+"?limit=100000&page=-3", nil)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 500, page.Limit)
	assert.Equal(t, 1, page.Page)
}

func TestClearDataHandler(t *testing.T) {
	app, db, dbManager := setupApp(t)
	testsupport.StoreEvents(t, dbManager, testsupport.TestSession(false),
		testsupport.NewEvent(tracking.EventSearch),
		testsupport.NewEvent(tracking.EventSearch))

	resp, body := do(t, app, fiber.MethodDelete, transport.PathAdminClear, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result struct {
		Success bool  `json:"success"`
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Success)
	assert.Equal(t, int64(2), result.Deleted)
	assert.Zero(t, eventCount(t, db))
}

func TestGenerateSampleDataHandler(t *testing.T) {
	app, db, _ := setupApp(t)

	resp, body := do(t, app, fiber.MethodPost, transport.PathAdminSample, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var result struct {
		Sessions int `json:"sessions"`
		Events   int `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Positive(t, result.Sessions)
	assert.Equal(t, int64(result.Events), eventCount(t, db))

	resp, body = do(t, app, fiber.MethodGet, transport.PathAdminCategory, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var categories []analytics.CategoryAnalytics
	require.NoError(t, json.Unmarshal(body, &categories))
	assert.NotEmpty(t, categories)
}

func TestHealthAndMetrics(t *testing.T) {
	app, _, _ := setupApp(t)

	resp, body := do(t, app, fiber.MethodGet, "/_health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health v1.HealthStatus
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.DBStatus)

	do(t, app, fiber.MethodPost, transport.PathBatchTrack, tracking.BatchRequest{
		Events:      []tracking.EnrichedEvent{testsupport.NewEvent(tracking.EventSearch)},
		SessionInfo: testsupport.TestSession(false),
	})
	resp, body = do(t, app, fiber.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "shopsphere_ingest_events_total")
}
