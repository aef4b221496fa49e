package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsphere/internal/session"
	"shopsphere/internal/tracking"
	"shopsphere/internal/transport"
)

type recorded struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

type collector struct {
	mu       sync.Mutex
	requests []recorded
	status   atomic.Int32
	reply    []byte
}

func newCollector(t *testing.T) (*collector, *httptest.Server) {
	t.Helper()
	c := &collector{}
	c.status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), body: body})
		reply := c.reply
		c.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(c.status.Load()))
		if reply != nil {
			_, _ = w.Write(reply)
		} else {
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	return c, srv
}

func (c *collector) last() recorded {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func testSession() session.Session {
	return session.Session{
		SessionID: "sess_01HZX",
		StartTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		PageViews: 2,
	}
}

func testEvent(typ tracking.EventType, productID string) tracking.EnrichedEvent {
	return tracking.EnrichedEvent{
		Event: tracking.Event{
			Type:      typ,
			ProductID: productID,
			Metadata:  tracking.Metadata{},
			Timestamp: time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC),
		},
		EventID: "evt_" + productID,
		PageURL: "https://shop.example.com/p/" + productID,
	}
}

func TestSendBatchPostsEventsWithSession(t *testing.T) {
	coll, srv := newCollector(t)
	client := transport.New(transport.Options{Endpoint: srv.URL + "/"})

	events := []tracking.EnrichedEvent{
		testEvent(tracking.EventProductClick, "p1"),
		testEvent(tracking.EventAddToCart, "p2"),
	}
	require.NoError(t, client.SendBatch(context.Background(), events, testSession()))

	req := coll.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, transport.PathBatchTrack, req.path)

	var body tracking.BatchRequest
	require.NoError(t, json.Unmarshal(req.body, &body))
	require.Len(t, body.Events, 2)
	assert.Equal(t, "evt_p1", body.Events[0].EventID)
	assert.Equal(t, tracking.EventAddToCart, body.Events[1].Type)
	assert.Equal(t, "sess_01HZX", body.SessionInfo.SessionID)
	assert.Equal(t, 2, body.SessionInfo.PageViews)
}

func TestSendEventUsesSingleEventPath(t *testing.T) {
	coll, srv := newCollector(t)
	client := transport.New(transport.Options{Endpoint: srv.URL})

	require.NoError(t, client.SendEvent(context.Background(), testEvent(tracking.EventPurchase, "p9"), testSession()))

	req := coll.last()
	assert.Equal(t, transport.PathTrack, req.path)
	var body tracking.TrackRequest
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.Equal(t, tracking.EventPurchase, body.Event.Type)
	assert.Equal(t, "p9", body.Event.ProductID)
}

func TestNon2xxIsUnexpectedStatus(t *testing.T) {
	coll, srv := newCollector(t)
	coll.status.Store(http.StatusInternalServerError)
	coll.reply = []byte(`{"error":"boom"}`)
	client := transport.New(transport.Options{Endpoint: srv.URL})

	err := client.SendBatch(context.Background(), []tracking.EnrichedEvent{testEvent(tracking.EventSearch, "")}, testSession())
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)

	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Contains(t, statusErr.Body, "boom")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	coll, srv := newCollector(t)
	coll.status.Store(http.StatusServiceUnavailable)
	client := transport.New(transport.Options{
		Endpoint:         srv.URL,
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})
	ctx := context.Background()
	batch := []tracking.EnrichedEvent{testEvent(tracking.EventSearch, "")}

	for range 3 {
		err := client.SendBatch(ctx, batch, testSession())
		assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)
	}
	assert.Equal(t, gobreaker.StateOpen.String(), client.BreakerState())

	err := client.SendBatch(ctx, batch, testSession())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, coll.count(), "open breaker must not reach the server")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	coll, srv := newCollector(t)
	coll.status.Store(http.StatusBadRequest)
	client := transport.New(transport.Options{Endpoint: srv.URL, FailureThreshold: 2})

	for range 4 {
		err := client.SendBatch(context.Background(), nil, testSession())
		assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)
	}
	assert.Equal(t, gobreaker.StateClosed.String(), client.BreakerState())
	assert.Equal(t, 4, coll.count())
}

func TestBeaconIgnoresStatus(t *testing.T) {
	coll, srv := newCollector(t)
	coll.status.Store(http.StatusInternalServerError)
	client := transport.New(transport.Options{Endpoint: srv.URL})

	err := client.Beacon([]tracking.EnrichedEvent{testEvent(tracking.EventPageTime, "")}, testSession())
	require.NoError(t, err)
	assert.Equal(t, transport.PathBeacon, coll.last().path)
}

func TestBeaconReportsUnreachableEndpoint(t *testing.T) {
	_, srv := newCollector(t)
	endpoint := srv.URL
	srv.Close()

	client := transport.New(transport.Options{Endpoint: endpoint, Timeout: time.Second})
	err := client.Beacon(nil, testSession())
	assert.Error(t, err)
}

func TestRequestTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := transport.New(transport.Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	err := client.SendBatch(context.Background(), nil, testSession())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	coll, srv := newCollector(t)
	client := transport.New(transport.Options{Endpoint: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.SendBatch(ctx, nil, testSession())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, coll.count())
}

func TestAdminReportsDecode(t *testing.T) {
	coll, srv := newCollector(t)
	client := transport.New(transport.Options{Endpoint: srv.URL})
	ctx := context.Background()
	r := transport.DateRange{StartDate: "2024-05-01", EndDate: "2024-05-07"}

	coll.reply = []byte(`[{"productId":"p1","productName":"Mug","clicks":200,"views":150,"purchases":12,"revenue":240.5,"conversionRate":6}]`)
	products, err := client.ProductPerformance(ctx, r)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].ProductName)
	assert.Equal(t, int64(200), products[0].Clicks)
	assert.InDelta(t, 240.5, products[0].Revenue, 0.001)

	req := coll.last()
	assert.Equal(t, transport.PathAdminProducts, req.path)
	assert.Equal(t, "2024-05-01", req.query.Get("startDate"))
	assert.Equal(t, "2024-05-07", req.query.Get("endDate"))

	coll.reply = []byte(`{"metrics":{"checkoutStarts":200,"checkoutCompletes":150,"purchases":120,"totalRevenue":900},"dailyTrends":[{"date":"2024-05-01","purchases":3}]}`)
	orders, err := client.OrderAnalytics(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, int64(200), orders.Metrics.CheckoutStarts)
	assert.Equal(t, int64(150), orders.Metrics.CheckoutCompletes)
	require.Len(t, orders.DailyTrends, 1)
	assert.Equal(t, "2024-05-01", orders.DailyTrends[0].Date)

	coll.reply = []byte(`{"devices":[{"name":"mobile","count":7}],"browsers":[],"sources":[],"countries":[]}`)
	traffic, err := client.TrafficBreakdown(ctx, r)
	require.NoError(t, err)
	require.Len(t, traffic.Devices, 1)
	assert.Equal(t, "mobile", traffic.Devices[0].Name)
}

func TestUserInteractionsQuery(t *testing.T) {
	coll, srv := newCollector(t)
	coll.reply = []byte(`{"interactions":[],"page":2,"limit":25,"total":40,"totalPages":2}`)
	client := transport.New(transport.Options{Endpoint: srv.URL})

	page, err := client.UserInteractions(context.Background(), transport.InteractionQuery{
		DateRange: transport.DateRange{StartDate: "2024-05-01"},
		Page:      2,
		Limit:     25,
		EventType: string(tracking.EventAddToCart),
		ProductID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	q := coll.last().query
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "25", q.Get("limit"))
	assert.Equal(t, "add_to_cart", q.Get("eventType"))
	assert.Equal(t, "p1", q.Get("productId"))
	assert.Empty(t, q.Get("categoryId"))
	assert.Empty(t, q.Get("endDate"))
}

func TestSampleDataAndClear(t *testing.T) {
	coll, srv := newCollector(t)
	client := transport.New(transport.Options{Endpoint: srv.URL})
	ctx := context.Background()

	coll.reply = []byte(`{"sessions":20,"events":310}`)
	result, err := client.GenerateSampleData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Sessions)
	assert.Equal(t, http.MethodPost, coll.last().method)

	coll.reply = nil
	require.NoError(t, client.ClearData(ctx))
	assert.Equal(t, http.MethodDelete, coll.last().method)
	assert.Equal(t, transport.PathAdminClear, coll.last().path)
}

func TestSinceFormatsDates(t *testing.T) {
	from := time.Date(2024, 4, 1, 13, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)
	r := transport.Since(from, to)
	assert.Equal(t, "2024-04-01", r.StartDate)
	assert.Equal(t, "2024-04-30", r.EndDate)
}

