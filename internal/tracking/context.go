package tracking

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"shopsphere/internal/environment"
	"shopsphere/internal/session"
	"shopsphere/internal/storage"
)

// Options wires a tracking Context.
type Options struct {
	Environment    environment.Provider
	SessionStore   storage.Store
	LongLivedStore storage.Store
	Sender         Sender
	Clock          clock.Clock
	Logger         *slog.Logger
	Telemetry      Telemetry
	FlushInterval  time.Duration
	QueueCapacity  int
	SessionTimeout time.Duration
	RequestTimeout time.Duration
}

// Context is the storefront-facing tracking API. Enablement is decided once in
// New; a disabled Context ignores every call.
type Context struct {
	enabled   bool
	onPage    atomic.Bool
	pageMu    sync.Mutex
	pageOpts  []PageOption
	landing   *url.URL
	sessions  *session.Manager
	tracker   *Tracker
	scheduler *Scheduler
	clock     clock.Clock
	logger    *slog.Logger
}

// New builds the pipeline and starts the flush loop. The loop runs until
// Close.
func New(ctx context.Context, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{logger: logger}

	if !Enabled(ctx, opts.Environment, opts.LongLivedStore, logger) || opts.Sender == nil {
		logger.Info("Tracking disabled")
		return c
	}
	env, err := opts.Environment.Current()
	if err != nil {
		return c
	}

	c.enabled = true
	c.clock = opts.Clock
	if c.clock == nil {
		c.clock = clock.New()
	}
	c.landing, _ = url.Parse(env.URL)

	c.sessions = session.NewManager(session.Options{
		SessionStore:   opts.SessionStore,
		LongLivedStore: opts.LongLivedStore,
		Device:         env.Device(),
		Timeout:        opts.SessionTimeout,
		Clock:          c.clock,
		Logger:         logger,
	})
	queue := NewQueue(opts.QueueCapacity)
	c.tracker = NewTracker(TrackerOptions{
		Environment:     env,
		Sessions:        c.sessions,
		Sender:          opts.Sender,
		Queue:           queue,
		Clock:           c.clock,
		Logger:          logger,
		Telemetry:       opts.Telemetry,
		CriticalTimeout: opts.RequestTimeout,
	})
	c.scheduler = NewScheduler(SchedulerOptions{
		Queue:     queue,
		Sessions:  c.sessions,
		Sender:    opts.Sender,
		Interval:  opts.FlushInterval,
		Clock:     c.clock,
		Logger:    logger,
		Telemetry: opts.Telemetry,
	})
	c.scheduler.Start(context.WithoutCancel(ctx))
	return c
}

// Enabled reports the decision taken in New.
func (c *Context) Enabled() bool {
	return c.enabled
}

// SessionID returns the active session id, creating the session if needed.
func (c *Context) SessionID(ctx context.Context) (string, bool) {
	if !c.enabled {
		return "", false
	}
	return c.sessions.GetOrCreate(ctx).SessionID, true
}

// Pending returns a copy of the events waiting for the next flush.
func (c *Context) Pending() []EnrichedEvent {
	if !c.enabled {
		return nil
	}
	return c.tracker.Queue().Snapshot()
}

// TrackEvent enqueues an arbitrary event.
func (c *Context) TrackEvent(ctx context.Context, e Event) {
	if !c.enabled {
		return
	}
	c.tracker.Track(ctx, e)
}

func (c *Context) TrackProductClick(ctx context.Context, productID, productName, categoryID string, position int) {
	c.TrackEvent(ctx, Event{
		Type:      EventProductClick,
		ProductID: productID,
		Metadata: Metadata{
			MetaProductName: productName,
			MetaCategoryID:  categoryID,
			MetaPosition:    position,
		},
	})
}

func (c *Context) TrackCategoryView(ctx context.Context, categoryID, categoryName string) {
	c.TrackEvent(ctx, Event{
		Type:       EventCategoryView,
		CategoryID: categoryID,
		Metadata:   Metadata{MetaCategoryName: categoryName},
	})
}

func (c *Context) TrackAddToCart(ctx context.Context, productID, productName string, quantity int, price float64) {
	c.TrackEvent(ctx, Event{
		Type:      EventAddToCart,
		ProductID: productID,
		Metadata: Metadata{
			MetaProductName: productName,
			MetaQuantity:    quantity,
			MetaPrice:       price,
		},
	})
}

// TrackPurchase is critical: it is sent immediately and batched.
func (c *Context) TrackPurchase(ctx context.Context, productID, orderID string, revenue float64, quantity int) {
	c.TrackEvent(ctx, Event{
		Type:      EventPurchase,
		ProductID: productID,
		Metadata: Metadata{
			MetaOrderID:  orderID,
			MetaRevenue:  revenue,
			MetaQuantity: quantity,
		},
	})
}

func (c *Context) TrackSearch(ctx context.Context, query string, resultsCount int) {
	c.TrackEvent(ctx, Event{
		Type:     EventSearch,
		Metadata: Metadata{MetaQuery: query, MetaResultsCount: resultsCount},
	})
}

func (c *Context) TrackFilter(ctx context.Context, filters map[string]any) {
	c.TrackEvent(ctx, Event{
		Type:     EventFilterApply,
		Metadata: Metadata{MetaFilters: filters},
	})
}

func (c *Context) TrackWishlistAdd(ctx context.Context, productID, productName string) {
	c.TrackEvent(ctx, Event{
		Type:      EventWishlistAdd,
		ProductID: productID,
		Metadata:  Metadata{MetaProductName: productName},
	})
}

func (c *Context) TrackShare(ctx context.Context, productID, platform string) {
	c.TrackEvent(ctx, Event{
		Type:      EventShare,
		ProductID: productID,
		Metadata:  Metadata{MetaPlatform: platform},
	})
}

func (c *Context) TrackCheckoutStart(ctx context.Context, cartValue float64, itemCount int) {
	c.TrackEvent(ctx, Event{
		Type:     EventCheckoutStart,
		Metadata: Metadata{MetaCartValue: cartValue, MetaItemCount: itemCount},
	})
}

// TrackCheckoutComplete is critical: it is sent immediately and batched.
func (c *Context) TrackCheckoutComplete(ctx context.Context, orderID string, revenue float64, itemCount int) {
	c.TrackEvent(ctx, Event{
		Type: EventCheckoutComplete,
		Metadata: Metadata{
			MetaOrderID:   orderID,
			MetaRevenue:   revenue,
			MetaItemCount: itemCount,
		},
	})
}

func (c *Context) TrackCartAbandon(ctx context.Context, cartValue float64, itemCount int) {
	c.TrackEvent(ctx, Event{
		Type:     EventCartAbandon,
		Metadata: Metadata{MetaCartValue: cartValue, MetaItemCount: itemCount},
	})
}

// PageOption adds correlation ids to a page_time event.
type PageOption func(*Event)

func WithProduct(productID string) PageOption {
	return func(e *Event) { e.ProductID = productID }
}

func WithCategory(categoryID string) PageOption {
	return func(e *Event) { e.CategoryID = categoryID }
}

// TrackPageView enqueues a page_time event flagged as a page view. It does
// not touch the session counter; Navigate does that.
func (c *Context) TrackPageView(ctx context.Context, page string, opts ...PageOption) {
	e := Event{
		Type:     EventPageTime,
		Metadata: Metadata{MetaPage: page, MetaPageView: true},
	}
	for _, opt := range opts {
		opt(&e)
	}
	c.TrackEvent(ctx, e)
}

// Navigate is the route-change hook. It reports time spent on the page being
// left, then records the page view and reports the entering page. Both events
// are queued synchronously so a fast navigation cannot lose either.
func (c *Context) Navigate(ctx context.Context, path string, opts ...PageOption) {
	if !c.enabled {
		return
	}
	if c.onPage.Swap(true) {
		c.leavePage(ctx)
	}
	c.pageMu.Lock()
	c.pageOpts = opts
	c.pageMu.Unlock()
	c.tracker.EnterPage(ctx, c.resolve(path))
	c.TrackPageView(ctx, path, opts...)
}

// RecordScroll feeds the page's scroll-depth high-water mark.
func (c *Context) RecordScroll(percent float64) {
	if !c.enabled {
		return
	}
	c.tracker.RecordScroll(percent)
}

// RecordInteraction counts a click, keydown or touch on the current page.
func (c *Context) RecordInteraction() {
	if !c.enabled {
		return
	}
	c.tracker.RecordInteraction()
}

// Flush sends the queue now instead of waiting for the next tick.
func (c *Context) Flush(ctx context.Context) {
	if !c.enabled {
		return
	}
	c.scheduler.Flush(ctx)
}

// Close tears the pipeline down as on page unload: the flush loop stops, the
// current page's time is reported, in-flight critical sends get until ctx
// ends, and whatever is queued goes out as a beacon.
func (c *Context) Close(ctx context.Context) {
	if !c.enabled {
		return
	}
	c.scheduler.Stop()
	if c.onPage.Swap(false) {
		c.leavePage(ctx)
	}
	if err := c.tracker.WaitCritical(ctx); err != nil {
		c.logger.Warn("Critical sends still in flight at close", slog.Any("error", err))
	}
	c.scheduler.FlushOnUnload()
}

func (c *Context) leavePage(ctx context.Context) {
	page := c.tracker.CurrentPage()
	spent := c.clock.Since(page.EnteredAt)
	e := Event{
		Type: EventPageTime,
		Metadata: Metadata{
			MetaPage:         pagePath(page.URL),
			MetaTimeSpent:    int(math.Round(spent.Seconds())),
			MetaScrollDepth:  page.ScrollDepth,
			MetaInteractions: page.Interactions,
		},
	}
	c.pageMu.Lock()
	for _, opt := range c.pageOpts {
		opt(&e)
	}
	c.pageMu.Unlock()
	c.tracker.Track(ctx, e)
}

func (c *Context) resolve(path string) string {
	if c.landing == nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return c.landing.ResolveReference(ref).String()
}

func pagePath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}
