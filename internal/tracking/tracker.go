package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"shopsphere/internal/environment"
	"shopsphere/internal/session"
)

// Sender delivers events to the collection endpoint.
type Sender interface {
	SendEvent(ctx context.Context, event EnrichedEvent, info session.Session) error
	SendBatch(ctx context.Context, events []EnrichedEvent, info session.Session) error
	// Beacon is fire-and-forget: no retry and no response inspection.
	Beacon(events []EnrichedEvent, info session.Session) error
}

// Sessions is the part of session.Manager the pipeline uses.
type Sessions interface {
	GetOrCreate(ctx context.Context) session.Session
	RecordPageView(ctx context.Context)
	Snapshot() (session.Session, bool)
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Environment     environment.Environment
	Sessions        Sessions
	Sender          Sender
	Queue           *Queue
	Clock           clock.Clock
	Logger          *slog.Logger
	Telemetry       Telemetry
	CriticalTimeout time.Duration
}

// Tracker validates, enriches and enqueues events.
type Tracker struct {
	sessions        Sessions
	sender          Sender
	queue           *Queue
	enricher        *enricher
	page            *pageState
	clock           clock.Clock
	logger          *slog.Logger
	telemetry       Telemetry
	criticalTimeout time.Duration
	inflight        sync.WaitGroup
}

func NewTracker(opts TrackerOptions) *Tracker {
	t := &Tracker{
		sessions:        opts.Sessions,
		sender:          opts.Sender,
		queue:           opts.Queue,
		enricher:        newEnricher(opts.Environment),
		page:            &pageState{},
		clock:           opts.Clock,
		logger:          opts.Logger,
		telemetry:       opts.Telemetry,
		criticalTimeout: opts.CriticalTimeout,
	}
	if t.queue == nil {
		t.queue = NewQueue(DefaultQueueCapacity)
	}
	if t.clock == nil {
		t.clock = clock.New()
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.telemetry == nil {
		t.telemetry = nopTelemetry{}
	}
	if t.criticalTimeout <= 0 {
		t.criticalTimeout = 10 * time.Second
	}
	t.page.enter(opts.Environment.URL, t.clock.Now())
	return t
}

// Queue exposes the pending queue to the scheduler.
func (t *Tracker) Queue() *Queue {
	return t.queue
}

// Track validates e, enriches it and appends it to the pending queue. Invalid
// events are logged and dropped. Track never panics into the caller.
func (t *Tracker) Track(ctx context.Context, e Event) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Panic recovered while tracking event",
				slog.String("type", string(e.Type)),
				slog.Any("panic", r))
			t.telemetry.EventsDropped(DropPanic, 1)
		}
	}()

	if err := e.Validate(); err != nil {
		t.logger.Warn("Dropping invalid event", slog.Any("error", err))
		t.telemetry.EventsDropped(DropInvalid, 1)
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.clock.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}

	info := t.sessions.GetOrCreate(ctx)
	enriched := t.enricher.enrich(e, t.page.snapshot())

	if dropped := t.queue.Append(enriched); dropped > 0 {
		t.logger.Warn("Pending queue full, dropped oldest events", slog.Int("dropped", dropped))
		t.telemetry.EventsDropped(DropOverflow, dropped)
	}
	t.telemetry.EventTracked(string(e.Type))
	t.telemetry.QueueDepth(t.queue.Len())

	if e.Type.Critical() && t.sender != nil {
		t.sendCritical(enriched, info)
	}
}

// sendCritical posts a critical event right away. The queued copy stays put,
// so a failure here only costs latency.
func (t *Tracker) sendCritical(event EnrichedEvent, info session.Session) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.criticalTimeout)
		defer cancel()
		if err := t.sender.SendEvent(ctx, event, info); err != nil {
			t.logger.Warn("Immediate send of critical event failed",
				slog.String("event_id", event.EventID),
				slog.String("type", string(event.Type)),
				slog.Any("error", err))
			t.telemetry.CriticalSendFailed()
		}
	}()
}

// WaitCritical blocks until in-flight critical sends finish or ctx ends.
func (t *Tracker) WaitCritical(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordScroll raises the page's scroll-depth high-water mark.
func (t *Tracker) RecordScroll(percent float64) {
	t.page.recordScroll(percent)
}

// RecordInteraction counts a click, keydown or touch on the current page.
func (t *Tracker) RecordInteraction() {
	t.page.recordInteraction()
}

// EnterPage records a page view and resets the page-scoped counters. It
// returns the page that was left.
func (t *Tracker) EnterPage(ctx context.Context, url string) pageSnapshot {
	t.sessions.RecordPageView(ctx)
	return t.page.enter(url, t.clock.Now())
}

// CurrentPage returns the page-scoped state.
func (t *Tracker) CurrentPage() pageSnapshot {
	return t.page.snapshot()
}
