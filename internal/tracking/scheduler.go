package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultFlushInterval is the periodic flush cadence.
const DefaultFlushInterval = 5 * time.Second

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Queue     *Queue
	Sessions  Sessions
	Sender    Sender
	Interval  time.Duration
	Clock     clock.Clock
	Logger    *slog.Logger
	Telemetry Telemetry
}

// Scheduler drains the pending queue on a fixed interval and once more when
// the page is unloaded.
type Scheduler struct {
	queue     *Queue
	sessions  Sessions
	sender    Sender
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	telemetry Telemetry

	flushMu  sync.Mutex
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	unloaded bool
}

func NewScheduler(opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		queue:     opts.Queue,
		sessions:  opts.Sessions,
		sender:    opts.Sender,
		interval:  opts.Interval,
		clock:     opts.Clock,
		logger:    opts.Logger,
		telemetry: opts.Telemetry,
	}
	if s.interval <= 0 {
		s.interval = DefaultFlushInterval
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.telemetry == nil {
		s.telemetry = nopTelemetry{}
	}
	return s
}

// Start launches the flush loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.clock.Ticker(s.interval)

	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.Flush(loopCtx)
			}
		}
	}(s.done)

	s.logger.Debug("Flush scheduler started", slog.Duration("interval", s.interval))
}

// Stop ends the loop and waits for an in-progress flush to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Flush sends everything queued, in requests of at most MaxBatchSize events.
// An empty queue makes no request. When a request fails, it and every chunk
// after it go back in front of the queue so the next flush retries them in
// the original order.
func (s *Scheduler) Flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pending := s.queue.Swap()
	if len(pending) == 0 {
		return
	}

	info, _ := s.sessions.Snapshot()
	sent := 0
	for _, batch := range chunks(pending, MaxBatchSize) {
		start := s.clock.Now()
		if err := s.sender.SendBatch(ctx, batch, info); err != nil {
			unsent := pending[sent:]
			dropped := s.queue.Prepend(unsent)
			s.logger.Warn("Batch flush failed, events requeued",
				slog.Int("events", len(unsent)),
				slog.Any("error", err))
			s.telemetry.FlushFailed(len(unsent))
			if dropped > 0 {
				s.telemetry.EventsDropped(DropOverflow, dropped)
			}
			s.telemetry.QueueDepth(s.queue.Len())
			return
		}
		sent += len(batch)
		s.telemetry.FlushSucceeded(len(batch), s.clock.Since(start))
	}

	s.telemetry.QueueDepth(s.queue.Len())
	s.logger.Debug("Batch flushed", slog.Int("events", sent))
}

// FlushOnUnload hands the queue to the beacon channel in chunks of at most
// MaxBatchSize. Delivery is not observable, so there is no requeue. Only the
// first call sends, and it does not wait for a flush already in flight: that
// flush owns the events it swapped out.
func (s *Scheduler) FlushOnUnload() {
	s.mu.Lock()
	if s.unloaded {
		s.mu.Unlock()
		return
	}
	s.unloaded = true
	s.mu.Unlock()

	pending := s.queue.Swap()
	if len(pending) == 0 {
		return
	}
	info, _ := s.sessions.Snapshot()
	for _, batch := range chunks(pending, MaxBatchSize) {
		if err := s.sender.Beacon(batch, info); err != nil {
			s.logger.Warn("Unload beacon failed", slog.Int("events", len(batch)), slog.Any("error", err))
			s.telemetry.FlushFailed(len(batch))
			continue
		}
		s.telemetry.FlushSucceeded(len(batch), 0)
	}
}
