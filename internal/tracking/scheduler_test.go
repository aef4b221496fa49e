package tracking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsphere/internal/session"
)

func newTestScheduler(t *testing.T, sender *fakeSender) (*Scheduler, *Tracker, *clock.Mock) {
	t.Helper()
	tr, sessions, clk := newTestTracker(t, sender, nil)
	s := NewScheduler(SchedulerOptions{
		Queue:    tr.Queue(),
		Sessions: sessions,
		Sender:   sender,
		Interval: 5 * time.Second,
		Clock:    clk,
		Logger:   discardLogger(),
	})
	return s, tr, clk
}

func TestFlushSendsBatchWithSession(t *testing.T) {
	sender := &fakeSender{}
	s, tr, _ := newTestScheduler(t, sender)
	ctx := context.Background()

	tr.Track(ctx, Event{Type: EventSearch})
	tr.Track(ctx, Event{Type: EventShare})
	s.Flush(ctx)

	require.Equal(t, 1, sender.batchCount())
	batch := sender.lastBatch()
	assert.Equal(t, []EventType{EventSearch, EventShare}, eventTypes(batch.events))
	assert.Contains(t, batch.info.SessionID, session.IDPrefix)
	assert.Zero(t, tr.Queue().Len())
}

func TestFlushSkipsEmptyQueue(t *testing.T) {
	sender := &fakeSender{}
	s, _, _ := newTestScheduler(t, sender)

	s.Flush(context.Background())

	assert.Zero(t, sender.batchCount())
}

func TestFailedFlushRequeuesAheadOfNewEvents(t *testing.T) {
	sender := &fakeSender{batchErr: errors.New("503")}
	s, tr, _ := newTestScheduler(t, sender)
	ctx := context.Background()

	for _, typ := range []EventType{EventSearch, EventShare, EventFilterApply} {
		tr.Track(ctx, Event{Type: typ})
	}
	before := eventIDs(tr.Queue().Snapshot())

	sender.onBatch = func() {
		tr.Track(ctx, Event{Type: EventCartAbandon})
	}
	s.Flush(ctx)

	after := tr.Queue().Snapshot()
	require.Len(t, after, 4)
	assert.Equal(t, before, eventIDs(after[:3]))
	assert.Equal(t, EventCartAbandon, after[3].Type)

	sender.onBatch = nil
	sender.setBatchErr(nil)
	s.Flush(ctx)
	assert.Equal(t, append(before, after[3].EventID), eventIDs(sender.lastBatch().events))
	assert.Zero(t, tr.Queue().Len())
}

func TestSchedulerFlushesOnTick(t *testing.T) {
	sender := &fakeSender{}
	s, tr, clk := newTestScheduler(t, sender)
	ctx := context.Background()

	s.Start(ctx)
	defer s.Stop()

	tr.Track(ctx, Event{Type: EventSearch})
	clk.Add(4 * time.Second)
	assert.Zero(t, sender.batchCount())

	clk.Add(time.Second)
	require.Eventually(t, func() bool { return sender.batchCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	sender := &fakeSender{}
	s, tr, clk := newTestScheduler(t, sender)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	tr.Track(context.Background(), Event{Type: EventSearch})
	clk.Add(10 * time.Second)
	assert.Zero(t, sender.batchCount())
}

func TestFlushOnUnloadBeaconsOnce(t *testing.T) {
	sender := &fakeSender{}
	s, tr, _ := newTestScheduler(t, sender)
	ctx := context.Background()

	tr.Track(ctx, Event{Type: EventSearch})
	s.FlushOnUnload()
	tr.Track(ctx, Event{Type: EventShare})
	s.FlushOnUnload()

	assert.Equal(t, 1, sender.beaconCount())
	assert.Zero(t, sender.batchCount())
	assert.Equal(t, 1, tr.Queue().Len())
}

func newBulkScheduler(t *testing.T, sender *fakeSender, queued int) (*Scheduler, *Queue, []string) {
	t.Helper()
	_, sessions, clk := newTestTracker(t, sender, nil)
	q := NewQueue(5000)
	ids := make([]string, queued)
	for i := range queued {
		ids[i] = fmt.Sprintf("evt_%04d", i)
		q.Append(EnrichedEvent{EventID: ids[i], Event: Event{Type: EventSearch}})
	}
	s := NewScheduler(SchedulerOptions{
		Queue:    q,
		Sessions: sessions,
		Sender:   sender,
		Interval: 5 * time.Second,
		Clock:    clk,
		Logger:   discardLogger(),
	})
	return s, q, ids
}

func batchSizes(batches []sentBatch) []int {
	out := make([]int, len(batches))
	for i, b := range batches {
		out[i] = len(b.events)
	}
	return out
}

func TestFlushSplitsQueueIntoCollectorSizedBatches(t *testing.T) {
	sender := &fakeSender{}
	s, q, ids := newBulkScheduler(t, sender, 2500)

	s.Flush(context.Background())

	assert.Equal(t, []int{1000, 1000, 500}, batchSizes(sender.batches))
	var delivered []string
	for _, b := range sender.batches {
		delivered = append(delivered, eventIDs(b.events)...)
	}
	assert.Equal(t, ids, delivered)
	assert.Zero(t, q.Len())
}

func TestFailedChunkRequeuesOnlyUnsentEvents(t *testing.T) {
	sender := &fakeSender{}
	s, q, ids := newBulkScheduler(t, sender, 2500)
	ctx := context.Background()

	// The first request succeeds, every later one fails.
	sender.onBatch = func() { sender.setBatchErr(errors.New("503")) }
	s.Flush(ctx)

	require.Equal(t, 2, sender.batchCount())
	assert.Equal(t, ids[1000:], eventIDs(q.Snapshot()))

	sender.mu.Lock()
	sender.onBatch = nil
	sender.mu.Unlock()
	sender.setBatchErr(nil)
	s.Flush(ctx)

	assert.Equal(t, []int{1000, 1000, 1000, 500}, batchSizes(sender.batches))
	delivered := eventIDs(sender.batches[0].events)
	delivered = append(delivered, eventIDs(sender.batches[2].events)...)
	delivered = append(delivered, eventIDs(sender.batches[3].events)...)
	assert.Equal(t, ids, delivered)
	assert.Zero(t, q.Len())
}

func TestFlushOnUnloadSplitsLargeQueue(t *testing.T) {
	sender := &fakeSender{}
	s, q, ids := newBulkScheduler(t, sender, 1200)

	s.FlushOnUnload()

	assert.Equal(t, []int{1000, 200}, batchSizes(sender.beacons))
	assert.Equal(t, ids[1000:], eventIDs(sender.beacons[1].events))
	assert.Zero(t, q.Len())
}

func TestFlushOnUnloadDoesNotWaitForInFlightFlush(t *testing.T) {
	sender := &fakeSender{}
	s, tr, _ := newTestScheduler(t, sender)
	ctx := context.Background()

	tr.Track(ctx, Event{Type: EventSearch})
	release := make(chan struct{})
	sender.onBatch = func() { <-release }

	flushed := make(chan struct{})
	go func() {
		s.Flush(ctx)
		close(flushed)
	}()
	require.Eventually(t, func() bool { return sender.batchCount() == 1 }, time.Second, 5*time.Millisecond)

	tr.Track(ctx, Event{Type: EventShare})
	unloaded := make(chan struct{})
	go func() {
		s.FlushOnUnload()
		close(unloaded)
	}()

	select {
	case <-unloaded:
	case <-time.After(time.Second):
		t.Fatal("unload blocked behind the in-flight flush")
	}
	close(release)
	<-flushed

	require.Equal(t, 1, sender.beaconCount())
	assert.Equal(t, []EventType{EventShare}, eventTypes(sender.beacons[0].events))
}
