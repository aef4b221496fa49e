package tracking

import (
	"context"
	"sync"

	"shopsphere/internal/session"
)

type sentBatch struct {
	events []EnrichedEvent
	info   session.Session
}

// fakeSender records every call. Its errors are switched per call kind, and
// onBatch runs inside SendBatch to simulate work racing a flush.
type fakeSender struct {
	mu        sync.Mutex
	single    []EnrichedEvent
	batches   []sentBatch
	beacons   []sentBatch
	singleErr error
	batchErr  error
	onBatch   func()
}

func (f *fakeSender) SendEvent(_ context.Context, e EnrichedEvent, _ session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.single = append(f.single, e)
	return f.singleErr
}

func (f *fakeSender) SendBatch(_ context.Context, events []EnrichedEvent, info session.Session) error {
	f.mu.Lock()
	hook, err := f.onBatch, f.batchErr
	f.batches = append(f.batches, sentBatch{events: events, info: info})
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeSender) Beacon(events []EnrichedEvent, info session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beacons = append(f.beacons, sentBatch{events: events, info: info})
	return nil
}

func (f *fakeSender) setBatchErr(err error) {
	f.mu.Lock()
	f.batchErr = err
	f.mu.Unlock()
}

func (f *fakeSender) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeSender) singleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.single)
}

func (f *fakeSender) lastBatch() sentBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[len(f.batches)-1]
}

func (f *fakeSender) beaconCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.beacons)
}

func eventTypes(events []EnrichedEvent) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func eventIDs(events []EnrichedEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventID
	}
	return out
}
