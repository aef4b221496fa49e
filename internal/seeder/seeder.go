// Package seeder fills the event store with synthetic shopper sessions. The
// sessions are produced by the real tracking pipeline so sample data has the
// same shape as live traffic.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/karloscodes/cartridge"

	"shopsphere/internal/environment"
	"shopsphere/internal/events"
	"shopsphere/internal/session"
	"shopsphere/internal/storage"
	"shopsphere/internal/timeframe"
	"shopsphere/internal/tracking"
)

// DefaultSessions is how many sessions the admin sample-data action creates.
const DefaultSessions = 40

// Result summarises a seeding run.
type Result struct {
	Sessions int `json:"sessions"`
	Events   int `json:"events"`
}

type Seeder struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	sessions  int
	rng       *rand.Rand
}

func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, sessions int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if sessions <= 0 {
		sessions = DefaultSessions
	}
	now := uint64(time.Now().UnixNano())
	return &Seeder{
		dbManager: dbManager,
		logger:    logger,
		sessions:  sessions,
		rng:       rand.New(rand.NewPCG(now, now>>1)),
	}
}

// WithSeed makes runs reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return s
}

// Run plays the configured number of journeys, spread over the default
// report window, and stores what they emit.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	s.logger.Info("Seeding sample data", slog.Int("sessions", s.sessions))

	// A pool smaller than the session count makes some shoppers return.
	shoppers := max(1, s.sessions*2/3)
	now := time.Now().UTC()

	var stored atomic.Int64
	var result Result
	for range s.sessions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sender := &directSender{
			dbManager: s.dbManager,
			logger:    s.logger,
			ipAddress: addresses[s.rng.IntN(len(addresses))],
			country:   fixedCountry(countries[s.rng.IntN(len(countries))]),
			stored:    &stored,
		}
		start := now.
			AddDate(0, 0, -s.rng.IntN(timeframe.DefaultWindowDays)).
			Add(-time.Duration(1+s.rng.IntN(12*60)) * time.Minute)

		if err := s.runSession(ctx, start, fmt.Sprintf("shopper-%d", s.rng.IntN(shoppers)), sender); err != nil {
			return result, err
		}
		if err := sender.Err(); err != nil && stored.Load() == 0 {
			return result, fmt.Errorf("seeding failed: %w", err)
		}
		result.Sessions++
	}

	result.Events = int(stored.Load())
	s.logger.Info("Sample data seeded",
		slog.Int("sessions", result.Sessions),
		slog.Int("events", result.Events))
	return result, nil
}

func (s *Seeder) runSession(ctx context.Context, start time.Time, shopper string, sender tracking.Sender) error {
	db := s.dbManager.GetConnection()
	if db == nil {
		return errors.New("database connection unavailable")
	}

	clk := clock.NewMock()
	clk.Set(start)

	tc := tracking.New(ctx, tracking.Options{
		Environment:    environment.Static(RandomEnvironment(s.rng)),
		SessionStore:   storage.NewMemory(),
		LongLivedStore: storage.NewDatabase(db, shopper, s.logger),
		Sender:         sender,
		Clock:          clk,
		Logger:         s.logger,
	})
	NewJourney(s.rng, func(d time.Duration) { clk.Add(d) }).Run(ctx, tc)
	tc.Close(ctx)
	return nil
}

// fixedCountry attributes every address to one country. Documentation
// addresses do not resolve through GeoLite.
type fixedCountry string

func (f fixedCountry) Country(string) string {
	return string(f)
}

// directSender stores events in-process instead of posting them to the
// collector.
type directSender struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	ipAddress string
	country   events.CountryResolver
	stored    *atomic.Int64

	mu  sync.Mutex
	err error
}

func (d *directSender) collect(evts []tracking.EnrichedEvent, info session.Session) error {
	res, err := events.Collect(d.dbManager, d.logger, d.country, events.CollectInput{
		Events:    evts,
		Session:   info,
		IPAddress: d.ipAddress,
	})
	if err != nil {
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		return err
	}
	d.stored.Add(int64(res.Stored))
	return nil
}

func (d *directSender) SendEvent(_ context.Context, event tracking.EnrichedEvent, info session.Session) error {
	return d.collect([]tracking.EnrichedEvent{event}, info)
}

func (d *directSender) SendBatch(_ context.Context, evts []tracking.EnrichedEvent, info session.Session) error {
	return d.collect(evts, info)
}

func (d *directSender) Beacon(evts []tracking.EnrichedEvent, info session.Session) error {
	return d.collect(evts, info)
}

func (d *directSender) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
