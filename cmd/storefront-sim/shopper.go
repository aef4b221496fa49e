package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"shopsphere/internal/config"
	"shopsphere/internal/environment"
	"shopsphere/internal/metrics"
	"shopsphere/internal/seeder"
	"shopsphere/internal/storage"
	"shopsphere/internal/tracking"
	"shopsphere/internal/transport"
)

type simulator struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *metrics.Tracker
	client    *transport.Client
	redis     *redis.Client
	speed     float64
	shoppers  int
}

// longLivedStore gives each shopper identity its own namespace so returning
// shoppers keep their first-visit flag between runs when Redis is configured.
func (s *simulator) longLivedStore(shopper string) storage.Store {
	if s.redis == nil {
		return storage.NewMemory()
	}
	return storage.NewRedis(s.redis, "shopsphere:"+shopper+":", 0)
}

func (s *simulator) pace(ctx context.Context) seeder.Pace {
	return func(d time.Duration) {
		if s.speed > 0 {
			d = time.Duration(float64(d) / s.speed)
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
}

func (s *simulator) shop(ctx context.Context, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed>>3))
	shopper := fmt.Sprintf("shopper-%d", rng.IntN(s.shoppers))
	env := seeder.RandomEnvironment(rng)

	tc := tracking.New(ctx, tracking.Options{
		Environment:    environment.Static(env),
		SessionStore:   storage.NewMemory(),
		LongLivedStore: s.longLivedStore(shopper),
		Sender:         s.client,
		Logger:         s.logger.With(slog.String("shopper", shopper)),
		Telemetry:      s.telemetry,
		FlushInterval:  s.cfg.FlushInterval(),
		QueueCapacity:  s.cfg.QueueCapacity,
		SessionTimeout: s.cfg.SessionTimeout(),
		RequestTimeout: s.cfg.RequestTimeout(),
	})
	if !tc.Enabled() {
		return fmt.Errorf("%s: tracking disabled", shopper)
	}

	seeder.NewJourney(rng, s.pace(ctx)).Run(ctx, tc)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout())
	defer cancel()
	tc.Close(closeCtx)
	return ctx.Err()
}
