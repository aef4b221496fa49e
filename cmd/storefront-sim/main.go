// main.go - drives synthetic shoppers through the tracking pipeline against a
// running collector, then prints the admin dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"gopkg.in/natefinch/lumberjack.v2"

	"shopsphere/internal/config"
	"shopsphere/internal/dashboard"
	"shopsphere/internal/metrics"
	"shopsphere/internal/pkg/async"
	"shopsphere/internal/transport"
)

type options struct {
	endpoint    string
	shoppers    int
	concurrency int
	speed       float64
	metricsAddr string
	days        int
	sortBy      string
}

func main() {
	cfg := config.GetConfig()

	var opts options
	flag.StringVar(&opts.endpoint, "endpoint", cfg.TrackerEndpoint, "collector base URL")
	flag.IntVar(&opts.shoppers, "shoppers", 20, "number of shopper sessions to simulate")
	flag.IntVar(&opts.concurrency, "concurrency", 5, "shoppers browsing at the same time")
	flag.Float64Var(&opts.speed, "speed", 60, "time compression factor for think time")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve tracker metrics on this address while running")
	flag.IntVar(&opts.days, "days", 1, "dashboard window in days")
	flag.StringVar(&opts.sortBy, "sort", "clicks", "product column to sort the dashboard by")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.GetLogDirectory(), "storefront-sim.log"),
		MaxSize:    cfg.GetLogMaxSizeMB(),
		MaxBackups: cfg.GetLogMaxBackups(),
		MaxAge:     cfg.GetLogMaxAgeDays(),
		Compress:   true,
	}
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})), file
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	logger, logFile := newLogger(cfg)
	defer logFile.Close()

	registry := prometheus.NewRegistry()
	telemetry := metrics.NewTracker(registry)
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
		defer srv.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unavailable: %w", err)
		}
	}

	client := transport.New(transport.Options{
		Endpoint:         opts.endpoint,
		Timeout:          cfg.RequestTimeout(),
		FailureThreshold: uint32(max(cfg.BreakerFailureThreshold, 1)),
		Cooldown:         cfg.BreakerCooldown(),
		UserAgent:        "shopsphere-storefront-sim",
		Logger:           logger,
	})

	sim := &simulator{
		cfg:       cfg,
		logger:    logger,
		telemetry: telemetry,
		client:    client,
		redis:     redisClient,
		speed:     opts.speed,
		shoppers:  max(1, opts.shoppers*2/3),
	}

	start := time.Now()
	fmt.Printf("Simulating %d shoppers against %s...\n", opts.shoppers, opts.endpoint)
	tasks := make([]async.Task, opts.shoppers)
	for i := range tasks {
		seed := uint64(start.UnixNano()) + uint64(i)
		tasks[i] = async.Task{
			Name:    fmt.Sprintf("shopper-%d", i),
			Execute: func(ctx context.Context) (any, error) { return nil, sim.shop(ctx, seed) },
		}
	}
	var failed int
	for name, result := range async.NewPool(opts.concurrency).Execute(ctx, tasks) {
		if result.Err != nil {
			failed++
			logger.Warn("Shopper failed", slog.String("shopper", name), slog.Any("error", result.Err))
		}
	}
	fmt.Printf("Done in %s (%d failed, breaker %s)\n\n", time.Since(start).Round(time.Millisecond), failed, client.BreakerState())

	to := time.Now()
	d := dashboard.NewLoader(client, logger).Load(ctx, to.AddDate(0, 0, -opts.days), to)
	return dashboard.Render(os.Stdout, d, dashboard.NewSorter(opts.sortBy, language.English))
}
