package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/karloscodes/cartridge"

	"shopsphere/internal/config"
)

// Job is a unit of periodic maintenance.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger *slog.Logger
	clock  clock.Clock
	jobs   []Job

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	running   map[string]bool
	wg        sync.WaitGroup
}

// NewScheduler builds the scheduler with the server's maintenance jobs.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger) (*Scheduler, error) {
	cfg := config.GetConfig()
	return NewSchedulerWithJobs(logger, clock.New(),
		NewRetentionJob(dbManager, logger, cfg),
		NewGeoLiteUpdaterJob(dbManager, logger, cfg),
	), nil
}

func NewSchedulerWithJobs(logger *slog.Logger, clk clock.Clock, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		logger:  logger,
		clock:   clk,
		jobs:    jobs,
		running: make(map[string]bool),
	}
}

// executeJobSafely skips a run while the previous run of the same job is
// still going.
func (s *Scheduler) executeJobSafely(ctx context.Context, job Job) {
	name := job.Name()
	s.mu.Lock()
	if s.running[name] {
		s.logger.Debug("Skipping job execution - previous run still going", slog.String("job", name))
		s.mu.Unlock()
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", name),
				slog.Any("panic", r))
		}
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", name), slog.Any("error", err))
	}
}

// Start runs every job once and then on its interval.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.isRunning = true
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Info("Starting background jobs...", slog.Int("jobs", len(s.jobs)))
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := s.clock.Ticker(job.Interval())
	defer ticker.Stop()

	s.logger.Info("Starting job", slog.String("job", job.Name()), slog.Duration("interval", job.Interval()))
	s.executeJobSafely(ctx, job)
	for {
		select {
		case <-ticker.C:
			s.executeJobSafely(ctx, job)
		case <-ctx.Done():
			s.logger.Info("Job stopped", slog.String("job", job.Name()))
			return
		}
	}
}

// Stop halts all background jobs and waits for in-flight runs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping background jobs...")
	s.cancel()
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
