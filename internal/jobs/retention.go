package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"shopsphere/internal/config"
	"shopsphere/internal/events"
)

const retentionBatchSize = 1000

// RetentionJob deletes events older than the retention period.
type RetentionJob struct {
	dbManager     cartridge.DBManager
	logger        *slog.Logger
	retentionDays int
	interval      time.Duration
	now           func() time.Time
}

func NewRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *RetentionJob {
	interval := time.Duration(cfg.JobIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionJob{
		dbManager:     dbManager,
		logger:        logger,
		retentionDays: cfg.EventRetentionDays,
		interval:      interval,
		now:           time.Now,
	}
}

func (j *RetentionJob) Name() string {
	return "event_retention"
}

func (j *RetentionJob) Interval() time.Duration {
	return j.interval
}

// Run deletes expired events in batches. A retention of zero keeps
// everything.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		return nil
	}
	db := j.dbManager.GetConnection()
	cutoff := j.now().AddDate(0, 0, -j.retentionDays)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := events.DeleteEventsBeforeBatch(db, j.logger, cutoff, retentionBatchSize)
		if err != nil {
			j.logger.Error("Failed to delete expired events",
				slog.Any("error", err),
				slog.Int64("deleted_so_far", total))
			return err
		}
		total += deleted
		if deleted < retentionBatchSize {
			break
		}
	}

	if total > 0 {
		j.logger.Info("Deleted expired events",
			slog.Int64("deleted_count", total),
			slog.Int("retention_days", j.retentionDays),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
