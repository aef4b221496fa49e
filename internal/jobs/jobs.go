package jobs

import (
	"log/slog"

	"github.com/karloscodes/cartridge"
)

// Jobs is an alias for Scheduler.
type Jobs = Scheduler

// NewJobs creates the background job scheduler for the collector.
func NewJobs(dbManager cartridge.DBManager, logger *slog.Logger) (*Jobs, error) {
	return NewScheduler(dbManager, logger)
}
