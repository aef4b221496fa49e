package events

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// InteractionFilters selects rows for the raw interaction log.
type InteractionFilters struct {
	FromDate   time.Time
	ToDate     time.Time
	EventType  string
	ProductID  string
	CategoryID string
	Limit      int
	Offset     int
}

// InteractionsResult is one page of the interaction log.
type InteractionsResult struct {
	Events []Event
	Total  int64
}

// GetFilteredInteractions returns events newest first, filtered and paginated.
func GetFilteredInteractions(db *gorm.DB, filters InteractionFilters) (InteractionsResult, error) {
	query := db.Model(&Event{}).
		Where("timestamp BETWEEN ? AND ?", filters.FromDate.UTC(), filters.ToDate.UTC())

	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.ProductID != "" {
		query = query.Where("product_id = ?", filters.ProductID)
	}
	if filters.CategoryID != "" {
		query = query.Where("category_id = ?", filters.CategoryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return InteractionsResult{}, err
	}

	var events []Event
	if err := query.Order("timestamp DESC, id DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&events).Error; err != nil {
		return InteractionsResult{}, err
	}

	return InteractionsResult{Events: events, Total: total}, nil
}

// CountEvents returns the number of stored events.
func CountEvents(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&Event{}).Count(&count).Error
	return count, err
}

// DeleteAllEvents empties the event store.
func DeleteAllEvents(db *gorm.DB, logger *slog.Logger) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&Event{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// DeleteEventsBefore removes events older than cutoff.
func DeleteEventsBefore(db *gorm.DB, logger *slog.Logger, cutoff time.Time) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Where("timestamp < ?", cutoff.UTC()).Delete(&Event{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// DeleteEventsBeforeBatch removes at most limit events older than cutoff so a
// large purge does not hold the write lock for long.
func DeleteEventsBeforeBatch(db *gorm.DB, logger *slog.Logger, cutoff time.Time, limit int) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Exec(`
			DELETE FROM analytics_events WHERE id IN (
				SELECT id FROM analytics_events WHERE timestamp < ? ORDER BY id LIMIT ?
			)`, cutoff.UTC(), limit)
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
