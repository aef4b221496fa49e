package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Entry is a persisted key/value pair. Scope separates devices (or kiosks)
// sharing one database.
type Entry struct {
	ID        uint      `gorm:"primaryKey"`
	Scope     string    `gorm:"uniqueIndex:idx_storage_scope_key;not null"`
	Key       string    `gorm:"uniqueIndex:idx_storage_scope_key;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

func (Entry) TableName() string {
	return "storage_entries"
}

// Database is a Store backed by the storage_entries table.
type Database struct {
	db     *gorm.DB
	scope  string
	logger *slog.Logger
}

func NewDatabase(db *gorm.DB, scope string, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	return &Database{db: db, scope: scope, logger: logger}
}

func (d *Database) Get(ctx context.Context, key string) (string, error) {
	var entry Entry
	err := d.db.WithContext(ctx).Where("scope = ? AND key = ?", d.scope, key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (d *Database) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	return sqlite.PerformWrite(d.logger, d.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Exec(`
			INSERT INTO storage_entries (scope, key, value, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, d.scope, key, value, now, now).Error
	})
}

func (d *Database) Delete(ctx context.Context, key string) error {
	return sqlite.PerformWrite(d.logger, d.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Where("scope = ? AND key = ?", d.scope, key).Delete(&Entry{}).Error
	})
}
