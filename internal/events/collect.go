package events

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopsphere/internal/environment"
	"shopsphere/internal/session"
	"shopsphere/internal/tracking"
)

var (
	ErrMissingSession = errors.New("session id required")
	ErrMissingEventID = errors.New("event id required")
)

// CountryResolver maps a client IP to a stored country code.
type CountryResolver interface {
	Country(ipAddress string) string
}

// CollectInput is one delivery: a single critical event or a whole batch.
type CollectInput struct {
	Events    []tracking.EnrichedEvent
	Session   session.Session
	IPAddress string
}

// CollectResult counts what happened to each delivered event.
type CollectResult struct {
	Stored     int
	Duplicates int
	Rejected   int
}

// Collect validates and stores events. Events already stored under the same
// EventID are skipped, so a critical event sent both immediately and in a
// batch is counted once. Invalid events are rejected individually.
func Collect(dbManager cartridge.DBManager, logger *slog.Logger, geo CountryResolver, input CollectInput) (CollectResult, error) {
	var result CollectResult
	if input.Session.SessionID == "" {
		return result, ErrMissingSession
	}

	country := UnknownCountry
	if geo != nil {
		country = geo.Country(input.IPAddress)
	}

	rows := make([]Event, 0, len(input.Events))
	for _, e := range input.Events {
		row, err := toRow(e, input.Session, country)
		if err != nil {
			logger.Warn("Rejecting event",
				slog.String("event_id", e.EventID),
				slog.String("type", string(e.Type)),
				slog.Any("error", err))
			result.Rejected++
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return result, nil
	}

	db := dbManager.GetConnection()
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		result.Stored = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		logger.Error("Failed to store events", slog.Int("events", len(rows)), slog.Any("error", err))
		return CollectResult{}, fmt.Errorf("failed to store events: %w", err)
	}
	result.Duplicates = len(rows) - result.Stored

	logger.Debug("Events collected",
		slog.String("session_id", input.Session.SessionID),
		slog.Int("stored", result.Stored),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("rejected", result.Rejected))
	return result, nil
}

func toRow(e tracking.EnrichedEvent, info session.Session, country string) (Event, error) {
	if e.EventID == "" {
		return Event{}, ErrMissingEventID
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if e.Timestamp.IsZero() {
		return Event{}, fmt.Errorf("timestamp required")
	}

	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return Event{}, fmt.Errorf("invalid metadata: %w", err)
	}

	row := Event{
		EventID:          e.EventID,
		SessionID:        info.SessionID,
		EventType:        string(e.Type),
		ProductID:        e.ProductID,
		ProductName:      stringMeta(e.Metadata, tracking.MetaProductName),
		CategoryID:       e.CategoryID,
		CategoryName:     stringMeta(e.Metadata, tracking.MetaCategoryName),
		OrderID:          stringMeta(e.Metadata, tracking.MetaOrderID),
		Revenue:          floatMeta(e.Metadata, tracking.MetaRevenue),
		TimeSpent:        floatMeta(e.Metadata, tracking.MetaTimeSpent),
		PageView:         boolMeta(e.Metadata, tracking.MetaPageView),
		PageURL:          e.PageURL,
		Referrer:         e.Referrer,
		ReferrerHost:     externalReferrer(e.Referrer, e.PageURL),
		ScrollDepth:      clampPercent(e.ScrollDepth),
		InteractionCount: max(e.InteractionCount, 0),
		DeviceType:       orDefault(e.DeviceType, UnknownDevice),
		BrowserName:      orDefault(e.BrowserName, UnknownBrowser),
		BrowserVersion:   e.BrowserVersion,
		ScreenResolution: e.ScreenResolution,
		TrafficSource:    orDefault(e.TrafficSource, UnknownSource),
		Country:          country,
		IsReturningUser:  info.IsReturningUser,
		Metadata:         string(meta),
		Timestamp:        e.Timestamp.UTC(),
	}
	if row.CategoryID == "" {
		row.CategoryID = stringMeta(e.Metadata, tracking.MetaCategoryID)
	}
	if c := e.CampaignData; c != nil {
		row.UTMSource = deref(c.Source)
		row.UTMMedium = deref(c.Medium)
		row.UTMCampaign = deref(c.Campaign)
		row.UTMTerm = deref(c.Term)
		row.UTMContent = deref(c.Content)
	}
	return row, nil
}

// externalReferrer is the referring host without "www.", or "" when the
// visit came from the storefront itself.
func externalReferrer(referrer, pageURL string) string {
	host := strings.TrimPrefix(environment.Hostname(referrer), "www.")
	if host == "" || host == strings.TrimPrefix(environment.Hostname(pageURL), "www.") {
		return ""
	}
	return host
}

func stringMeta(m tracking.Metadata, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// floatMeta reads a numeric metadata value. JSON numbers arrive as float64;
// numeric strings are accepted too. Anything else, or a non-finite or
// negative value, reads as 0.
func floatMeta(m tracking.Metadata, key string) float64 {
	var f float64
	switch v := m[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func boolMeta(m tracking.Metadata, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
