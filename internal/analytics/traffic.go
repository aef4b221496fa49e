package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// TrafficBreakdown groups sessions by device, browser, source, referring
// host and country.
type TrafficBreakdown struct {
	Devices   []MetricCountResult `json:"devices"`
	Browsers  []MetricCountResult `json:"browsers"`
	Sources   []MetricCountResult `json:"trafficSources"`
	Referrers []MetricCountResult `json:"referrers"`
	Countries []MetricCountResult `json:"countries"`
}

// breakdownColumns is the closed set of columns a breakdown may group by.
var breakdownColumns = map[string]bool{
	"device_type":    true,
	"browser_name":   true,
	"traffic_source": true,
	"referrer_host":  true,
	"country":        true,
}

// GetTopByColumn counts distinct sessions per value of column.
func GetTopByColumn(db *gorm.DB, params QueryParams, column string) ([]MetricCountResult, error) {
	if !breakdownColumns[column] {
		return nil, fmt.Errorf("unsupported breakdown column %q", column)
	}

	query := fmt.Sprintf(`
	SELECT
		%[1]s AS name,
		COUNT(DISTINCT session_id) AS count
	FROM analytics_events
	WHERE timestamp BETWEEN ? AND ?
	AND %[1]s != ''
	GROUP BY %[1]s
	HAVING count > 0
	ORDER BY count DESC, name ASC
	LIMIT ?
	`, column)

	var results []MetricCountResult
	err := db.Raw(query,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching %s breakdown: %w", column, err)
	}
	if results == nil {
		results = []MetricCountResult{}
	}
	return results, nil
}

// GetTrafficBreakdown runs every breakdown. Country names are resolved by
// the caller.
func GetTrafficBreakdown(db *gorm.DB, params QueryParams) (*TrafficBreakdown, error) {
	var (
		b   TrafficBreakdown
		err error
	)
	if b.Devices, err = GetTopByColumn(db, params, "device_type"); err != nil {
		return nil, err
	}
	if b.Browsers, err = GetTopByColumn(db, params, "browser_name"); err != nil {
		return nil, err
	}
	if b.Sources, err = GetTopByColumn(db, params, "traffic_source"); err != nil {
		return nil, err
	}
	if b.Referrers, err = GetTopByColumn(db, params, "referrer_host"); err != nil {
		return nil, err
	}
	if b.Countries, err = GetTopByColumn(db, params, "country"); err != nil {
		return nil, err
	}
	return &b, nil
}
