// Package analytics computes the admin reports from stored shopper events.
//
//   - products.go: per-product performance
//   - categories.go: per-category engagement
//   - orders.go: checkout funnel and daily trends
//   - traffic.go: device, browser, source and country breakdowns
package analytics

import (
	"math"

	"shopsphere/internal/timeframe"
)

// MetricCountResult represents a generic key-count pair for query results
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// QueryParams scopes a report query.
type QueryParams struct {
	TimeFrame *timeframe.TimeFrame
	Limit     int
}

// DefaultLimit caps top-N report rows.
const DefaultLimit = 100

func NewQueryParams(tf *timeframe.TimeFrame) QueryParams {
	return QueryParams{TimeFrame: tf, Limit: DefaultLimit}
}

// Rate returns part/whole as a percentage with two decimals, and 0 when whole
// is not positive.
func Rate(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(part/whole*10000) / 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
