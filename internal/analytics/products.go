package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// ProductPerformance is one row of the product performance table.
type ProductPerformance struct {
	ProductID          string  `json:"productId"`
	ProductName        string  `json:"productName"`
	Clicks             int64   `json:"clicks"`
	Views              int64   `json:"views"`
	AddToCarts         int64   `json:"addToCarts"`
	Purchases          int64   `json:"purchases"`
	Revenue            float64 `json:"revenue"`
	AvgTimeSpent       float64 `json:"avgTimeSpent"`
	UniqueUsers        int64   `json:"uniqueUsers"`
	ConversionRate     float64 `json:"conversionRate"`
	CartConversionRate float64 `json:"cartConversionRate"`
}

// GetProductPerformance aggregates per-product activity. Views count product
// clicks plus page views that carried the product id.
func GetProductPerformance(db *gorm.DB, params QueryParams) ([]ProductPerformance, error) {
	query := `
	SELECT
		product_id,
		MAX(product_name) AS product_name,
		SUM(CASE WHEN event_type = 'product_click' THEN 1 ELSE 0 END) AS clicks,
		SUM(CASE WHEN event_type = 'product_click' OR (event_type = 'page_time' AND page_view) THEN 1 ELSE 0 END) AS views,
		SUM(CASE WHEN event_type = 'add_to_cart' THEN 1 ELSE 0 END) AS add_to_carts,
		SUM(CASE WHEN event_type = 'purchase' THEN 1 ELSE 0 END) AS purchases,
		COALESCE(SUM(CASE WHEN event_type = 'purchase' THEN revenue ELSE 0 END), 0) AS revenue,
		COALESCE(AVG(CASE WHEN event_type = 'page_time' AND time_spent > 0 THEN time_spent END), 0) AS avg_time_spent,
		COUNT(DISTINCT session_id) AS unique_users
	FROM analytics_events
	WHERE timestamp BETWEEN ? AND ?
	AND product_id != ''
	GROUP BY product_id
	ORDER BY clicks DESC, product_id ASC
	LIMIT ?
	`

	var rows []ProductPerformance
	err := db.Raw(query,
		params.TimeFrame.From.UTC(),
		params.TimeFrame.To.UTC(),
		params.Limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching product performance: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		r.Revenue = round2(r.Revenue)
		r.AvgTimeSpent = round2(r.AvgTimeSpent)
		r.ConversionRate = Rate(float64(r.Purchases), float64(r.Clicks))
		r.CartConversionRate = Rate(float64(r.Purchases), float64(r.AddToCarts))
	}
	if rows == nil {
		rows = []ProductPerformance{}
	}
	return rows, nil
}
