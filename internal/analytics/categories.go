package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// CategoryAnalytics is one row of the category table.
type CategoryAnalytics struct {
	CategoryID     string  `json:"categoryId"`
	CategoryName   string  `json:"categoryName"`
	Views          int64   `json:"views"`
	UniqueVisitors int64   `json:"uniqueVisitors"`
	AvgTimeSpent   float64 `json:"avgTimeSpent"`
	BounceRate     float64 `json:"bounceRate"`
	EngagementRate float64 `json:"engagementRate"`
}

// GetCategoryAnalytics aggregates per-category activity. A session bounces
// from a category when it has exactly one event there.
func GetCategoryAnalytics(db *gorm.DB, params QueryParams) ([]CategoryAnalytics, error) {
	query := `
	WITH per_session AS (
		SELECT category_id, session_id, COUNT(*) AS n
		FROM analytics_events
		WHERE timestamp BETWEEN ? AND ?
		AND category_id != ''
		GROUP BY category_id, session_id
	),
	bounces AS (
		SELECT
			category_id,
			SUM(CASE WHEN n = 1 THEN 1 ELSE 0 END) AS bounced,
			COUNT(*) AS sessions
		FROM per_session
		GROUP BY category_id
	)
	SELECT
		e.category_id,
		MAX(e.category_name) AS category_name,
		SUM(CASE WHEN e.event_type = 'category_view' THEN 1 ELSE 0 END) AS views,
		COUNT(DISTINCT e.session_id) AS unique_visitors,
		COALESCE(AVG(CASE WHEN e.event_type = 'page_time' AND e.time_spent > 0 THEN e.time_spent END), 0) AS avg_time_spent,
		MAX(b.bounced) AS bounced,
		MAX(b.sessions) AS sessions
	FROM analytics_events e
	JOIN bounces b ON b.category_id = e.category_id
	WHERE e.timestamp BETWEEN ? AND ?
	AND e.category_id != ''
	GROUP BY e.category_id
	ORDER BY views DESC, e.category_id ASC
	LIMIT ?
	`

	var raw []struct {
		CategoryAnalytics
		Bounced  int64
		Sessions int64
	}
	from, to := params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()
	if err := db.Raw(query, from, to, from, to, params.Limit).Scan(&raw).Error; err != nil {
		return nil, fmt.Errorf("error fetching category analytics: %w", err)
	}

	rows := make([]CategoryAnalytics, len(raw))
	for i, r := range raw {
		row := r.CategoryAnalytics
		row.AvgTimeSpent = round2(row.AvgTimeSpent)
		row.BounceRate = Rate(float64(r.Bounced), float64(r.Sessions))
		if r.Sessions > 0 {
			row.EngagementRate = round2(100 - row.BounceRate)
		}
		rows[i] = row
	}
	return rows, nil
}
