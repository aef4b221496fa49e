package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// OrderMetrics summarises the checkout funnel.
type OrderMetrics struct {
	CheckoutStarts         int64   `json:"checkoutStarts"`
	CheckoutCompletes      int64   `json:"checkoutCompletes"`
	Purchases              int64   `json:"purchases"`
	CartAbandons           int64   `json:"cartAbandons"`
	TotalRevenue           float64 `json:"totalRevenue"`
	AverageOrderValue      float64 `json:"averageOrderValue"`
	CheckoutConversionRate float64 `json:"checkoutConversionRate"`
	PurchaseConversionRate float64 `json:"purchaseConversionRate"`
}

// DailyTrend is one UTC day of funnel activity.
type DailyTrend struct {
	Date              string  `json:"date"`
	CheckoutStarts    int64   `json:"checkoutStarts"`
	CheckoutCompletes int64   `json:"checkoutCompletes"`
	Purchases         int64   `json:"purchases"`
	Revenue           float64 `json:"revenue"`
}

type OrderAnalytics struct {
	Metrics     OrderMetrics `json:"metrics"`
	DailyTrends []DailyTrend `json:"dailyTrends"`
}

// GetOrderAnalytics returns funnel totals and one trend point per day in the
// window, zero-filled. Revenue counts checkout_complete events; a purchase
// event is per product line and would count an order more than once.
func GetOrderAnalytics(db *gorm.DB, params QueryParams) (*OrderAnalytics, error) {
	from, to := params.TimeFrame.From.UTC(), params.TimeFrame.To.UTC()

	var totals OrderMetrics
	err := db.Raw(`
	SELECT
		COALESCE(SUM(CASE WHEN event_type = 'checkout_start' THEN 1 ELSE 0 END), 0) AS checkout_starts,
		COALESCE(SUM(CASE WHEN event_type = 'checkout_complete' THEN 1 ELSE 0 END), 0) AS checkout_completes,
		COALESCE(SUM(CASE WHEN event_type = 'purchase' THEN 1 ELSE 0 END), 0) AS purchases,
		COALESCE(SUM(CASE WHEN event_type = 'cart_abandon' THEN 1 ELSE 0 END), 0) AS cart_abandons,
		COALESCE(SUM(CASE WHEN event_type = 'checkout_complete' THEN revenue ELSE 0 END), 0) AS total_revenue
	FROM analytics_events
	WHERE timestamp BETWEEN ? AND ?
	AND event_type IN ('checkout_start', 'checkout_complete', 'purchase', 'cart_abandon')
	`, from, to).Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching order metrics: %w", err)
	}

	totals.TotalRevenue = round2(totals.TotalRevenue)
	if totals.CheckoutCompletes > 0 {
		totals.AverageOrderValue = round2(totals.TotalRevenue / float64(totals.CheckoutCompletes))
	}
	totals.CheckoutConversionRate = Rate(float64(totals.CheckoutCompletes), float64(totals.CheckoutStarts))
	totals.PurchaseConversionRate = Rate(float64(totals.Purchases), float64(totals.CheckoutStarts))

	var daily []DailyTrend
	err = db.Raw(`
	SELECT
		strftime('%Y-%m-%d', timestamp) AS date,
		SUM(CASE WHEN event_type = 'checkout_start' THEN 1 ELSE 0 END) AS checkout_starts,
		SUM(CASE WHEN event_type = 'checkout_complete' THEN 1 ELSE 0 END) AS checkout_completes,
		SUM(CASE WHEN event_type = 'purchase' THEN 1 ELSE 0 END) AS purchases,
		COALESCE(SUM(CASE WHEN event_type = 'checkout_complete' THEN revenue ELSE 0 END), 0) AS revenue
	FROM analytics_events
	WHERE timestamp BETWEEN ? AND ?
	AND event_type IN ('checkout_start', 'checkout_complete', 'purchase')
	GROUP BY date
	ORDER BY date ASC
	`, from, to).Scan(&daily).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching daily order trends: %w", err)
	}

	byDate := make(map[string]DailyTrend, len(daily))
	for _, d := range daily {
		d.Revenue = round2(d.Revenue)
		byDate[d.Date] = d
	}
	days := params.TimeFrame.Days()
	trends := make([]DailyTrend, len(days))
	for i, day := range days {
		trend, ok := byDate[day]
		if !ok {
			trend = DailyTrend{Date: day}
		}
		trends[i] = trend
	}

	return &OrderAnalytics{Metrics: totals, DailyTrends: trends}, nil
}
