package transport

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"shopsphere/internal/analytics"
	"shopsphere/internal/timeframe"
)

// DateRange is the startDate/endDate pair every admin report takes. Empty
// strings leave the server defaults in place.
type DateRange struct {
	StartDate string
	EndDate   string
}

func (r DateRange) values() url.Values {
	v := url.Values{}
	if r.StartDate != "" {
		v.Set("startDate", r.StartDate)
	}
	if r.EndDate != "" {
		v.Set("endDate", r.EndDate)
	}
	return v
}

// Since builds a range from the given day through to.
func Since(from, to time.Time) DateRange {
	return DateRange{StartDate: from.Format(timeframe.DateLayout), EndDate: to.Format(timeframe.DateLayout)}
}

// InteractionQuery pages through the raw interaction log.
type InteractionQuery struct {
	DateRange
	Page       int
	Limit      int
	EventType  string
	ProductID  string
	CategoryID string
}

// SampleDataResult is returned by GenerateSampleData.
type SampleDataResult struct {
	Sessions int `json:"sessions"`
	Events   int `json:"events"`
}

func (c *Client) ProductPerformance(ctx context.Context, r DateRange) ([]analytics.ProductPerformance, error) {
	var rows []analytics.ProductPerformance
	err := c.do(ctx, fiber.MethodGet, PathAdminProducts, r.values(), nil, &rows)
	return rows, err
}

func (c *Client) CategoryAnalytics(ctx context.Context, r DateRange) ([]analytics.CategoryAnalytics, error) {
	var rows []analytics.CategoryAnalytics
	err := c.do(ctx, fiber.MethodGet, PathAdminCategory, r.values(), nil, &rows)
	return rows, err
}

func (c *Client) OrderAnalytics(ctx context.Context, r DateRange) (*analytics.OrderAnalytics, error) {
	var report analytics.OrderAnalytics
	if err := c.do(ctx, fiber.MethodGet, PathAdminOrders, r.values(), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) TrafficBreakdown(ctx context.Context, r DateRange) (*analytics.TrafficBreakdown, error) {
	var report analytics.TrafficBreakdown
	if err := c.do(ctx, fiber.MethodGet, PathAdminTraffic, r.values(), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) UserInteractions(ctx context.Context, q InteractionQuery) (*analytics.InteractionPage, error) {
	v := q.values()
	if q.Page > 0 {
		v.Set("page", itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", itoa(q.Limit))
	}
	if q.EventType != "" {
		v.Set("eventType", q.EventType)
	}
	if q.ProductID != "" {
		v.Set("productId", q.ProductID)
	}
	if q.CategoryID != "" {
		v.Set("categoryId", q.CategoryID)
	}

	var page analytics.InteractionPage
	if err := c.do(ctx, fiber.MethodGet, PathAdminLog, v, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GenerateSampleData(ctx context.Context) (SampleDataResult, error) {
	var result SampleDataResult
	err := c.do(ctx, fiber.MethodPost, PathAdminSample, nil, nil, &result)
	return result, err
}

func (c *Client) ClearData(ctx context.Context) error {
	return c.do(ctx, fiber.MethodDelete, PathAdminClear, nil, nil, nil)
}
