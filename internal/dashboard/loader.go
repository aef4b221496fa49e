package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shopsphere/internal/analytics"
	"shopsphere/internal/pkg/async"
	"shopsphere/internal/transport"
)

// Reports is the read side of the admin API.
type Reports interface {
	ProductPerformance(ctx context.Context, r transport.DateRange) ([]analytics.ProductPerformance, error)
	CategoryAnalytics(ctx context.Context, r transport.DateRange) ([]analytics.CategoryAnalytics, error)
	OrderAnalytics(ctx context.Context, r transport.DateRange) (*analytics.OrderAnalytics, error)
	TrafficBreakdown(ctx context.Context, r transport.DateRange) (*analytics.TrafficBreakdown, error)
}

// Panel is one dashboard panel. Err is set when its report could not be
// fetched, and Data is then the zero value and must not be shown as "no data".
type Panel[T any] struct {
	Data T
	Err  error
}

func (p Panel[T]) Failed() bool { return p.Err != nil }

// Traffic holds the traffic breakdown charts.
type Traffic struct {
	Devices   []Slice
	Browsers  []Slice
	Sources   []Slice
	Referrers []Slice
	Countries []Slice
}

// Dashboard is everything the admin views render for one date range.
type Dashboard struct {
	Range      transport.DateRange
	Products   Panel[[]analytics.ProductPerformance]
	Categories Panel[[]analytics.CategoryAnalytics]
	Orders     Panel[*analytics.OrderAnalytics]
	Funnel     Panel[Funnel]
	Traffic    Panel[Traffic]
}

const (
	taskProducts   = "products"
	taskCategories = "categories"
	taskOrders     = "orders"
	taskTraffic    = "traffic"
)

// Loader fetches the four reports concurrently.
type Loader struct {
	reports Reports
	pool    *async.Pool
	logger  *slog.Logger
}

func NewLoader(reports Reports, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{reports: reports, pool: async.NewPool(4), logger: logger}
}

// Load fetches every panel for [from, to]. A failing report marks only its
// own panel.
func (l *Loader) Load(ctx context.Context, from, to time.Time) *Dashboard {
	r := transport.Since(from, to)

	tasks := []async.Task{
		{Name: taskProducts, Execute: func(ctx context.Context) (any, error) {
			return l.reports.ProductPerformance(ctx, r)
		}},
		{Name: taskCategories, Execute: func(ctx context.Context) (any, error) {
			return l.reports.CategoryAnalytics(ctx, r)
		}},
		{Name: taskOrders, Execute: func(ctx context.Context) (any, error) {
			return l.reports.OrderAnalytics(ctx, r)
		}},
		{Name: taskTraffic, Execute: func(ctx context.Context) (any, error) {
			return l.reports.TrafficBreakdown(ctx, r)
		}},
	}
	results := l.pool.Execute(ctx, tasks)

	d := &Dashboard{Range: r}
	d.Products = panelFrom[[]analytics.ProductPerformance](results, taskProducts)
	d.Categories = panelFrom[[]analytics.CategoryAnalytics](results, taskCategories)
	d.Orders = panelFrom[*analytics.OrderAnalytics](results, taskOrders)
	if d.Orders.Err == nil && d.Orders.Data == nil {
		d.Orders.Err = fmt.Errorf("%s: empty response", taskOrders)
	}

	if d.Orders.Err != nil {
		d.Funnel.Err = d.Orders.Err
	} else {
		d.Funnel.Data = NewFunnel(d.Orders.Data.Metrics)
	}

	traffic := panelFrom[*analytics.TrafficBreakdown](results, taskTraffic)
	if traffic.Err == nil && traffic.Data == nil {
		traffic.Err = fmt.Errorf("%s: empty response", taskTraffic)
	}
	if traffic.Err != nil {
		d.Traffic.Err = traffic.Err
	} else {
		d.Traffic.Data = Traffic{
			Devices:   Breakdown(traffic.Data.Devices, TitleLabel),
			Browsers:  Breakdown(traffic.Data.Browsers, nil),
			Sources:   Breakdown(traffic.Data.Sources, TitleLabel),
			Referrers: Breakdown(traffic.Data.Referrers, ReferrerLabel),
			Countries: Breakdown(traffic.Data.Countries, CountryLabel),
		}
	}

	for name, res := range results {
		if res.Err != nil {
			l.logger.Warn("Failed to load dashboard report",
				slog.String("report", name),
				slog.Any("error", res.Err))
		}
	}
	return d
}

func panelFrom[T any](results map[string]async.Result, name string) Panel[T] {
	res, ok := results[name]
	if !ok {
		return Panel[T]{Err: fmt.Errorf("%s: no result", name)}
	}
	if res.Err != nil {
		return Panel[T]{Err: fmt.Errorf("%s: %w", name, res.Err)}
	}
	data, ok := res.Data.(T)
	if !ok {
		return Panel[T]{Err: fmt.Errorf("%s: unexpected result type %T", name, res.Data)}
	}
	return Panel[T]{Data: data}
}
