package dashboard

import "shopsphere/internal/analytics"

// FunnelStep is one bar of the checkout funnel.
type FunnelStep struct {
	Label      string
	Count      int64
	Percentage int
}

// Funnel is the checkout funnel derived from order totals. Both conversion
// rates are relative to checkout starts.
type Funnel struct {
	Steps                  []FunnelStep
	CheckoutConversionRate float64
	PurchaseConversionRate float64
	AbandonRate            float64
	AverageOrderValue      float64
}

func NewFunnel(m analytics.OrderMetrics) Funnel {
	starts := float64(m.CheckoutStarts)
	step := func(label string, n int64) FunnelStep {
		return FunnelStep{Label: label, Count: n, Percentage: Percentage(float64(n), starts)}
	}

	return Funnel{
		Steps: []FunnelStep{
			step("Checkout started", m.CheckoutStarts),
			step("Checkout completed", m.CheckoutCompletes),
			step("Purchased", m.Purchases),
		},
		CheckoutConversionRate: Rate(float64(m.CheckoutCompletes), starts),
		PurchaseConversionRate: Rate(float64(m.Purchases), starts),
		AbandonRate:            Rate(float64(m.CartAbandons), starts),
		AverageOrderValue:      m.AverageOrderValue,
	}
}
