package v1

import (
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/karloscodes/cartridge"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopsphere/internal/events"
)

var promHandler = adaptor.HTTPHandler(promhttp.Handler())

// MetricsHandler serves the Prometheus registry.
func MetricsHandler(ctx *cartridge.Context) error {
	return promHandler(ctx.Ctx)
}

func record(endpoint string, result events.CollectResult) {
	ingestMetrics.Received(endpoint, result.Stored)
	if result.Duplicates > 0 {
		ingestMetrics.Duplicates(result.Duplicates)
	}
	if result.Rejected > 0 {
		ingestMetrics.Rejected("invalid", result.Rejected)
	}
}
