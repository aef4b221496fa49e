package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "shopsphere/api/v1"
	"shopsphere/internal/config"
	"shopsphere/internal/transport"
)

// publicCORSConfig lets any storefront origin deliver events.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

var adminCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,POST,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept",
}

func noContent(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}

// MountAppRoutes mounts the collector, admin reports, health and metrics.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting would interfere with development and tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// A storefront flushes every few seconds and sends critical events
	// individually, so allow bursts well above the flush rate.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	collectorConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		EnableSecFetchSite: cartridge.Bool(false),
	}

	adminConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         adminCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	internalConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// === OPERATIONS ===
	srv.Get("/_health", v1.HealthHandler, internalConfig)
	srv.Head("/_health", v1.HealthHandler, internalConfig)
	srv.Get("/metrics", v1.MetricsHandler, internalConfig)

	// === COLLECTOR ===
	srv.Post(transport.PathTrack, v1.TrackEventHandler, collectorConfig)
	srv.Options(transport.PathTrack, noContent, collectorConfig)
	srv.Post(transport.PathBatchTrack, v1.BatchTrackHandler, collectorConfig)
	srv.Options(transport.PathBatchTrack, noContent, collectorConfig)
	srv.Post(transport.PathBeacon, v1.BeaconHandler, collectorConfig)
	srv.Options(transport.PathBeacon, noContent, collectorConfig)

	// === ADMIN REPORTS ===
	srv.Get(transport.PathAdminProducts, v1.ProductPerformanceHandler, adminConfig)
	srv.Get(transport.PathAdminCategory, v1.CategoryAnalyticsHandler, adminConfig)
	srv.Get(transport.PathAdminOrders, v1.OrderAnalyticsHandler, adminConfig)
	srv.Get(transport.PathAdminTraffic, v1.TrafficBreakdownHandler, adminConfig)
	srv.Get(transport.PathAdminLog, v1.UserInteractionsHandler, adminConfig)
	srv.Post(transport.PathAdminSample, v1.GenerateSampleDataHandler, adminConfig)
	srv.Delete(transport.PathAdminClear, v1.ClearDataHandler, adminConfig)
	for _, path := range []string{
		transport.PathAdminProducts, transport.PathAdminCategory, transport.PathAdminOrders,
		transport.PathAdminTraffic, transport.PathAdminLog, transport.PathAdminSample, transport.PathAdminClear,
	} {
		srv.Options(path, noContent, adminConfig)
	}
}
