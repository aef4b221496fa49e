package v1

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"

	"shopsphere/internal/analytics"
	"shopsphere/internal/events"
	"shopsphere/internal/seeder"
	"shopsphere/internal/timeframe"
)

const (
	defaultInteractionLimit = 50
	maxInteractionLimit     = 500
)

func badRequest(ctx *cartridge.Context, message string) error {
	return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func serverError(ctx *cartridge.Context, report string, err error) error {
	ctx.Logger.Error("Failed to build report", slog.String("report", report), slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load " + report,
		"code":  "REPORT_ERROR",
	})
}

// queryParams reads startDate, endDate and tz from the query string.
func queryParams(ctx *cartridge.Context) (analytics.QueryParams, error) {
	parser := timeframe.NewTimeFrameParser()
	tf, err := parser.ParseTimeFrame(timeframe.TimeFrameParserParams{
		StartDate: ctx.Query("startDate"),
		EndDate:   ctx.Query("endDate"),
		Tz:        ctx.Query("tz"),
	})
	if err != nil {
		return analytics.QueryParams{}, err
	}
	return analytics.NewQueryParams(tf), nil
}

func ProductPerformanceHandler(ctx *cartridge.Context) error {
	params, err := queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}
	rows, err := analytics.GetProductPerformance(ctx.DB(), params)
	if err != nil {
		return serverError(ctx, "product performance", err)
	}
	return ctx.JSON(rows)
}

func CategoryAnalyticsHandler(ctx *cartridge.Context) error {
	params, err := queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}
	rows, err := analytics.GetCategoryAnalytics(ctx.DB(), params)
	if err != nil {
		return serverError(ctx, "category analytics", err)
	}
	return ctx.JSON(rows)
}

func OrderAnalyticsHandler(ctx *cartridge.Context) error {
	params, err := queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}
	report, err := analytics.GetOrderAnalytics(ctx.DB(), params)
	if err != nil {
		return serverError(ctx, "order analytics", err)
	}
	return ctx.JSON(report)
}

func TrafficBreakdownHandler(ctx *cartridge.Context) error {
	params, err := queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}
	report, err := analytics.GetTrafficBreakdown(ctx.DB(), params)
	if err != nil {
		return serverError(ctx, "traffic breakdown", err)
	}
	return ctx.JSON(report)
}

func UserInteractionsHandler(ctx *cartridge.Context) error {
	params, err := queryParams(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	page := max(ctx.QueryInt("page", 1), 1)
	limit := ctx.QueryInt("limit", defaultInteractionLimit)
	if limit < 1 {
		limit = defaultInteractionLimit
	}
	limit = min(limit, maxInteractionLimit)

	result, err := events.GetFilteredInteractions(ctx.DB(), events.InteractionFilters{
		FromDate:   params.TimeFrame.From,
		ToDate:     params.TimeFrame.To,
		EventType:  ctx.Query("eventType"),
		ProductID:  ctx.Query("productId"),
		CategoryID: ctx.Query("categoryId"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return serverError(ctx, "user interactions", err)
	}
	return ctx.JSON(analytics.NewInteractionPage(result, page, limit))
}

// GenerateSampleDataHandler fills the store with synthetic shopper sessions.
func GenerateSampleDataHandler(ctx *cartridge.Context) error {
	s := seeder.NewSeeder(ctx.DBManager, ctx.Logger, seeder.DefaultSessions)
	result, err := s.Run(ctx.UserContext())
	if err != nil {
		ctx.Logger.Error("Failed to generate sample data", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate sample data",
			"code":  "SEED_ERROR",
		})
	}
	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"sessions": result.Sessions,
		"events":   result.Events,
	})
}

// ClearDataHandler deletes every stored event and purges cached reports.
func ClearDataHandler(ctx *cartridge.Context) error {
	db := ctx.DB()
	deleted, err := events.DeleteAllEvents(db, ctx.Logger)
	if err != nil {
		ctx.Logger.Error("Failed to clear events", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear data",
			"code":  "CLEAR_ERROR",
		})
	}
	purged, err := cache.PurgeAllCaches(db)
	if err != nil {
		ctx.Logger.Warn("Failed to purge caches", slog.Any("error", err))
	}
	ctx.Logger.Info("Cleared analytics data",
		slog.Int64("events_deleted", deleted),
		slog.Int64("cache_rows_deleted", purged))
	return ctx.JSON(fiber.Map{"success": true, "deleted": deleted})
}
