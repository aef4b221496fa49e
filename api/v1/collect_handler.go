package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/prometheus/client_golang/prometheus"

	"shopsphere/internal/events"
	"shopsphere/internal/metrics"
	"shopsphere/internal/pkg/geoip"
	"shopsphere/internal/session"
	"shopsphere/internal/tracking"
)

const (
	// MaxBatchEvents bounds one batch-track body.
	MaxBatchEvents = tracking.MaxBatchSize

	endpointTrack  = "track"
	endpointBatch  = "batch"
	endpointBeacon = "beacon"

	errInvalidRequest = "Invalid request"
)

var ingestMetrics = metrics.NewIngest(prometheus.DefaultRegisterer)

// TrackEventHandler stores one event delivered immediately by the tracker.
func TrackEventHandler(ctx *cartridge.Context) error {
	var req tracking.TrackRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Logger.Debug("Failed to parse track request", slog.Any("error", err))
		return badRequest(ctx, errInvalidRequest)
	}
	return collect(ctx, endpointTrack, []tracking.EnrichedEvent{req.Event}, req.SessionInfo)
}

// BatchTrackHandler stores a flushed batch.
func BatchTrackHandler(ctx *cartridge.Context) error {
	var req tracking.BatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		ctx.Logger.Debug("Failed to parse batch request", slog.Any("error", err))
		return badRequest(ctx, errInvalidRequest)
	}
	if len(req.Events) > MaxBatchEvents {
		return ctx.Status(http.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Too many events in batch",
			"code":  "BATCH_TOO_LARGE",
		})
	}
	return collect(ctx, endpointBatch, req.Events, req.SessionInfo)
}

// BeaconHandler accepts a batch sent on page unload. The sender never reads
// the response, so every outcome answers 202.
func BeaconHandler(ctx *cartridge.Context) error {
	var req tracking.BatchRequest
	if err := json.Unmarshal(ctx.Body(), &req); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}
	if len(req.Events) > MaxBatchEvents {
		req.Events = req.Events[:MaxBatchEvents]
	}

	result, err := events.Collect(ctx.DBManager, ctx.Logger, geoip.Default(), events.CollectInput{
		Events:    req.Events,
		Session:   req.SessionInfo,
		IPAddress: clientIP(ctx.Ctx),
	})
	if err != nil {
		ctx.Logger.Warn("Failed to collect beacon batch", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}
	record(endpointBeacon, result)
	return ctx.SendStatus(http.StatusAccepted)
}

func collect(ctx *cartridge.Context, endpoint string, evts []tracking.EnrichedEvent, info session.Session) error {
	result, err := events.Collect(ctx.DBManager, ctx.Logger, geoip.Default(), events.CollectInput{
		Events:    evts,
		Session:   info,
		IPAddress: clientIP(ctx.Ctx),
	})
	if err != nil {
		if errors.Is(err, events.ErrMissingSession) {
			return badRequest(ctx, "Session id is required")
		}
		ctx.Logger.Error("Failed to collect events",
			slog.String("endpoint", endpoint),
			slog.Int("events", len(evts)),
			slog.Any("error", err))
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
			return ctx.Status(599).JSON(fiber.Map{})
		}
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect events",
			"code":  "COLLECTION_ERROR",
		})
	}
	record(endpoint, result)

	ctx.Logger.Debug("Collected events",
		slog.String("endpoint", endpoint),
		slog.String("session_id", info.SessionID),
		slog.Int("stored", result.Stored),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("rejected", result.Rejected))

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"success":    true,
		"stored":     result.Stored,
		"duplicates": result.Duplicates,
		"rejected":   result.Rejected,
	})
}
