// Package transport delivers tracked events to the collection API and reads
// the admin reports back.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker/v2"

	"shopsphere/internal/session"
	"shopsphere/internal/tracking"
)

// Collection and admin paths.
const (
	PathTrack         = "/analytics/track"
	PathBatchTrack    = "/analytics/batch-track"
	PathBeacon        = "/analytics/batch-track/beacon"
	PathAdminProducts = "/analytics/admin/product-performance"
	PathAdminCategory = "/analytics/admin/category-analytics"
	PathAdminOrders   = "/analytics/admin/order-analytics"
	PathAdminTraffic  = "/analytics/admin/traffic-breakdown"
	PathAdminLog      = "/analytics/admin/user-interactions"
	PathAdminSample   = "/analytics/admin/generate-sample-data"
	PathAdminClear    = "/analytics/admin/clear-data"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// ErrUnexpectedStatus matches any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError carries the status and a snippet of the response body.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Options configures a Client.
type Options struct {
	Endpoint         string
	Timeout          time.Duration
	FailureThreshold uint32
	Cooldown         time.Duration
	UserAgent        string
	Logger           *slog.Logger
}

// Client is the HTTP side of the pipeline. Calls share one circuit breaker:
// after FailureThreshold consecutive failures they fail fast until Cooldown
// passes, which keeps a dead collector from stalling every flush for the full
// timeout.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *fiber.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   *slog.Logger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "shopsphere-tracker"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "collector",
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < fiber.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Collector circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		timeout:  opts.Timeout,
		http: &fiber.Client{
			UserAgent:   opts.UserAgent,
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// SendEvent posts one critical event to the single-event endpoint.
func (c *Client) SendEvent(ctx context.Context, event tracking.EnrichedEvent, info session.Session) error {
	return c.do(ctx, fiber.MethodPost, PathTrack, nil, tracking.TrackRequest{Event: event, SessionInfo: info}, nil)
}

// SendBatch posts a flush batch.
func (c *Client) SendBatch(ctx context.Context, events []tracking.EnrichedEvent, info session.Session) error {
	return c.do(ctx, fiber.MethodPost, PathBatchTrack, nil, tracking.BatchRequest{Events: events, SessionInfo: info}, nil)
}

// Beacon posts a batch the way a page does on unload: the breaker is
// bypassed and the response is never inspected. Only a failure to hand the
// request over is reported.
func (c *Client) Beacon(events []tracking.EnrichedEvent, info session.Session) error {
	agent := c.http.Post(c.endpoint + PathBeacon).
		JSON(tracking.BatchRequest{Events: events, SessionInfo: info}).
		Timeout(c.timeout)
	_, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("beacon: %w", errors.Join(errs...))
	}
	return nil
}

// BreakerState reports the circuit breaker state, for diagnostics.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	timeout, err := c.timeoutFor(ctx)
	if err != nil {
		return err
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		var agent *fiber.Agent
		switch method {
		case fiber.MethodGet:
			agent = c.http.Get(c.endpoint + path)
		case fiber.MethodDelete:
			agent = c.http.Delete(c.endpoint + path)
		default:
			agent = c.http.Post(c.endpoint + path)
		}
		if len(query) > 0 {
			agent.QueryString(query.Encode())
		}
		if body != nil {
			agent.JSON(body)
		}
		agent.Timeout(timeout)

		code, respBody, errs := agent.Bytes()
		if len(errs) > 0 {
			return nil, fmt.Errorf("%s %s: %w", method, path, errors.Join(errs...))
		}
		if code < 200 || code > 299 {
			return nil, &StatusError{Method: method, Path: path, Code: code, Body: snippet(respBody)}
		}
		return respBody, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// timeoutFor bounds the request by both the client timeout and ctx.
func (c *Client) timeoutFor(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		timeout = min(timeout, remaining)
	}
	return timeout, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
