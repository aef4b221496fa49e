// Package session owns the shopper's browsing session: its id, start time,
// page-view counter and returning-user flag.
package session

import (
	"time"

	"shopsphere/internal/environment"
)

// Storage keys. The first four live in the per-session store, the last two in
// the long-lived store.
const (
	KeySessionID     = "analytics_session_id"
	KeySessionStart  = "analytics_session_start"
	KeyPageViews     = "analytics_page_views"
	KeyLastActivity  = "analytics_last_activity"
	KeyReturningUser = "analytics_returning_user"
	KeyConsent       = "analytics_consent"
)

// IDPrefix prefixes every session id.
const IDPrefix = "sess_"

// DefaultTimeout is the inactivity window after which a stored session is
// superseded by a new one.
const DefaultTimeout = 30 * time.Minute

// Session is the wire and in-memory representation of a browsing session.
type Session struct {
	SessionID       string                 `json:"sessionId"`
	StartTime       time.Time              `json:"startTime"`
	PageViews       int                    `json:"pageViews"`
	IsReturningUser bool                   `json:"isReturningUser"`
	DeviceInfo      environment.DeviceInfo `json:"deviceInfo"`
}
