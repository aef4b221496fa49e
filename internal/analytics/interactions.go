package analytics

import (
	"time"

	"github.com/goccy/go-json"

	"shopsphere/internal/events"
	"shopsphere/internal/pkg/referrers"
)

// Interaction is one row of the raw interaction log.
type Interaction struct {
	EventID       string         `json:"eventId"`
	SessionID     string         `json:"sessionId"`
	EventType     string         `json:"eventType"`
	ProductID     string         `json:"productId,omitempty"`
	CategoryID    string         `json:"categoryId,omitempty"`
	PageURL       string         `json:"pageUrl"`
	Referrer      string         `json:"referrer,omitempty"`
	ReferrerName  string         `json:"referrerName,omitempty"`
	DeviceType    string         `json:"deviceType"`
	BrowserName   string         `json:"browserName"`
	TrafficSource string         `json:"trafficSource"`
	Country       string         `json:"country"`
	Metadata      map[string]any `json:"metadata"`
	Timestamp     time.Time      `json:"timestamp"`
}

// InteractionPage is a page of the interaction log.
type InteractionPage struct {
	Interactions []Interaction `json:"interactions"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	Total        int64         `json:"total"`
	TotalPages   int           `json:"totalPages"`
}

// NewInteractionPage converts stored events into the wire page.
func NewInteractionPage(result events.InteractionsResult, page, limit int) InteractionPage {
	out := InteractionPage{
		Interactions: make([]Interaction, len(result.Events)),
		Page:         page,
		Limit:        limit,
		Total:        result.Total,
	}
	if limit > 0 {
		out.TotalPages = int((result.Total + int64(limit) - 1) / int64(limit))
	}
	for i, e := range result.Events {
		meta := map[string]any{}
		if e.Metadata != "" {
			_ = json.Unmarshal([]byte(e.Metadata), &meta)
		}
		row := Interaction{
			EventID:       e.EventID,
			SessionID:     e.SessionID,
			EventType:     e.EventType,
			ProductID:     e.ProductID,
			CategoryID:    e.CategoryID,
			PageURL:       e.PageURL,
			Referrer:      e.Referrer,
			DeviceType:    e.DeviceType,
			BrowserName:   e.BrowserName,
			TrafficSource: e.TrafficSource,
			Country:       e.Country,
			Metadata:      meta,
			Timestamp:     e.Timestamp.UTC(),
		}
		if e.ReferrerHost != "" {
			row.ReferrerName = referrers.FriendlyName(e.ReferrerHost)
		}
		out.Interactions[i] = row
	}
	return out
}
