// Package tracking is the storefront half of the analytics pipeline: it
// validates and enriches shopper events, queues them, and flushes them to the
// collection endpoint.
package tracking

import (
	"errors"
	"fmt"
	"time"

	"shopsphere/internal/environment"
	"shopsphere/internal/session"
)

// EventType is one of the fixed set of shopper actions.
type EventType string

const (
	EventProductClick     EventType = "product_click"
	EventCategoryView     EventType = "category_view"
	EventPageTime         EventType = "page_time"
	EventAddToCart        EventType = "add_to_cart"
	EventPurchase         EventType = "purchase"
	EventWishlistAdd      EventType = "wishlist_add"
	EventShare            EventType = "share"
	EventSearch           EventType = "search"
	EventFilterApply      EventType = "filter_apply"
	EventCheckoutStart    EventType = "checkout_start"
	EventCheckoutComplete EventType = "checkout_complete"
	EventCartAbandon      EventType = "cart_abandon"
)

// EventTypes lists every valid type in a stable order.
var EventTypes = []EventType{
	EventProductClick, EventCategoryView, EventPageTime, EventAddToCart,
	EventPurchase, EventWishlistAdd, EventShare, EventSearch,
	EventFilterApply, EventCheckoutStart, EventCheckoutComplete, EventCartAbandon,
}

var validTypes = func() map[EventType]bool {
	m := make(map[EventType]bool, len(EventTypes))
	for _, t := range EventTypes {
		m[t] = true
	}
	return m
}()

func (t EventType) Valid() bool {
	return validTypes[t]
}

// Critical types are sent immediately as well as batched.
func (t EventType) Critical() bool {
	return t == EventPurchase || t == EventCheckoutComplete
}

// RequiresProduct reports whether events of this type must carry a product id.
func (t EventType) RequiresProduct() bool {
	switch t {
	case EventProductClick, EventAddToCart, EventPurchase, EventWishlistAdd:
		return true
	}
	return false
}

// RequiresCategory reports whether events of this type must carry a category id.
func (t EventType) RequiresCategory() bool {
	return t == EventCategoryView
}

// Well-known metadata keys.
const (
	MetaProductName   = "productName"
	MetaCategoryName  = "categoryName"
	MetaCategoryID    = "categoryId"
	MetaPosition      = "position"
	MetaPage          = "page"
	MetaTimeSpent     = "timeSpent"
	MetaPageView      = "pageView"
	MetaQuantity      = "quantity"
	MetaPrice         = "price"
	MetaOrderID       = "orderId"
	MetaRevenue       = "revenue"
	MetaPlatform      = "platform"
	MetaURL           = "url"
	MetaQuery         = "query"
	MetaResultsCount  = "resultsCount"
	MetaFilters       = "filters"
	MetaCartValue     = "cartValue"
	MetaItemCount     = "itemCount"
	MetaScrollDepth   = "scrollDepth"
	MetaInteractions  = "interactionCount"
	MetaCampaignData  = "campaignData"
	MetaTrafficSource = "trafficSource"
)

// Metadata is the open attribute bag carried by an event.
type Metadata map[string]any

var (
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrMissingProductID  = errors.New("product id required")
	ErrMissingCategoryID = errors.New("category id required")
)

// Event is a raw shopper action as handed to the tracker.
type Event struct {
	Type       EventType `json:"type"`
	ProductID  string    `json:"productId,omitempty"`
	CategoryID string    `json:"categoryId,omitempty"`
	Metadata   Metadata  `json:"metadata"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate checks the type and the per-type required ids.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.Type.RequiresProduct() && e.ProductID == "" {
		return fmt.Errorf("%w for %s", ErrMissingProductID, e.Type)
	}
	if e.Type.RequiresCategory() && e.CategoryID == "" {
		return fmt.Errorf("%w for %s", ErrMissingCategoryID, e.Type)
	}
	return nil
}

// EnrichedEvent is an Event stamped with page, device and attribution context.
// It is built once at enqueue time and never modified afterwards.
type EnrichedEvent struct {
	Event
	EventID          string                    `json:"eventId"`
	PageURL          string                    `json:"pageUrl"`
	Referrer         string                    `json:"referrer"`
	ScrollDepth      int                       `json:"scrollDepth"`
	InteractionCount int                       `json:"interactionCount"`
	DeviceType       string                    `json:"deviceType"`
	BrowserName      string                    `json:"browserName"`
	BrowserVersion   string                    `json:"browserVersion"`
	ScreenResolution string                    `json:"screenResolution"`
	TrafficSource    string                    `json:"trafficSource"`
	CampaignData     *environment.CampaignData `json:"campaignData"`
}

// TrackRequest is the body of POST /analytics/track.
type TrackRequest struct {
	Event       EnrichedEvent   `json:"event"`
	SessionInfo session.Session `json:"sessionInfo"`
}

// BatchRequest is the body of POST /analytics/batch-track.
type BatchRequest struct {
	Events      []EnrichedEvent `json:"events"`
	SessionInfo session.Session `json:"sessionInfo"`
}
