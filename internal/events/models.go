package events

import (
	"time"

	"shopsphere/internal/environment"
	"shopsphere/internal/pkg/geoip"
	"shopsphere/internal/pkg/user_agent"
)

// Values stored when the client or the resolver could not supply one.
const (
	UnknownDevice  = "unknown"
	UnknownBrowser = user_agent.Unknown
	UnknownSource  = environment.SourceDirect
	UnknownCountry = geoip.Unknown
)

// Event is one delivered shopper event. EventID is the client-generated id;
// its unique index is what makes redelivery harmless.
type Event struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	EventID          string    `gorm:"uniqueIndex;size:40;not null"`
	SessionID        string    `gorm:"index;size:40;not null"`
	EventType        string    `gorm:"index:idx_type_timestamp;not null"`
	ProductID        string    `gorm:"index"`
	ProductName      string    `gorm:"size:255"`
	CategoryID       string    `gorm:"index"`
	CategoryName     string    `gorm:"size:255"`
	OrderID          string    `gorm:"index"`
	Revenue          float64   `gorm:"not null;default:0"`
	TimeSpent        float64   `gorm:"not null;default:0"`
	PageView         bool      `gorm:"not null;default:false"`
	PageURL          string    `gorm:"type:text"`
	Referrer         string    `gorm:"type:text"`
	ReferrerHost     string    `gorm:"index;size:255"`
	ScrollDepth      int       `gorm:"not null;default:0"`
	InteractionCount int       `gorm:"not null;default:0"`
	DeviceType       string    `gorm:"index"`
	BrowserName      string    `gorm:"index"`
	BrowserVersion   string    `gorm:"size:32"`
	ScreenResolution string    `gorm:"size:32"`
	TrafficSource    string    `gorm:"index"`
	UTMSource        string    `gorm:"size:255"`
	UTMMedium        string    `gorm:"size:255"`
	UTMCampaign      string    `gorm:"size:255"`
	UTMTerm          string    `gorm:"size:255"`
	UTMContent       string    `gorm:"size:255"`
	Country          string    `gorm:"index;size:16"`
	IsReturningUser  bool      `gorm:"not null;default:false"`
	Metadata         string    `gorm:"type:text"`
	Timestamp        time.Time `gorm:"index:idx_type_timestamp;not null"`
	CreatedAt        time.Time
}

func (Event) TableName() string {
	return "analytics_events"
}
