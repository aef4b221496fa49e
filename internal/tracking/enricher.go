package tracking

import (
	"shopsphere/internal/environment"
	"shopsphere/internal/pkg/ids"
	"shopsphere/internal/pkg/user_agent"
)

// EventIDPrefix prefixes client-generated event ids.
const EventIDPrefix = "evt_"

// enricher stamps events with the device context. The user agent is parsed
// once since it cannot change within a page load.
type enricher struct {
	referrer         string
	deviceType       string
	browserName      string
	browserVersion   string
	screenResolution string
}

func newEnricher(env environment.Environment) *enricher {
	ua := user_agent.ParseUserAgent(env.UserAgent)
	return &enricher{
		referrer:         env.Referrer,
		deviceType:       ua.Device,
		browserName:      ua.Browser,
		browserVersion:   ua.BrowserVersion,
		screenResolution: environment.ScreenResolution(env.ScreenWidth, env.ScreenHeight),
	}
}

func (en *enricher) enrich(e Event, page pageSnapshot) EnrichedEvent {
	attribution := environment.TrafficSource(page.URL, en.referrer)
	return EnrichedEvent{
		Event:            e,
		EventID:          ids.New(EventIDPrefix, e.Timestamp),
		PageURL:          page.URL,
		Referrer:         en.referrer,
		ScrollDepth:      page.ScrollDepth,
		InteractionCount: page.Interactions,
		DeviceType:       en.deviceType,
		BrowserName:      en.browserName,
		BrowserVersion:   en.browserVersion,
		ScreenResolution: en.screenResolution,
		TrafficSource:    attribution.Source,
		CampaignData:     attribution.Campaign,
	}
}
