// Package environment probes the host a shopper is browsing from: device
// class, browser, screen and traffic attribution. Everything here is pure.
package environment

import (
	"errors"
	"fmt"
	"strings"

	"shopsphere/internal/pkg/user_agent"
)

// ErrUnavailable is returned by a Provider that cannot read its host.
var ErrUnavailable = errors.New("environment unavailable")

// Environment is the snapshot of host signals the tracker enriches events with.
type Environment struct {
	UserAgent    string
	Platform     string
	URL          string
	Referrer     string
	ScreenWidth  int
	ScreenHeight int
	// DoNotTrack carries the raw header or navigator value ("1", "yes", "0", "").
	DoNotTrack string
	// ServerRender marks a render pass with no client-side storage.
	ServerRender bool
}

// Provider yields the current host environment.
type Provider interface {
	Current() (Environment, error)
}

// Static is a Provider over a fixed snapshot.
type Static Environment

func (s Static) Current() (Environment, error) {
	return Environment(s), nil
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (Environment, error)

func (f ProviderFunc) Current() (Environment, error) {
	return f()
}

// DoNotTrackEnabled reports whether the host signals Do-Not-Track.
func (e Environment) DoNotTrackEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(e.DoNotTrack)) {
	case "1", "yes", "true":
		return true
	}
	return false
}

// DeviceInfo is the session-level device summary.
type DeviceInfo struct {
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
	IsMobile  bool   `json:"isMobile"`
}

// Device summarises the environment for the session record.
func (e Environment) Device() DeviceInfo {
	return DeviceInfo{
		UserAgent: e.UserAgent,
		Platform:  e.Platform,
		IsMobile:  !user_agent.ParseUserAgent(e.UserAgent).Desktop,
	}
}

// ScreenResolution formats a screen size as "WxH", or "unknown" when either
// dimension is missing.
func ScreenResolution(width, height int) string {
	if width <= 0 || height <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", width, height)
}
