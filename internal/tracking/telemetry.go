package tracking

import "time"

// Drop reasons reported to Telemetry.
const (
	DropInvalid  = "invalid"
	DropOverflow = "overflow"
	DropPanic    = "panic"
)

// Telemetry observes pipeline health. Implementations must be safe for
// concurrent use.
type Telemetry interface {
	EventTracked(eventType string)
	EventsDropped(reason string, n int)
	FlushSucceeded(n int, d time.Duration)
	FlushFailed(n int)
	CriticalSendFailed()
	QueueDepth(n int)
}

type nopTelemetry struct{}

func (nopTelemetry) EventTracked(string)               {}
func (nopTelemetry) EventsDropped(string, int)         {}
func (nopTelemetry) FlushSucceeded(int, time.Duration) {}
func (nopTelemetry) FlushFailed(int)                   {}
func (nopTelemetry) CriticalSendFailed()               {}
func (nopTelemetry) QueueDepth(int)                    {}
