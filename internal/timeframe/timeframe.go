// Package timeframe turns the admin API's startDate/endDate query parameters
// into a UTC reporting window.
package timeframe

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of startDate, endDate and daily trend keys.
const DateLayout = "2006-01-02"

// DefaultWindowDays is used when startDate is omitted.
const DefaultWindowDays = 30

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TimeFrame is an inclusive reporting window in UTC.
type TimeFrame struct {
	From time.Time
	To   time.Time
}

func NewTimeFrame(from, to time.Time) (*TimeFrame, error) {
	if from.After(to) {
		return nil, fmt.Errorf("fromTime must be before toTime")
	}
	return &TimeFrame{From: from.UTC(), To: to.UTC()}, nil
}

// Days lists every calendar day in the window, oldest first.
func (tf *TimeFrame) Days() []string {
	var days []string
	start := time.Date(tf.From.Year(), tf.From.Month(), tf.From.Day(), 0, 0, 0, 0, time.UTC)
	for d := start; !d.After(tf.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}
