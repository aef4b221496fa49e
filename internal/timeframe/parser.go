package timeframe

import (
	"fmt"
	"time"
)

// TimeWindowBuffer extends an end date of today slightly past now so events
// delivered with a small clock skew are still counted.
const TimeWindowBuffer = 5 * time.Minute

type TimeFrameParserParams struct {
	StartDate string
	EndDate   string
	Tz        string
}

type TimeFrameParser struct {
	timeProvider TimeProvider
}

func NewTimeFrameParser(timeProvider ...TimeProvider) *TimeFrameParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &TimeFrameParser{
		timeProvider: provider,
	}
}

// ParseTimeFrame reads YYYY-MM-DD dates in the given zone (UTC when empty).
// A missing start defaults to DefaultWindowDays ago and a missing end to now.
func (p *TimeFrameParser) ParseTimeFrame(params TimeFrameParserParams) (*TimeFrame, error) {
	from, to, err := p.parseCustomDateRange(params)
	if err != nil {
		return nil, err
	}
	return NewTimeFrame(from, to)
}

func (p *TimeFrameParser) parseCustomDateRange(params TimeFrameParserParams) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(params.Tz)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("error loading timezone: %w", err)
	}
	now := p.timeProvider.Now(loc)

	defaultFrom := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -DefaultWindowDays)
	defaultTo := now

	from, err := p.parseDateWithDefault(params.StartDate, defaultFrom, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid 'startDate': %w", err)
	}

	to, err := p.parseDateWithDefault(params.EndDate, defaultTo, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid 'endDate': %w", err)
	}

	return from, to, nil
}

func (p *TimeFrameParser) parseDateWithDefault(dateStr string, defaultDate time.Time, loc *time.Location, isEndDate bool) (time.Time, error) {
	if dateStr == "" {
		return defaultDate, nil
	}

	date, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, err
	}

	// Use stable now for today comparison
	now := p.timeProvider.Now(loc)
	isToday := date.Year() == now.Year() && date.Month() == now.Month() && date.Day() == now.Day()

	if isToday && isEndDate {
		// Buffer past now but never into tomorrow.
		endOfRequestedDate := time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 999999999, loc)
		bufferedTime := now.Add(TimeWindowBuffer)
		if bufferedTime.After(endOfRequestedDate) {
			return endOfRequestedDate, nil
		}
		return bufferedTime, nil
	}

	if isEndDate {
		endOfDay := time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 999999999, loc)
		if endOfDay.After(now) {
			bufferedTime := now.Add(TimeWindowBuffer)
			if bufferedTime.After(endOfDay) {
				return endOfDay, nil
			}
			return bufferedTime, nil
		}
		return endOfDay, nil
	}

	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc), nil
}
