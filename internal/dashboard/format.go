// Package dashboard turns the admin reports into display values: rounded
// percentages, sorted tables, funnel ratios and duration labels. Every chart
// goes through the same helpers so side-by-side panels agree.
package dashboard

import (
	"math"
	"strconv"

	"shopsphere/internal/analytics"
)

// Percentage is part/whole as a whole-number percent. A zero or negative
// whole yields 0.
func Percentage(part, whole float64) int {
	if whole <= 0 || math.IsNaN(part) || math.IsInf(part, 0) {
		return 0
	}
	return int(math.Round(part / whole * 100))
}

// Rate is part/whole as a percent with two decimals, guarded like Percentage.
func Rate(part, whole float64) float64 {
	return analytics.Rate(part, whole)
}

// FormatDuration renders seconds as "Ns" under a minute, minutes under an
// hour and hours otherwise. Minutes and hours carry one decimal only when it
// is not zero.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0s"
	}
	switch {
	case seconds < 60:
		return strconv.Itoa(int(math.Round(seconds))) + "s"
	case seconds < 3600:
		return oneDecimal(seconds/60) + "m"
	default:
		return oneDecimal(seconds/3600) + "h"
	}
}

func oneDecimal(v float64) string {
	r := math.Round(v*10) / 10
	if r == math.Trunc(r) {
		return strconv.FormatFloat(r, 'f', 0, 64)
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}
