package dashboard

import (
	"cmp"
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shopsphere/internal/analytics"
	"shopsphere/internal/pkg/geoip"
	"shopsphere/internal/pkg/referrers"
)

// Slice is one segment of a breakdown chart.
type Slice struct {
	Key        string
	Label      string
	Count      int64
	Percentage int
}

// Labeler turns a stored value into its display label.
type Labeler func(key string) string

// TitleLabel title-cases a stored value, so "mobile" reads "Mobile".
func TitleLabel(key string) string {
	return cases.Title(language.English).String(key)
}

// CountryLabel resolves an ISO country code to its name.
func CountryLabel(key string) string {
	return geoip.CountryName(key)
}

// ReferrerLabel names a referring host, so "m.facebook.com" reads "Facebook".
func ReferrerLabel(key string) string {
	return referrers.FriendlyName(key)
}

// Breakdown converts counts into slices carrying their share of the total,
// largest first and ties broken by label.
func Breakdown(rows []analytics.MetricCountResult, label Labeler) []Slice {
	if label == nil {
		label = TitleLabel
	}
	var total int64
	for _, r := range rows {
		total += r.Count
	}

	out := make([]Slice, 0, len(rows))
	for _, r := range rows {
		out = append(out, Slice{
			Key:        r.Name,
			Label:      label(r.Name),
			Count:      r.Count,
			Percentage: Percentage(float64(r.Count), float64(total)),
		})
	}
	slices.SortStableFunc(out, func(a, b Slice) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// BreakdownMap is Breakdown over a plain label-to-count map.
func BreakdownMap(counts map[string]int64, label Labeler) []Slice {
	rows := make([]analytics.MetricCountResult, 0, len(counts))
	for name, n := range counts {
		rows = append(rows, analytics.MetricCountResult{Name: name, Count: n})
	}
	return Breakdown(rows, label)
}
