package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"shopsphere/internal/analytics"
)

type Direction string

const (
	Descending Direction = "desc"
	Ascending  Direction = "asc"
)

// Field extracts a sortable value from a row. It must return a string or a
// number.
type Field[T any] func(T) any

// Sorter holds the active column and direction of one table.
type Sorter struct {
	mu        sync.Mutex
	column    string
	direction Direction
	collator  *collate.Collator
}

// NewSorter starts with column sorted descending. Strings compare in the
// collation order of tag.
func NewSorter(column string, tag language.Tag) *Sorter {
	return &Sorter{
		column:    column,
		direction: Descending,
		collator:  collate.New(tag, collate.IgnoreCase),
	}
}

// Toggle selects column. Selecting the active column flips the direction; a
// new column starts descending.
func (s *Sorter) Toggle(column string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if column == s.column {
		if s.direction == Descending {
			s.direction = Ascending
		} else {
			s.direction = Descending
		}
		return
	}
	s.column = column
	s.direction = Descending
}

// State reports the active column and direction.
func (s *Sorter) State() (string, Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.column, s.direction
}

// Sort returns a sorted copy of rows. Rows are left in input order when the
// active column has no field.
func Sort[T any](s *Sorter, rows []T, fields map[string]Field[T]) []T {
	out := slices.Clone(rows)
	column, direction := s.State()
	field, ok := fields[column]
	if !ok {
		return out
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	slices.SortStableFunc(out, func(a, b T) int {
		c := s.compare(field(a), field(b))
		if direction == Descending {
			return -c
		}
		return c
	})
	return out
}

// compare must be called with mu held; a Collator is not safe for
// concurrent use.
func (s *Sorter) compare(a, b any) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return s.collator.CompareString(as, bs)
		}
	}
	an, aok := number(a)
	bn, bok := number(b)
	if aok && bok {
		return sign(an - bn)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func sign(d float64) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}

// ProductFields are the sortable columns of the product performance table.
var ProductFields = map[string]Field[analytics.ProductPerformance]{
	"productName":        func(r analytics.ProductPerformance) any { return r.ProductName },
	"clicks":             func(r analytics.ProductPerformance) any { return r.Clicks },
	"views":              func(r analytics.ProductPerformance) any { return r.Views },
	"addToCarts":         func(r analytics.ProductPerformance) any { return r.AddToCarts },
	"purchases":          func(r analytics.ProductPerformance) any { return r.Purchases },
	"revenue":            func(r analytics.ProductPerformance) any { return r.Revenue },
	"avgTimeSpent":       func(r analytics.ProductPerformance) any { return r.AvgTimeSpent },
	"uniqueUsers":        func(r analytics.ProductPerformance) any { return r.UniqueUsers },
	"conversionRate":     func(r analytics.ProductPerformance) any { return r.ConversionRate },
	"cartConversionRate": func(r analytics.ProductPerformance) any { return r.CartConversionRate },
}

// CategoryFields are the sortable columns of the category table.
var CategoryFields = map[string]Field[analytics.CategoryAnalytics]{
	"categoryName":   func(r analytics.CategoryAnalytics) any { return r.CategoryName },
	"views":          func(r analytics.CategoryAnalytics) any { return r.Views },
	"uniqueVisitors": func(r analytics.CategoryAnalytics) any { return r.UniqueVisitors },
	"avgTimeSpent":   func(r analytics.CategoryAnalytics) any { return r.AvgTimeSpent },
	"bounceRate":     func(r analytics.CategoryAnalytics) any { return r.BounceRate },
	"engagementRate": func(r analytics.CategoryAnalytics) any { return r.EngagementRate },
}
