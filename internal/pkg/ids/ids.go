// Package ids generates sortable identifiers for sessions and events.
package ids

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns prefix followed by a ULID whose time component is at: a
// millisecond timestamp prefix and a random suffix.
func New(prefix string, at time.Time) string {
	return prefix + ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

// Time extracts the timestamp encoded in an id produced by New.
func Time(prefix, id string) (time.Time, bool) {
	if len(id) < len(prefix) || id[:len(prefix)] != prefix {
		return time.Time{}, false
	}
	parsed, err := ulid.ParseStrict(id[len(prefix):])
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}
