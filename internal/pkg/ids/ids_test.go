package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := New("sess_", at)
	b := New("sess_", at)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("sess_")+26)
	assert.Less(t, a, b, "ids minted in the same millisecond stay ordered")

	got, ok := Time("sess_", a)
	require.True(t, ok)
	assert.True(t, at.Equal(got))
}

func TestTimeRejectsForeignIDs(t *testing.T) {
	_, ok := Time("sess_", "evt_01HQ3Z7Q5V8X9Y0Z1A2B3C4D5E")
	assert.False(t, ok)
	_, ok = Time("sess_", "sess_not-a-ulid")
	assert.False(t, ok)
}
