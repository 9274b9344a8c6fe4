package storeapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedTimestampString(t *testing.T) {
	t.Run("zero offset omits suffix", func(t *testing.T) {
		ts := FixedTimestamp{Seconds: 100, Micros: 0}
		assert.Equal(t, "100.000000", ts.String())
	})

	t.Run("nonzero offset appends hex suffix", func(t *testing.T) {
		ts := FixedTimestamp{Seconds: 100, Micros: 0}.Add(1)
		assert.Equal(t, "100.000000_00000001", ts.String())
	})
}

func TestFixedTimestampAddIsCumulative(t *testing.T) {
	base := FixedTimestamp{Seconds: 100}
	once := base.Add(1)
	twice := once.Add(1)
	assert.True(t, once.Before(twice))
	assert.Equal(t, uint32(2), twice.Offset)
}

func TestParseTimestampRoundTrip(t *testing.T) {
	original := FixedTimestamp{Seconds: 1700000000, Micros: 123456, Offset: 0x1f}
	parsed, err := ParseTimestamp(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("not-a-timestamp")
	assert.Error(t, err)
}

func TestReconcileTimestampPrefersListingWithinOneSecond(t *testing.T) {
	listing := FromFloatSeconds(100.5)
	head := FixedTimestamp{Seconds: 100}
	got := ReconcileTimestamp(listing, head)
	assert.Equal(t, listing, got)
}

func TestReconcileTimestampFallsBackBeyondOneSecond(t *testing.T) {
	listing := FromFloatSeconds(100.5)
	head := FixedTimestamp{Seconds: 105}
	got := ReconcileTimestamp(listing, head)
	assert.Equal(t, head, got)
}

func TestReconcileTimestampWithoutFractionPicksLarger(t *testing.T) {
	listing := FixedTimestamp{Seconds: 100}
	head := FixedTimestamp{Seconds: 200}
	got := ReconcileTimestamp(listing, head)
	assert.Equal(t, head, got)
}
