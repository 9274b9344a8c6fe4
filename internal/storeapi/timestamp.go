package storeapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FixedTimestamp is the internal fixed-point encoding of a Swift-style
// x-timestamp: <seconds>.<6-digit-fraction>_<8-digit-offset>. The offset
// suffix lets the migrator mint a timestamp that is strictly greater than
// an existing one (one "offset tick") without touching the second/
// microsecond fields, which is how deletion reconciliation wins races
// against concurrent writers (spec §4.4).
type FixedTimestamp struct {
	Seconds int64
	Micros  int64
	Offset  uint32
}

// FromUnix builds a FixedTimestamp from a time.Time with zero offset.
func FromUnix(t time.Time) FixedTimestamp {
	return FixedTimestamp{
		Seconds: t.Unix(),
		Micros:  int64(t.Nanosecond()) / 1000,
	}
}

// FromFloatSeconds builds a FixedTimestamp from a float epoch value such as
// those returned in listing entries (e.g. 1700000000.123456).
func FromFloatSeconds(v float64) FixedTimestamp {
	seconds := int64(v)
	frac := v - float64(seconds)
	return FixedTimestamp{Seconds: seconds, Micros: int64(frac * 1e6)}
}

// Add returns a copy of t advanced by offsetTicks offset units, leaving
// seconds/micros untouched. Used to construct a delete timestamp that is
// guaranteed greater than the object's current timestamp.
func (t FixedTimestamp) Add(offsetTicks uint32) FixedTimestamp {
	out := t
	out.Offset += offsetTicks
	return out
}

// String renders the canonical <seconds>.<6-digit-fraction>_<8-digit-offset>
// form. The offset suffix is omitted when zero, matching how Swift omits an
// all-zero offset in most listings.
func (t FixedTimestamp) String() string {
	base := fmt.Sprintf("%d.%06d", t.Seconds, t.Micros)
	if t.Offset == 0 {
		return base
	}
	return fmt.Sprintf("%s_%08x", base, t.Offset)
}

// Float returns the timestamp as a float epoch value, ignoring Offset
// (offsets only matter for ordering among otherwise-identical timestamps).
func (t FixedTimestamp) Float() float64 {
	return float64(t.Seconds) + float64(t.Micros)/1e6
}

// Before reports whether t sorts strictly before other, comparing seconds,
// then micros, then offset.
func (t FixedTimestamp) Before(other FixedTimestamp) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	if t.Micros != other.Micros {
		return t.Micros < other.Micros
	}
	return t.Offset < other.Offset
}

// ParseTimestamp parses the canonical encoding (with or without the offset
// suffix) back into a FixedTimestamp.
func ParseTimestamp(s string) (FixedTimestamp, error) {
	main := s
	var offset uint32
	if idx := strings.IndexByte(s, '_'); idx >= 0 {
		main = s[:idx]
		off, err := strconv.ParseUint(s[idx+1:], 16, 32)
		if err != nil {
			return FixedTimestamp{}, fmt.Errorf("invalid timestamp offset %q: %w", s, err)
		}
		offset = uint32(off)
	}

	v, err := strconv.ParseFloat(main, 64)
	if err != nil {
		return FixedTimestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	ts := FromFloatSeconds(v)
	ts.Offset = offset
	return ts, nil
}

// ReconcileTimestamp picks the write timestamp per spec §4.3: prefer the
// listing-derived timestamp when it carries sub-second resolution and
// differs from the HEAD-derived timestamp by less than one second;
// otherwise prefer the larger of the two. Behavior beyond 1s of skew is
// left undefined by design (spec §9) — this picks the larger value, which
// is the conservative choice.
func ReconcileTimestamp(listingTS, headTS FixedTimestamp) FixedTimestamp {
	if listingTS.Micros != 0 {
		diff := listingTS.Float() - headTS.Float()
		if diff < 0 {
			diff = -diff
		}
		if diff < 1.0 {
			return listingTS
		}
	}
	if headTS.Before(listingTS) {
		return listingTS
	}
	return headTS
}
