package transport

import (
	"encoding/json"
	"io"
	"time"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// swiftListingEntry mirrors one element of a Swift "format=json" container
// listing response. last_modified there is an ISO8601 string rather than
// the x-timestamp fixed-point encoding; callers needing exact ordering
// should HEAD the object for its authoritative x-timestamp (spec §4.3
// "listing-ts vs head-ts").
type swiftListingEntry struct {
	Name       string `json:"name"`
	Hash       string `json:"hash"`
	Bytes      int64  `json:"bytes"`
	LastModStr string `json:"last_modified"`
}

func decodeSwiftListing(r io.Reader) ([]storeapi.ListingEntry, error) {
	var raw []swiftListingEntry
	if err := decodeJSON(r, &raw); err != nil {
		return nil, err
	}
	out := make([]storeapi.ListingEntry, len(raw))
	for i, e := range raw {
		ts, err := storeapi.ParseTimestamp(e.LastModStr)
		if err != nil {
			if t, perr := time.Parse("2006-01-02T15:04:05.999999", e.LastModStr); perr == nil {
				ts = storeapi.FromUnix(t)
			} else {
				ts = storeapi.FixedTimestamp{}
			}
		}
		out[i] = storeapi.ListingEntry{Name: e.Name, Hash: e.Hash, Bytes: e.Bytes, LastModified: ts}
	}
	return out, nil
}
