package statestore

import "github.com/artemis/bucket-migrate/internal/config"

// Status is one migration's persisted cursor and counters (spec §3
// "Status entry"). Finished is a Unix epoch timestamp; zero means the
// migration has never completed a pass.
type Status struct {
	Marker        string `json:"marker"`
	MovedCount    int64  `json:"moved_count"`
	ScannedCount  int64  `json:"scanned_count"`
	BytesCount    int64  `json:"bytes_count"`
	Finished      int64  `json:"finished,omitempty"`

	LastMovedCount   int64 `json:"last_moved_count"`
	LastScannedCount int64 `json:"last_scanned_count"`
	LastBytesCount   int64 `json:"last_bytes_count"`
	LastFinished     int64 `json:"last_finished,omitempty"`
}

// Rotate implements the two-generation counter rotation rule (spec §4.2)
// as a pure function, per the §9 design note ("explicit small record, not
// dict mutation"). now is the epoch timestamp to stamp as Finished.
//
// Rotation of the prior pass's counts into Last* happens iff the
// rotation guard holds: LastMovedCount != 0, or ScannedCount differs from
// LastScannedCount. When the previous pass never finished (Finished == 0),
// no rotation occurs at all — only Finished/current counts update.
func (s Status) Rotate(marker string, moved, scanned, bytesCount int64, now int64) Status {
	next := s
	next.Marker = marker

	if s.Finished != 0 {
		if s.LastMovedCount != 0 || s.ScannedCount != s.LastScannedCount {
			next.LastMovedCount = s.MovedCount
			next.LastScannedCount = s.ScannedCount
			next.LastBytesCount = s.BytesCount
			next.LastFinished = s.Finished
		}
	}

	next.MovedCount = moved
	next.ScannedCount = scanned
	next.BytesCount = bytesCount
	next.Finished = now
	return next
}

// Entry pairs a migration's config with its persisted status, the on-disk
// element shape described in spec §6 ("Persisted state"). The copy written
// to disk is redacted (see Redacted); the in-memory entry keeps the secret.
type Entry struct {
	Migration config.Migration `json:"migration"`
	Status    Status           `json:"status"`
}

// Redacted returns a copy of e with the migration's credential stripped,
// matching the status-file format's "shallow copy ... with aws_secret
// stripped" rule (spec §6).
func (e Entry) Redacted() Entry {
	out := e
	out.Migration.AWSSecret = ""
	return out
}
