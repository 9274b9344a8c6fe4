package largeobject

import (
	"sync"

	"github.com/artemis/bucket-migrate/internal/reconcile"
	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// ManifestSet is the controller's `_manifests` set (spec §3, §4.5a): DLO
// manifests observed during the primary enumeration, deferred until all
// their referenced segment containers have been reconciled. AddIfAbsent
// is called from worker dispatch (via HandleDLO), so every access holds
// the mutex; Drain runs after the primary queue join.
type ManifestSet struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	entries []reconcile.ManifestEntry
}

// NewManifestSet returns an empty set.
func NewManifestSet() *ManifestSet {
	return &ManifestSet{seen: make(map[string]struct{})}
}

// AddIfAbsent records (bucket, container, key) if not already present,
// returning true the first time it is seen — callers use the return value
// to decide whether to enqueue the referenced segment container for
// listing (spec §4.5a: "if not already in _manifests, add it and enqueue").
func (s *ManifestSet) AddIfAbsent(bucket, container, key string, ts storeapi.FixedTimestamp) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := bucket + "\x00" + container + "\x00" + key
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.entries = append(s.entries, reconcile.ManifestEntry{
		AWSBucket: bucket, Container: container, Key: key, Timestamp: ts,
	})
	return true
}

// Drain returns and clears all pending manifest entries — called once the
// primary queue (and any container-queue reruns) have joined, so it is
// safe to copy the manifests themselves (spec §4.6 step 4).
func (s *ManifestSet) Drain() []reconcile.ManifestEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.entries
	s.entries = nil
	return out
}

// Len reports the number of distinct pending manifests.
func (s *ManifestSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
