package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/observability"
)

// Store is the persistent per-migration status store (spec §4.2, C2).
// Entries live in a single JSON file; every mutation goes through
// temp-file-plus-rename for atomicity, mirroring the teacher's
// config.Save convention (internal/config/config.go).
type Store struct {
	path string

	mu      sync.Mutex
	entries []Entry

	now func() int64
}

// New builds a Store bound to path. Callers must call Load once before
// Get/Save to populate the in-memory entry list.
func New(path string, now func() int64) *Store {
	return &Store{path: path, now: now}
}

// Load reads the JSON entry list from disk (spec §4.2 "load()"):
//   - missing file: start empty, no error.
//   - non-empty file that fails to parse: rotate aside to
//     <path>.corrupted.<n> (smallest unused n >= 1), start empty.
//   - any other I/O error: fail.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = nil
			return nil
		}
		return fmt.Errorf("statestore: reading %s: %w", s.path, err)
	}

	if len(data) == 0 {
		s.entries = nil
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		if rotateErr := s.rotateCorrupt(); rotateErr != nil {
			return fmt.Errorf("statestore: rotating corrupt file: %w", rotateErr)
		}
		observability.StatusCorruptions.Inc()
		s.entries = nil
		return nil
	}

	s.entries = entries
	return nil
}

// rotateCorrupt renames the current file to <path>.corrupted.<n> with the
// smallest unused n >= 1 (spec §8 "Status file corruption recovery").
func (s *Store) rotateCorrupt() error {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.corrupted.%d", s.path, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return os.Rename(s.path, candidate)
		}
	}
}

// Get performs the linear scan described in spec §4.2, using
// config.Migration.Equal as the canonical-form comparator.
func (s *Store) Get(m config.Migration) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Migration.Equal(m) {
			return e, true
		}
	}
	return Entry{}, false
}

// Save inserts or updates the entry for m (spec §4.2 "save()"), applying
// the counter-rotation rule and writing the whole list back to disk. reset
// requests rotation semantics: true after a marker="" full-range restart
// pass (spec §4.3 "Full-pass restart").
func (s *Store) Save(m config.Migration, marker string, moved, scanned, bytesCount int64, reset bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	idx := -1
	for i, e := range s.entries {
		if e.Migration.Equal(m) {
			idx = i
			break
		}
	}

	var status Status
	if idx >= 0 {
		status = s.entries[idx].Status
	}

	if reset {
		status = status.Rotate(marker, moved, scanned, bytesCount, now)
	} else {
		status.Marker = marker
		status.MovedCount = moved
		status.ScannedCount = scanned
		status.BytesCount = bytesCount
		status.Finished = now
	}

	entry := Entry{Migration: m, Status: status}
	if idx >= 0 {
		s.entries[idx] = entry
	} else {
		s.entries = append(s.entries, entry)
	}

	return s.writeLocked()
}

// Prune keeps only entries matching one of the active migrations (spec
// §4.2 "prune()"), used by the daemon loop after configuration changes.
func (s *Store) Prune(active []config.Migration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		for _, m := range active {
			if e.Migration.Equal(m) {
				kept = append(kept, e)
				break
			}
		}
	}
	s.entries = kept
	return s.writeLocked()
}

// writeLocked serializes the redacted entry list to disk via
// temp-file-plus-rename. Callers must hold s.mu.
func (s *Store) writeLocked() error {
	redacted := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		redacted[i] = e.Redacted()
	}

	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshaling entries: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("statestore: creating directory %s: %w", dir, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		// Retry once after ensuring the directory exists, matching the
		// teacher's config.Save "create parent, retry once" convention.
		if mkErr := os.MkdirAll(dir, 0755); mkErr == nil {
			if err2 := os.WriteFile(tmpPath, data, 0600); err2 == nil {
				return finishRename(tmpPath, s.path)
			}
		}
		return fmt.Errorf("statestore: writing %s: %w", tmpPath, err)
	}

	return finishRename(tmpPath, s.path)
}

func finishRename(tmpPath, path string) error {
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("statestore: renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// Entries returns a snapshot of all currently loaded entries.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
