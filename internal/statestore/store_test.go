package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(v int64) func() int64 {
	return func() int64 { return v }
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "status.json"), fixedClock(1000))
	require.NoError(t, s.Load())
	assert.Empty(t, s.Entries())
}

func TestLoadCorruptFileRotatesAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := New(path, fixedClock(1000))
	require.NoError(t, s.Load())
	assert.Empty(t, s.Entries())

	_, err := os.Stat(path + ".corrupted.1")
	assert.NoError(t, err, "expected corrupted file to be rotated aside")
}

func TestLoadCorruptFilePicksSmallestUnusedSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	require.NoError(t, os.WriteFile(path+".corrupted.1", []byte("old"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := New(path, fixedClock(1000))
	require.NoError(t, s.Load())

	_, err := os.Stat(path + ".corrupted.2")
	assert.NoError(t, err)
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	s := New(path, fixedClock(1000))
	require.NoError(t, s.Load())

	m := config.Migration{Account: "AUTH_acct", AWSBucket: "photos", AWSSecret: "shh"}
	require.NoError(t, s.Save(m, "k2", 2, 2, 200, false))

	entry, ok := s.Get(m)
	require.True(t, ok)
	assert.Equal(t, "k2", entry.Status.Marker)
	assert.Equal(t, int64(2), entry.Status.MovedCount)

	reloaded := New(path, fixedClock(2000))
	require.NoError(t, reloaded.Load())
	got, ok := reloaded.Get(m)
	require.True(t, ok)
	assert.Equal(t, "k2", got.Status.Marker)
	assert.Empty(t, got.Migration.AWSSecret, "persisted entry must strip aws_secret")
}

func TestPruneRemovesInactiveMigrations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	s := New(path, fixedClock(1000))
	require.NoError(t, s.Load())

	active := config.Migration{Account: "AUTH_acct", AWSBucket: "active"}
	stale := config.Migration{Account: "AUTH_acct", AWSBucket: "stale"}

	require.NoError(t, s.Save(active, "", 0, 0, 0, false))
	require.NoError(t, s.Save(stale, "", 0, 0, 0, false))

	require.NoError(t, s.Prune([]config.Migration{active}))

	_, ok := s.Get(stale)
	assert.False(t, ok)
	_, ok = s.Get(active)
	assert.True(t, ok)
}
