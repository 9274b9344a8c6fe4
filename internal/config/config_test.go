package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationContainerName(t *testing.T) {
	t.Run("falls back to aws_bucket when container unset", func(t *testing.T) {
		m := Migration{AWSBucket: "photos"}
		assert.Equal(t, "photos", m.ContainerName())
	})

	t.Run("uses explicit container when set", func(t *testing.T) {
		m := Migration{AWSBucket: "photos", Container: "photos-archive"}
		assert.Equal(t, "photos-archive", m.ContainerName())
	})
}

func TestMigrationAllBuckets(t *testing.T) {
	assert.True(t, Migration{AWSBucket: "/*"}.AllBuckets())
	assert.False(t, Migration{AWSBucket: "photos"}.AllBuckets())
}

func TestMigrationEqual(t *testing.T) {
	base := Migration{Account: "AUTH_acct", AWSBucket: "photos", Protocol: ProtocolS3}

	t.Run("identical migrations are equal", func(t *testing.T) {
		other := base
		assert.True(t, base.Equal(other))
	})

	t.Run("differing secrets are ignored", func(t *testing.T) {
		a := base
		a.AWSSecret = "one"
		b := base
		b.AWSSecret = "two"
		assert.True(t, a.Equal(b))
	})

	t.Run("differing custom prefixes are ignored", func(t *testing.T) {
		a := base
		a.CustomPrefix = "v1"
		b := base
		b.CustomPrefix = "v2"
		assert.True(t, a.Equal(b))
	})

	t.Run("wildcard bucket matches any concrete bucket", func(t *testing.T) {
		wild := base
		wild.AWSBucket = AllBucketsWildcard
		concrete := base
		concrete.AWSBucket = "invoices"
		assert.True(t, wild.Equal(concrete))
	})

	t.Run("different accounts are never equal", func(t *testing.T) {
		other := base
		other.Account = "AUTH_other"
		assert.False(t, base.Equal(other))
	})
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, "container", cfg.RingName)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultDaemonConfig()
	cfg.Migrations = []Migration{
		{Account: "AUTH_acct", AWSBucket: "photos", Protocol: ProtocolS3, AWSSecret: "shh"},
	}

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Migrations, 1)
	assert.Equal(t, "photos", loaded.Migrations[0].AWSBucket)
	assert.Equal(t, "shh", loaded.Migrations[0].AWSSecret)
}

func TestRedactStripsSecrets(t *testing.T) {
	cfg := DefaultDaemonConfig()
	cfg.Migrations = []Migration{
		{Account: "AUTH_acct", AWSBucket: "photos", Protocol: ProtocolS3, AWSSecret: "shh"},
	}

	redacted := cfg.Redact()
	migrations, ok := redacted["migrations"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, migrations, 1)
	_, hasSecret := migrations[0]["aws_secret"]
	assert.False(t, hasSecret)
}
