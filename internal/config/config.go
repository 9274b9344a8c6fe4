package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Protocol identifies the remote store's wire protocol for a migration.
type Protocol string

const (
	ProtocolS3    Protocol = "s3"
	ProtocolSwift Protocol = "swift"
)

// AllBucketsWildcard is the aws_bucket/container value meaning "every
// bucket owned by this identity".
const AllBucketsWildcard = "/*"

// Migration is one migration rule: a remote bucket/container to reconcile
// into a local container, plus the identity to reach it with.
type Migration struct {
	Account     string `json:"account"`
	AWSIdentity string `json:"aws_identity"`
	AWSSecret   string `json:"aws_secret,omitempty"`
	AWSEndpoint string `json:"aws_endpoint"`
	AWSBucket   string `json:"aws_bucket"`
	Container   string `json:"container,omitempty"`

	Protocol Protocol `json:"protocol"`

	Prefix                   string `json:"prefix,omitempty"`
	OlderThan                int64  `json:"older_than,omitempty"`
	StoragePolicy            string `json:"storage_policy,omitempty"`
	CustomPrefix             string `json:"custom_prefix,omitempty"`
	PropagateAccountMetadata bool   `json:"propagate_account_metadata,omitempty"`
	RemoteAccount            string `json:"remote_account,omitempty"`
}

// ContainerName returns the destination container, defaulting to AWSBucket
// when Container was left unset.
func (m Migration) ContainerName() string {
	if m.Container == "" {
		return m.AWSBucket
	}
	return m.Container
}

// AllBuckets reports whether this migration's source is the "/*" wildcard,
// meaning the pass controller must discover every bucket owned by the
// identity and run one sub-pass per bucket.
func (m Migration) AllBuckets() bool {
	return m.AWSBucket == AllBucketsWildcard
}

// WithContainer returns a copy of m rebound to a concrete bucket/container
// pair. The pass controller uses this to expand an all-buckets migration
// into one per discovered remote bucket.
func (m Migration) WithContainer(name string) Migration {
	out := m
	out.AWSBucket = name
	out.Container = name
	return out
}

// Equal reports whether m and other identify the same migration rule,
// ignoring the credential and the destination-naming-convenience fields,
// and treating a "/*" bucket/container as matching any concrete name.
func (m Migration) Equal(other Migration) bool {
	a, b := m, other
	a.AWSSecret, b.AWSSecret = "", ""
	a.CustomPrefix, b.CustomPrefix = "", ""

	if a.AWSBucket == AllBucketsWildcard || b.AWSBucket == AllBucketsWildcard {
		a.AWSBucket, b.AWSBucket = "", ""
	}
	aContainer, bContainer := a.ContainerName(), b.ContainerName()
	if aContainer == AllBucketsWildcard || bContainer == AllBucketsWildcard {
		a.Container, b.Container = "", ""
	} else {
		a.Container, b.Container = aContainer, bContainer
	}
	return a == b
}

// Key returns a stable identifier for logging and the admin HTTP surface.
// It never includes credentials.
func (m Migration) Key() string {
	return fmt.Sprintf("%s:%s->%s", m.Account, m.AWSBucket, m.ContainerName())
}

// DaemonConfig holds daemon-level settings plus the list of migration rules
// it drives.
type DaemonConfig struct {
	StatusFile   string        `json:"status_file"`
	Workers      int           `json:"workers"`
	ItemsChunk   int           `json:"items_chunk"`
	PollInterval time.Duration `json:"poll_interval"`
	SegmentSize  int64         `json:"segment_size"`
	RingName     string        `json:"ring_name"`

	StatsdHost   string `json:"statsd_host,omitempty"`
	StatsdPort   int    `json:"statsd_port,omitempty"`
	StatsdPrefix string `json:"statsd_prefix,omitempty"`

	HTTPAddr   string `json:"http_addr"`
	TLSEnabled bool   `json:"tls_enabled"`
	DataDir    string `json:"data_dir"`
	LogLevel   string `json:"log_level"`

	// LocalEndpoint and LocalAuthToken reach the local Swift-like cluster
	// every migration writes into (the InternalClient side of spec §1's
	// external collaborators).
	LocalEndpoint  string `json:"local_endpoint"`
	LocalAuthToken string `json:"local_auth_token,omitempty"`

	// NodeID identifies this node on the consistent-hash ring, typically an
	// ip:port pair (spec §4.1). RingPeers lists every node (including this
	// one) that currently holds tokens on the ring; ContainerReplicas and
	// RingVNodes size the ring lookups per spec §4.1/§5.
	NodeID            string   `json:"node_id"`
	RingPeers         []string `json:"ring_peers"`
	ContainerReplicas int      `json:"container_replicas"`
	RingVNodes        int      `json:"ring_vnodes"`

	Migrations []Migration `json:"migrations"`

	mu sync.RWMutex
}

// DefaultDaemonConfig returns sensible defaults for every field LoadConfig
// doesn't find set on disk.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Workers:           10,
		ItemsChunk:        1000,
		PollInterval:      5 * time.Second,
		SegmentSize:       100 * 1024 * 1024,
		RingName:          "container",
		HTTPAddr:          ":8090",
		TLSEnabled:        false,
		LogLevel:          "info",
		ContainerReplicas: 3,
		RingVNodes:        100,
		LocalEndpoint:     "http://127.0.0.1:8080",
	}
}

// LoadConfig loads the daemon configuration from path, or from
// ~/.bucket-migrate/config.json when path is empty, falling back to
// DefaultDaemonConfig when no file exists yet.
func LoadConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, ".bucket-migrate", "config.json")
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultDaemonConfig()
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg DaemonConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *DaemonConfig) {
	defaults := DefaultDaemonConfig()

	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.ItemsChunk == 0 {
		cfg.ItemsChunk = defaults.ItemsChunk
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = defaults.SegmentSize
	}
	if cfg.RingName == "" {
		cfg.RingName = defaults.RingName
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaults.HTTPAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.ContainerReplicas == 0 {
		cfg.ContainerReplicas = defaults.ContainerReplicas
	}
	if cfg.RingVNodes == 0 {
		cfg.RingVNodes = defaults.RingVNodes
	}
	if cfg.NodeID == "" {
		cfg.NodeID = cfg.HTTPAddr
	}
	if len(cfg.RingPeers) == 0 {
		cfg.RingPeers = []string{cfg.NodeID}
	}
	if cfg.LocalEndpoint == "" {
		cfg.LocalEndpoint = defaults.LocalEndpoint
	}
	if cfg.StatusFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			cfg.StatusFile = filepath.Join(homeDir, ".bucket-migrate", "status.json")
		}
	}
}

// Save writes the configuration to path using a temp-file-plus-rename so a
// crash mid-write never leaves a truncated config on disk.
func (c *DaemonConfig) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// Redact returns a copy of the config safe to log: every migration's
// credentials are stripped down to the fields needed to identify it.
func (c *DaemonConfig) Redact() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	migrations := make([]map[string]interface{}, 0, len(c.Migrations))
	for _, m := range c.Migrations {
		migrations = append(migrations, map[string]interface{}{
			"account":    m.Account,
			"aws_bucket": m.AWSBucket,
			"container":  m.ContainerName(),
			"protocol":   m.Protocol,
		})
	}

	return map[string]interface{}{
		"status_file":   c.StatusFile,
		"workers":       c.Workers,
		"items_chunk":   c.ItemsChunk,
		"poll_interval": c.PollInterval,
		"segment_size":  c.SegmentSize,
		"ring_name":     c.RingName,
		"http_addr":     c.HTTPAddr,
		"tls_enabled":   c.TLSEnabled,
		"log_level":     c.LogLevel,
		"node_id":       c.NodeID,
		"ring_peers":    c.RingPeers,
		"migrations":    migrations,
	}
}

// MigrationsCopy returns a snapshot of the configured migrations, safe for
// a caller to range over without holding the config's lock.
func (c *DaemonConfig) MigrationsCopy() []Migration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Migration, len(c.Migrations))
	copy(out, c.Migrations)
	return out
}
