package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raft/internal/raft"
)

const sampleYAML = `
cluster:
  self: 1
  peers:
    1: "127.0.0.1:9001"
    2: "127.0.0.1:9002"
    3: "127.0.0.1:9003"
timer:
  leader_interval_ms: 25
wal:
  dir: "./data/wal"
  buffer_size: 50
  flush_interval_ms: 5
snapshot:
  dir: "./data/snapshot"
  interval_seconds: 30
  retention_count: 5
metrics:
  enabled: true
  port: 9100
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesAllFields(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, raft.NodeID(1), cfg.Cluster.Self)
	assert.Equal(t, "127.0.0.1:9002", cfg.Cluster.Peers[raft.NodeID(2)])
	assert.Equal(t, 25*time.Millisecond, cfg.LeaderInterval())
	assert.Equal(t, 5*time.Millisecond, cfg.WALFlushInterval())
	assert.Equal(t, 30*time.Second, cfg.SnapshotInterval())
	assert.Equal(t, 5, cfg.Snapshot.RetentionCount)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestLoadAppliesDefaultsWhenOmitted(t *testing.T) {
	path := writeConfig(t, `
cluster:
  self: 1
  peers:
    1: "127.0.0.1:9001"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.LeaderInterval())
	assert.Equal(t, 100, cfg.WAL.BufferSize)
	assert.Equal(t, 10*time.Millisecond, cfg.WALFlushInterval())
	assert.Equal(t, 3, cfg.Snapshot.RetentionCount)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAMLErrors(t *testing.T) {
	path := writeConfig(t, "cluster: [this is not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestPeerIDsSortedAscending(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	ids := cfg.PeerIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, []raft.NodeID{1, 2, 3}, ids)
}

func TestRaftConfigIncludesAllMembers(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	rc := cfg.RaftConfig()
	assert.Equal(t, raft.NodeID(1), rc.Self)
	assert.ElementsMatch(t, []raft.NodeID{1, 2, 3}, rc.Peers)
}

func TestPeerAddressesExcludesSelf(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	addrs := cfg.PeerAddresses()
	_, hasSelf := addrs[cfg.Cluster.Self]
	assert.False(t, hasSelf)
	assert.Len(t, addrs, 2)
	assert.Equal(t, "127.0.0.1:9003", addrs[raft.NodeID(3)])
}
