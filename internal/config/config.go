// Package config loads the YAML cluster configuration a raftnode process
// starts from, the same struct-tagged, per-subsystem-block shape as the
// teacher's cmd/demo/main.go Config and internal/cli/cli.go's nested
// config, retargeted from worker/job-queue settings to cluster membership
// and the core's driver components.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quorumkit/raft/internal/raft"
)

// Config is the complete on-disk configuration for one node.
type Config struct {
	Cluster struct {
		Self  raft.NodeID            `yaml:"self"`
		Peers map[raft.NodeID]string `yaml:"peers"` // node id -> "host:port"
	} `yaml:"cluster"`

	Timer struct {
		LeaderIntervalMs int `yaml:"leader_interval_ms"`
	} `yaml:"timer"`

	WAL struct {
		Dir             string `yaml:"dir"`
		BufferSize      int    `yaml:"buffer_size"`
		FlushIntervalMs int    `yaml:"flush_interval_ms"`
	} `yaml:"wal"`

	Snapshot struct {
		Dir             string `yaml:"dir"`
		IntervalSeconds int    `yaml:"interval_seconds"`
		RetentionCount  int    `yaml:"retention_count"`
	} `yaml:"snapshot"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if cfg.Timer.LeaderIntervalMs <= 0 {
		cfg.Timer.LeaderIntervalMs = 50
	}
	if cfg.WAL.BufferSize <= 0 {
		cfg.WAL.BufferSize = 100
	}
	if cfg.WAL.FlushIntervalMs <= 0 {
		cfg.WAL.FlushIntervalMs = 10
	}
	if cfg.Snapshot.RetentionCount <= 0 {
		cfg.Snapshot.RetentionCount = 3
	}

	return &cfg, nil
}

// LeaderInterval converts Timer.LeaderIntervalMs into a time.Duration, the
// T_L the timer scheduler's leader/follower intervals are both derived
// from.
func (c *Config) LeaderInterval() time.Duration {
	return time.Duration(c.Timer.LeaderIntervalMs) * time.Millisecond
}

// WALFlushInterval converts WAL.FlushIntervalMs into a time.Duration.
func (c *Config) WALFlushInterval() time.Duration {
	return time.Duration(c.WAL.FlushIntervalMs) * time.Millisecond
}

// SnapshotInterval converts Snapshot.IntervalSeconds into a time.Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

// PeerIDs returns every cluster member id, including Self, in ascending
// order — the shape raft.Config.Peers expects.
func (c *Config) PeerIDs() []raft.NodeID {
	ids := make([]raft.NodeID, 0, len(c.Cluster.Peers))
	for id := range c.Cluster.Peers {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// RaftConfig builds the raft.Config this node's core should start with.
func (c *Config) RaftConfig() raft.Config {
	return raft.Config{Self: c.Cluster.Self, Peers: c.PeerIDs()}
}

// PeerAddresses returns the id-to-address map transport.NewDialer expects,
// excluding Self (a node never dials itself).
func (c *Config) PeerAddresses() map[raft.NodeID]string {
	addrs := make(map[raft.NodeID]string, len(c.Cluster.Peers))
	for id, addr := range c.Cluster.Peers {
		if id == c.Cluster.Self {
			continue
		}
		addrs[id] = addr
	}
	return addrs
}
