// Package metrics exposes Prometheus instrumentation for a running raft
// node, the same Collector/MustRegister/promhttp.Handler shape as the
// teacher's queue metrics, retargeted from job-lifecycle counters to the
// consensus observables an operator actually needs: term, role, commit
// progress, and election/replication behavior.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quorumkit/raft/internal/raft"
)

// Collector collects Prometheus metrics for one node.
type Collector struct {
	term        prometheus.Gauge
	role        *prometheus.GaugeVec
	commitIndex prometheus.Gauge
	lastApplied prometheus.Gauge

	electionsStarted prometheus.Counter
	leaderChanges    prometheus.Counter

	replicationLatency prometheus.Histogram
}

// roleLabels is every raft.Role value, used to zero out the other labels
// whenever SetRole flips the gauge so raft_role{role="Leader"} reads
// exactly 1 and the others read 0, never a stale leftover 1.
var roleLabels = []string{"Follower", "Candidate", "Leader"}

// NewCollector creates and registers a node's metric set.
func NewCollector() *Collector {
	c := &Collector{
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_term",
			Help: "Current term observed by this node",
		}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "raft_role",
			Help: "1 for the node's current role, 0 for the others",
		}, []string{"role"}),
		commitIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_commit_index",
			Help: "Highest log index this node has committed",
		}),
		lastApplied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raft_last_applied",
			Help: "Highest log index applied to the state machine",
		}),
		electionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raft_election_total",
			Help: "Total number of elections this node has started as a candidate",
		}),
		leaderChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raft_leader_changes_total",
			Help: "Total number of times this node has become leader",
		}),
		replicationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raft_replication_latency_seconds",
			Help:    "Time between sending an AppendEntryRequest and receiving its response",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(c.term)
	prometheus.MustRegister(c.role)
	prometheus.MustRegister(c.commitIndex)
	prometheus.MustRegister(c.lastApplied)
	prometheus.MustRegister(c.electionsStarted)
	prometheus.MustRegister(c.leaderChanges)
	prometheus.MustRegister(c.replicationLatency)

	for _, label := range roleLabels {
		c.role.WithLabelValues(label).Set(0)
	}

	return c
}

// SetTerm records the node's current term.
func (c *Collector) SetTerm(term int64) {
	c.term.Set(float64(term))
}

// SetRole records the node's current role, zeroing the others.
func (c *Collector) SetRole(role raft.Role) {
	for _, label := range roleLabels {
		if label == role.String() {
			c.role.WithLabelValues(label).Set(1)
		} else {
			c.role.WithLabelValues(label).Set(0)
		}
	}
}

// SetCommitIndex records commit progress.
func (c *Collector) SetCommitIndex(index int64) {
	c.commitIndex.Set(float64(index))
}

// SetLastApplied records state-machine application progress.
func (c *Collector) SetLastApplied(index int64) {
	c.lastApplied.Set(float64(index))
}

// RecordElectionStarted increments the election counter. internal/cli's
// Node calls it each time the node's role changes to Candidate; a
// candidate's own re-election on timeout does not change its role and is
// not counted.
func (c *Collector) RecordElectionStarted() {
	c.electionsStarted.Inc()
}

// RecordBecameLeader increments the leader-change counter.
func (c *Collector) RecordBecameLeader() {
	c.leaderChanges.Inc()
}

// ObserveReplicationLatency records the round-trip time of one
// AppendEntryRequest/AppendEntryResponse pair.
func (c *Collector) ObserveReplicationLatency(d time.Duration) {
	c.replicationLatency.Observe(d.Seconds())
}

// StartServer starts the Prometheus exposition HTTP server on port,
// serving /metrics. It blocks until the listener fails.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
