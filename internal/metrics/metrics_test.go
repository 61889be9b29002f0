package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/quorumkit/raft/internal/raft"
)

func freshCollector(t *testing.T) *Collector {
	t.Helper()
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	return NewCollector()
}

func TestNewCollector(t *testing.T) {
	c := freshCollector(t)

	assert.NotNil(t, c.term)
	assert.NotNil(t, c.role)
	assert.NotNil(t, c.commitIndex)
	assert.NotNil(t, c.lastApplied)
	assert.NotNil(t, c.electionsStarted)
	assert.NotNil(t, c.leaderChanges)
	assert.NotNil(t, c.replicationLatency)
}

func TestSetTermAndCommitIndex(t *testing.T) {
	c := freshCollector(t)

	assert.NotPanics(t, func() {
		c.SetTerm(7)
		c.SetCommitIndex(3)
		c.SetLastApplied(3)
	})
}

func TestSetRoleTogglesExactlyOneLabel(t *testing.T) {
	c := freshCollector(t)

	c.SetRole(raft.Leader)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.role.WithLabelValues("Leader")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.role.WithLabelValues("Follower")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.role.WithLabelValues("Candidate")))

	c.SetRole(raft.Follower)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.role.WithLabelValues("Follower")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.role.WithLabelValues("Leader")))
}

func TestRecordElectionAndLeaderChangeCounters(t *testing.T) {
	c := freshCollector(t)

	assert.NotPanics(t, func() {
		for i := 0; i < 3; i++ {
			c.RecordElectionStarted()
		}
		c.RecordBecameLeader()
	})
}

func TestObserveReplicationLatency(t *testing.T) {
	c := freshCollector(t)

	assert.NotPanics(t, func() {
		c.ObserveReplicationLatency(15 * time.Millisecond)
	})
}
