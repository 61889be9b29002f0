package raft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// unguardedCommitPoint mirrors advanceCommitIndex but without the
// current-term requirement, used only to demonstrate why that guard is
// load-bearing. It must never be reachable from Dispatch.
func unguardedCommitPoint(node *Node) int64 {
	majority := Majority(len(node.Config.Peers))
	known := make([]int64, 0, len(node.Config.Peers))
	for _, id := range node.Config.Peers {
		mi, ok := node.leader.MatchIndex[id]
		if ok && mi != UnknownIndex {
			known = append(known, mi)
		}
	}
	if len(known) < majority {
		return node.CommitIndex
	}
	sorted := append([]int64(nil), known...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] > sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	return sorted[majority-1]
}

// TestCommitRequiresCurrentTermGuard is the negative control for spec.md
// §8 scenario 4: without the current-term requirement, a leader would
// commit index 1 purely on replication count even though that entry was
// created by a prior leader in an earlier term (the Figure-8 anomaly).
// advanceCommitIndex must refuse to do what unguardedCommitPoint would.
func TestCommitRequiresCurrentTermGuard(t *testing.T) {
	cfg := Config{Self: 1, Peers: []NodeID{1, 2, 3}}
	log := &Log{entries: []Entry{
		{Term: 1, Item: []byte("a")},
		{Term: 2, Item: []byte("b")},
	}}
	n1 := &Node{ID: 1, Config: cfg, Log: log, Role: Leader, CurrentTerm: 4, CommitIndex: SentinelIndex}
	n1.leader = newLeaderState(n1)
	n1.leader.MatchIndex[1] = 1
	n1.leader.MatchIndex[2] = 1
	n1.leader.MatchIndex[3] = 1

	assert.Equal(t, int64(1), unguardedCommitPoint(n1), "majority replication alone reaches index 1")

	advanceCommitIndex(n1)
	assert.Equal(t, int64(SentinelIndex), n1.CommitIndex, "the current-term guard must block the commit unguardedCommitPoint would allow")
}
