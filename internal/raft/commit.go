package raft

import "sort"

// advanceCommitIndex implements spec.md §4.4.9: the leader's candidate
// commit point is the k-th largest known match_index (k = majority),
// counting only peers whose match_index is known (not UnknownIndex).
// commit_index advances to that point only if at least k match-indices are
// known AND the entry at that point was created in the leader's current
// term — the Figure-8 guard against committing another leader's entry by
// re-replicating it without ever having appended anything of its own in
// the current term.
func advanceCommitIndex(node *Node) {
	if node.leader == nil {
		return
	}

	majority := Majority(len(node.Config.Peers))
	known := make([]int64, 0, len(node.Config.Peers))
	for _, id := range node.Config.Peers {
		mi, ok := node.leader.MatchIndex[id]
		if ok && mi != UnknownIndex {
			known = append(known, mi)
		}
	}
	if len(known) < majority {
		return
	}

	sort.Slice(known, func(i, j int) bool { return known[i] > known[j] })
	candidate := known[majority-1]

	if candidate <= node.CommitIndex {
		return
	}
	if candidate < 0 || candidate > node.Log.LastIndex() {
		return
	}
	if node.Log.At(candidate).Term != node.CurrentTerm {
		return
	}
	node.CommitIndex = candidate
}
