package raft

import "fmt"

// Dispatch is the core's single mutator (spec.md §6): it applies msg to
// node and returns the outbound messages the driver should deliver, in
// emission order. This is an atomic step — no handler may suspend, and no
// other goroutine may call Dispatch on the same node concurrently
// (spec.md §5).
func Dispatch(node *Node, msg Message) []Message {
	switch m := msg.(type) {
	case ClientLogAppend:
		return handleClientLogAppend(node, m)
	case UpdateFollowers:
		return handleUpdateFollowers(node, m)
	case AppendEntryRequest:
		return handleAppendEntryRequest(node, m)
	case AppendEntryResponse:
		return handleAppendEntryResponse(node, m)
	case RunElection:
		return handleRunElection(node, m)
	case RequestVoteRequest:
		return handleRequestVoteRequest(node, m)
	case RequestVoteResponse:
		return handleRequestVoteResponse(node, m)
	case RoleChange:
		return handleRoleChange(node, m)
	default:
		// Message is a sealed interface; reaching here means a variant was
		// added without a handler, which is a programming error, not a
		// runtime one.
		invariantViolation("Dispatch", fmt.Errorf("raft: no handler for message type %T", msg))
		return nil
	}
}

// handleClientLogAppend implements spec.md §4.4.1. It is an invariant
// violation (not a protocol-level failure) to route this to a non-leader;
// the driver is expected to know who the leader is, or to redirect.
func handleClientLogAppend(node *Node, m ClientLogAppend) []Message {
	if node.Role != Leader {
		invariantViolation("ClientLogAppend", ErrNotLeader)
	}

	node.Log.appendOwn(Entry{Term: node.CurrentTerm, Item: m.Item})
	node.leader.NextIndex[node.ID] = node.Log.Len()
	node.leader.MatchIndex[node.ID] = node.Log.LastIndex()
	return nil
}

// handleUpdateFollowers implements spec.md §4.4.2.
func handleUpdateFollowers(node *Node, m UpdateFollowers) []Message {
	if node.Role != Leader {
		invariantViolation("UpdateFollowers", ErrNotLeader)
	}

	out := make([]Message, 0, len(m.Followers))
	for _, f := range m.Followers {
		next := node.leader.NextIndex[f]
		previousIndex := next - 1
		previousTerm := int64(SentinelTerm)
		if previousIndex >= 0 {
			previousTerm = node.Log.At(previousIndex).Term
		}
		out = append(out, AppendEntryRequest{
			Source:        node.ID,
			Target:        f,
			CurrentTerm:   node.CurrentTerm,
			PreviousIndex: previousIndex,
			PreviousTerm:  previousTerm,
			Entries:       node.Log.From(next),
			CommitIndex:   node.CommitIndex,
		})
	}
	return out
}

// handleAppendEntryRequest implements spec.md §4.4.3 (follower side). A
// stale leader's request (lower term) is rejected outright before the
// preamble can step anything down, per EvaluateRoleChange's "source_term <
// target_term: no state change (caller will reject the message)" case.
func handleAppendEntryRequest(node *Node, m AppendEntryRequest) []Message {
	if m.CurrentTerm < node.CurrentTerm {
		return []Message{appendEntryReply(node, m, false)}
	}

	ImplementStateChange(node, EnumerateStateChange(Peer(Leader), m.CurrentTerm, node))

	if node.Role != Follower {
		return []Message{appendEntryReply(node, m, false)}
	}

	success := AppendEntries(node.Log, m.PreviousIndex, m.PreviousTerm, m.Entries)
	if success && m.CommitIndex > node.CommitIndex {
		newCommit := m.CommitIndex
		if last := node.Log.LastIndex(); last < newCommit {
			newCommit = last
		}
		node.CommitIndex = newCommit
	}

	return []Message{appendEntryReply(node, m, success)}
}

func appendEntryReply(node *Node, m AppendEntryRequest, success bool) Message {
	return AppendEntryResponse{
		Source:        node.ID,
		Target:        m.Source,
		CurrentTerm:   node.CurrentTerm,
		Success:       success,
		EntriesLength: int64(len(m.Entries)),
	}
}

// handleAppendEntryResponse implements spec.md §4.4.4 (leader side).
func handleAppendEntryResponse(node *Node, m AppendEntryResponse) []Message {
	ImplementStateChange(node, EnumerateStateChange(Peer(Follower), m.CurrentTerm, node))

	if node.Role != Leader {
		return nil
	}

	if m.Success {
		node.leader.NextIndex[m.Source] += m.EntriesLength
		node.leader.MatchIndex[m.Source] = node.leader.NextIndex[m.Source] - 1
		node.leader.HasFollowers = true
		advanceCommitIndex(node)
		return nil
	}

	next := node.leader.NextIndex[m.Source] - 1
	if next < 0 {
		next = 0
	}
	node.leader.NextIndex[m.Source] = next

	previousIndex := next - 1
	previousTerm := int64(SentinelTerm)
	if previousIndex >= 0 {
		previousTerm = node.Log.At(previousIndex).Term
	}
	return []Message{AppendEntryRequest{
		Source:        node.ID,
		Target:        m.Source,
		CurrentTerm:   node.CurrentTerm,
		PreviousIndex: previousIndex,
		PreviousTerm:  previousTerm,
		Entries:       node.Log.From(next),
		CommitIndex:   node.CommitIndex,
	}}
}

// handleRunElection implements spec.md §4.4.5.
func handleRunElection(node *Node, m RunElection) []Message {
	if node.Role != Candidate {
		invariantViolation("RunElection", ErrNotCandidate)
	}

	out := make([]Message, 0, len(m.Followers))
	for _, f := range m.Followers {
		out = append(out, RequestVoteRequest{
			Source:       node.ID,
			Target:       f,
			CurrentTerm:  node.CurrentTerm,
			LastLogIndex: node.Log.LastIndex(),
			LastLogTerm:  node.Log.LastTerm(),
		})
	}
	return out
}

// handleRequestVoteRequest implements spec.md §4.4.6. Checks run in the
// order the spec lists them: higher-term-or-equal vs. self first (folded
// into the preamble and the explicit current_term check), then the
// up-to-date comparison (term before length), then the one-vote-per-term
// rule.
func handleRequestVoteRequest(node *Node, m RequestVoteRequest) []Message {
	ImplementStateChange(node, EnumerateStateChange(Peer(Candidate), m.CurrentTerm, node))

	if node.Role != Follower {
		return []Message{voteReply(node, m, false)}
	}

	switch {
	case m.CurrentTerm < node.CurrentTerm:
		return []Message{voteReply(node, m, false)}
	case m.LastLogTerm < node.Log.LastTerm():
		return []Message{voteReply(node, m, false)}
	case m.LastLogTerm == node.Log.LastTerm() && m.LastLogIndex < node.Log.LastIndex():
		return []Message{voteReply(node, m, false)}
	case node.VotedFor != nil && *node.VotedFor != m.Source:
		return []Message{voteReply(node, m, false)}
	}

	if node.VotedFor == nil {
		source := m.Source
		node.VotedFor = &source
	}
	return []Message{voteReply(node, m, true)}
}

func voteReply(node *Node, m RequestVoteRequest, granted bool) Message {
	return RequestVoteResponse{
		Source:      node.ID,
		Target:      m.Source,
		Success:     granted,
		CurrentTerm: node.CurrentTerm,
	}
}

// handleRequestVoteResponse implements spec.md §4.4.7 (candidate side). On
// reaching majority it transitions Candidate -> Leader via the
// ElectionCommission pseudo-source and emits a self-targeted
// UpdateFollowers so the dispatcher produces a first heartbeat
// immediately, without waiting for the next timer tick.
func handleRequestVoteResponse(node *Node, m RequestVoteResponse) []Message {
	ImplementStateChange(node, EnumerateStateChange(Peer(Follower), m.CurrentTerm, node))

	if node.Role != Candidate {
		return nil
	}

	if !m.Success {
		return nil
	}

	self := node.ID
	node.candidate.Votes[m.Source] = &self

	if node.candidate.grantedVotes(node.ID) < Majority(len(node.Config.Peers)) {
		return nil
	}

	ImplementStateChange(node, EnumerateStateChange(ElectionCommission, node.CurrentTerm, node))

	return []Message{UpdateFollowers{
		Source:    node.ID,
		Target:    node.ID,
		Followers: node.Config.Others(),
	}}
}

// handleRoleChange implements spec.md §4.4.8. It asserts the node is
// currently in FromRole, then applies the transition named by the pair —
// the only two the driver ever constructs are Follower->Candidate (from a
// follower's election timeout) and Leader->Follower (from a leader's
// isolation timeout).
func handleRoleChange(node *Node, m RoleChange) []Message {
	if node.Role != m.FromRole {
		invariantViolation("RoleChange", ErrRoleMismatch)
	}

	var trigger TriggerSource
	switch {
	case m.FromRole == Follower && m.ToRole == Candidate:
		trigger = Timer
	case m.FromRole == Leader && m.ToRole == Follower:
		trigger = Constitution
	default:
		invariantViolation("RoleChange", ErrUnsupportedRoleChange)
	}

	ImplementStateChange(node, EnumerateStateChange(trigger, node.CurrentTerm, node))

	if m.FromRole == Follower && m.ToRole == Candidate {
		return []Message{RunElection{
			Source:    node.ID,
			Target:    node.ID,
			Followers: node.Config.Others(),
		}}
	}
	return nil
}
