package raft

// OnTimeout is the driver-facing entry point for an elapsed timer
// (spec.md §4.4.10): it names the role-specific self-message the driver
// should feed back into Dispatch. A follower's elapsed timer asks to
// become a candidate. A candidate's elapsed timer means a split vote or
// lost requests — current_term advances in place (the one other place,
// besides seeing a higher remote term, where term advances outside
// Dispatch) and a fresh RunElection is produced for the new term. A
// leader's elapsed timer either steps it down, if no follower
// acknowledged since the last tick, or clears has_followers and asks
// for another round of AppendEntryRequest.
func OnTimeout(node *Node) Message {
	switch node.Role {
	case Follower:
		return RoleChange{Source: node.ID, Target: node.ID, FromRole: Follower, ToRole: Candidate}

	case Candidate:
		node.CurrentTerm++
		return RunElection{Source: node.ID, Target: node.ID, Followers: node.Config.Others()}

	case Leader:
		if node.leader == nil {
			invariantViolation("OnTimeout", ErrRoleMismatch)
		}
		if !node.leader.HasFollowers {
			return RoleChange{Source: node.ID, Target: node.ID, FromRole: Leader, ToRole: Follower}
		}
		node.leader.HasFollowers = false
		return UpdateFollowers{Source: node.ID, Target: node.ID, Followers: node.Config.Others()}

	default:
		return nil
	}
}
