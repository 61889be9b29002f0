package raft

// Role is one of the three real server roles (spec.md §4.3).
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// triggerKind distinguishes a real remote peer from the three pseudo-roles
// spec.md §9 says must not be modeled as additional Role values: Timer,
// ElectionCommission, and Constitution are source tags on a trigger event,
// not states a node can be in.
type triggerKind int

const (
	triggerPeer triggerKind = iota
	triggerTimer
	triggerElectionCommission
	triggerConstitution
)

// TriggerSource identifies what is asking for a role re-evaluation: either
// a remote peer playing the given role, or one of the three internal
// pseudo-sources.
type TriggerSource struct {
	kind     triggerKind
	peerRole Role
}

// Peer wraps a remote RPC's implied role (the role only a node playing it
// would send that RPC as) for EvaluateRoleChange's term-comparison logic.
func Peer(role Role) TriggerSource { return TriggerSource{kind: triggerPeer, peerRole: role} }

// Timer, ElectionCommission, and Constitution are the three pseudo-sources
// of spec.md §4.3: an elapsed timeout, winning an election, and losing
// contact with followers, respectively.
var (
	Timer              = TriggerSource{kind: triggerTimer}
	ElectionCommission = TriggerSource{kind: triggerElectionCommission}
	Constitution       = TriggerSource{kind: triggerConstitution}
)

// RoleTransition names an outgoing and incoming role for a single change.
type RoleTransition struct {
	From, To Role
}

// VotedForOp names what to do to voted_for as part of a state change.
type VotedForOp int

const (
	VotedForPass VotedForOp = iota
	VotedForReset
	VotedForInitializeSelf
)

// Op names what to do to one of the five per-attribute sub-states of
// spec.md §4.3's operation table.
type Op int

const (
	OpPass Op = iota
	OpReset
	OpInitialize
)

// AttributeOps is the per-attribute operation tuple of spec.md §4.3's
// table, one field per row header.
type AttributeOps struct {
	NextIndex    Op
	MatchIndex   Op
	CommitIndex  Op
	HasFollowers Op
	CurrentVotes Op
}

// EvaluateRoleChange is the pure function of spec.md §4.3: given what
// triggered the evaluation, the term it carries (meaningless for
// pseudo-sources), and the node's current role/term, decide whether a role
// change happens, what the new current term is, and what to do to
// voted_for.
func EvaluateRoleChange(trigger TriggerSource, sourceTerm int64, targetRole Role, targetTerm int64) (*RoleTransition, int64, VotedForOp) {
	switch trigger.kind {
	case triggerTimer:
		if targetRole == Follower {
			return &RoleTransition{From: Follower, To: Candidate}, targetTerm + 1, VotedForInitializeSelf
		}
		return nil, targetTerm, VotedForPass

	case triggerElectionCommission:
		if targetRole == Candidate {
			return &RoleTransition{From: Candidate, To: Leader}, targetTerm, VotedForPass
		}
		return nil, targetTerm, VotedForPass

	case triggerConstitution:
		if targetRole == Leader {
			return &RoleTransition{From: Leader, To: Follower}, targetTerm, VotedForPass
		}
		return nil, targetTerm, VotedForPass

	default: // triggerPeer: a remote RPC
		switch {
		case sourceTerm > targetTerm:
			var rc *RoleTransition
			if targetRole != Follower {
				rc = &RoleTransition{From: targetRole, To: Follower}
			}
			return rc, sourceTerm, VotedForReset

		case sourceTerm == targetTerm:
			if trigger.peerRole == Leader && targetRole == Candidate {
				return &RoleTransition{From: Candidate, To: Follower}, targetTerm, VotedForPass
			}
			return nil, targetTerm, VotedForPass

		default: // sourceTerm < targetTerm: stale RPC, caller rejects it
			return nil, targetTerm, VotedForPass
		}
	}
}

// EvaluateOperations is the pure function of spec.md §4.3's table, mapping
// a role change (or none) to what happens to each of the five per-attribute
// sub-states.
func EvaluateOperations(rc *RoleTransition) AttributeOps {
	if rc == nil {
		return AttributeOps{}
	}
	switch {
	case rc.From == Follower && rc.To == Candidate:
		return AttributeOps{
			NextIndex: OpPass, MatchIndex: OpPass, CommitIndex: OpPass,
			HasFollowers: OpPass, CurrentVotes: OpInitialize,
		}
	case rc.From == Candidate && rc.To == Leader:
		return AttributeOps{
			NextIndex: OpInitialize, MatchIndex: OpInitialize, CommitIndex: OpPass,
			HasFollowers: OpInitialize, CurrentVotes: OpPass,
		}
	case rc.From == Candidate && rc.To == Follower:
		return AttributeOps{
			NextIndex: OpPass, MatchIndex: OpPass, CommitIndex: OpPass,
			HasFollowers: OpPass, CurrentVotes: OpReset,
		}
	case rc.From == Leader && rc.To == Follower:
		return AttributeOps{
			NextIndex: OpReset, MatchIndex: OpReset, CommitIndex: OpReset,
			HasFollowers: OpReset, CurrentVotes: OpReset,
		}
	default:
		return AttributeOps{}
	}
}

// StateChange is the composed descriptor enumerate_state_change returns in
// spec.md §4.3.
type StateChange struct {
	RoleChange *RoleTransition
	NewTerm     int64
	VotedForOp  VotedForOp
	Ops         AttributeOps
}

// EnumerateStateChange composes EvaluateRoleChange and EvaluateOperations
// against a node's current role/term.
func EnumerateStateChange(trigger TriggerSource, sourceTerm int64, node *Node) StateChange {
	rc, newTerm, vfOp := EvaluateRoleChange(trigger, sourceTerm, node.Role, node.CurrentTerm)
	return StateChange{
		RoleChange: rc,
		NewTerm:    newTerm,
		VotedForOp: vfOp,
		Ops:        EvaluateOperations(rc),
	}
}

// ImplementStateChange applies a StateChange descriptor to a node. It
// asserts that the outgoing role named by any RoleChange equals the node's
// current role before mutating anything, per spec.md §4.3.
func ImplementStateChange(node *Node, sc StateChange) {
	if sc.RoleChange != nil {
		if node.Role != sc.RoleChange.From {
			invariantViolation("ImplementStateChange", ErrRoleMismatch)
		}
		node.Role = sc.RoleChange.To
	}

	node.CurrentTerm = sc.NewTerm

	switch sc.VotedForOp {
	case VotedForReset:
		node.VotedFor = nil
	case VotedForInitializeSelf:
		self := node.ID
		node.VotedFor = &self
	}

	applyAttributeOps(node, sc.Ops)
}

func applyAttributeOps(node *Node, ops AttributeOps) {
	switch {
	case ops.NextIndex == OpInitialize || ops.MatchIndex == OpInitialize || ops.HasFollowers == OpInitialize:
		node.leader = newLeaderState(node)
	case ops.NextIndex == OpReset || ops.MatchIndex == OpReset || ops.HasFollowers == OpReset:
		node.leader = nil
	}

	if ops.CommitIndex == OpReset {
		node.CommitIndex = SentinelIndex
	}

	switch ops.CurrentVotes {
	case OpInitialize:
		node.candidate = newCandidateState(node)
	case OpReset:
		node.candidate = nil
	}
}
