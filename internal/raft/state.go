package raft

// Config is the immutable set of cluster members the core consumes: just
// the identifiers (spec.md §3 — addresses are a transport concern).
type Config struct {
	Self  NodeID
	Peers []NodeID // every member including Self
}

// Others returns every configured member except Self.
func (c Config) Others() []NodeID {
	out := make([]NodeID, 0, len(c.Peers))
	for _, id := range c.Peers {
		if id != c.Self {
			out = append(out, id)
		}
	}
	return out
}

// Majority returns floor(N/2)+1 for a cluster of size n.
func Majority(n int) int {
	return n/2 + 1
}

// leaderState holds the leader-only sub-record of spec.md §3: per-member
// replication indices and the isolation-tracking flag. Present only while
// Role == Leader; spec.md §9 asks for this to live in a role-selected
// sub-record rather than as nullable fields on Node.
type leaderState struct {
	NextIndex    map[NodeID]int64
	MatchIndex   map[NodeID]int64
	HasFollowers bool
}

func newLeaderState(node *Node) *leaderState {
	ls := &leaderState{
		NextIndex:  make(map[NodeID]int64, len(node.Config.Peers)),
		MatchIndex: make(map[NodeID]int64, len(node.Config.Peers)),
	}
	for _, id := range node.Config.Peers {
		ls.NextIndex[id] = node.Log.Len()
		ls.MatchIndex[id] = UnknownIndex
	}
	ls.MatchIndex[node.ID] = node.Log.LastIndex()
	return ls
}

// candidateState holds the candidate-only vote tally of spec.md §3: for
// each cluster member, who the candidate believes that member voted for.
type candidateState struct {
	Votes map[NodeID]*NodeID
}

func newCandidateState(node *Node) *candidateState {
	cs := &candidateState{Votes: make(map[NodeID]*NodeID, len(node.Config.Peers))}
	for _, id := range node.Config.Peers {
		cs.Votes[id] = nil
	}
	self := node.ID
	cs.Votes[node.ID] = &self
	return cs
}

// grantedVotes counts how many cluster members the candidate believes have
// voted for it (i.e. whose tally slot names the candidate itself).
func (cs *candidateState) grantedVotes(self NodeID) int {
	count := 0
	for _, v := range cs.Votes {
		if v != nil && *v == self {
			count++
		}
	}
	return count
}

// Node is the per-node record of spec.md §3. It is created once at startup
// in Follower role with an empty log, and mutates only through Dispatch and
// the explicit role-transition functions in role.go.
type Node struct {
	ID          NodeID
	Config      Config
	Log         *Log
	Role        Role
	CurrentTerm int64
	CommitIndex int64
	VotedFor    *NodeID

	leader    *leaderState    // non-nil only while Role == Leader
	candidate *candidateState // non-nil only while Role == Candidate
}

// NewNode constructs a node in Follower role with an empty log, term -1,
// and commit index -1, per spec.md §3's lifecycle description.
func NewNode(id NodeID, config Config) *Node {
	return &Node{
		ID:          id,
		Config:      config,
		Log:         NewLog(),
		Role:        Follower,
		CurrentTerm: SentinelTerm,
		CommitIndex: SentinelIndex,
	}
}
