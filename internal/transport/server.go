package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quorumkit/raft/internal/raft"
)

// ErrServerStopped is returned by Server.Dispatch once Stop has been
// called.
var ErrServerStopped = errors.New("transport: server stopped")

// ErrNotLeader is returned by Propose when this node does not currently
// believe itself to be leader.
var ErrNotLeader = errors.New("transport: node is not leader")

type dispatchRequest struct {
	msg   raft.Message
	reply chan dispatchResult
}

type dispatchResult struct {
	out []raft.Message
	err error
}

// NodeStatus is a point-in-time, race-free snapshot of node fields a
// driver needs to answer client-facing queries (propose redirects, the
// status CLI command) without reading node state from outside the
// dispatch loop.
type NodeStatus struct {
	ID          raft.NodeID
	Role        raft.Role
	CurrentTerm int64
	CommitIndex int64
	LastIndex   int64
}

type statusRequest struct {
	reply chan NodeStatus
}

type timeoutRequest struct {
	reply chan raft.Message
}

type entriesRequest struct {
	from  int64
	reply chan []raft.Entry
}

// Server adapts incoming gRPC calls onto a single node. Unlike the
// teacher's Server (a thin passthrough to raftNode's own mutex-guarded
// methods), this Server owns the single queue spec.md §5 requires: every
// concurrent RPC handler goroutine funnels its message through one
// channel, and one loop goroutine is the sole caller of raft.Dispatch.
type Server struct {
	node      *raft.Node
	reqCh     chan dispatchRequest
	statusCh  chan statusRequest
	timeoutCh chan timeoutRequest
	entriesCh chan entriesRequest
	stopCh    chan struct{}
	logger    *slog.Logger

	leaderMu   chan struct{} // binary semaphore guarding lastLeader
	lastLeader *raft.NodeID

	onChange func(NodeStatus)
}

// Option configures optional Server behavior at construction time.
type Option func(*Server)

// WithOnChange registers fn to be called, from inside the dispatch loop,
// once after every successfully processed Dispatch step — a hook the
// driver uses to persist new entries, apply newly committed ones, and
// update metrics, without reading node state from outside the loop.
func WithOnChange(fn func(NodeStatus)) Option {
	return func(s *Server) { s.onChange = fn }
}

// NewServer starts the dispatch loop for node and returns a Server ready to
// be registered with RegisterRaftServer.
func NewServer(node *raft.Node, opts ...Option) *Server {
	s := &Server{
		node:      node,
		reqCh:     make(chan dispatchRequest),
		statusCh:  make(chan statusRequest),
		timeoutCh: make(chan timeoutRequest),
		entriesCh: make(chan entriesRequest),
		stopCh:    make(chan struct{}),
		logger:    slog.With("component", "transport-server", "node", node.ID),
		leaderMu:  make(chan struct{}, 1),
	}
	s.leaderMu <- struct{}{}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

func (s *Server) loop() {
	for {
		select {
		case <-s.stopCh:
			return
		case req := <-s.reqCh:
			if _, ok := req.msg.(raft.ClientLogAppend); ok && s.node.Role != raft.Leader {
				// Checked inside the loop goroutine itself, the only place
				// node.Role can be read without a race: by the time a
				// Propose call's Dispatch reaches here, role may have
				// changed since its earlier Status() check, and
				// handleClientLogAppend panics rather than reject a
				// non-leader call.
				req.reply <- dispatchResult{err: ErrNotLeader}
				continue
			}
			out := raft.Dispatch(s.node, req.msg)
			req.reply <- dispatchResult{out: out}
			if s.onChange != nil {
				s.onChange(s.statusLocked())
			}
		case req := <-s.statusCh:
			req.reply <- s.statusLocked()
		case req := <-s.timeoutCh:
			req.reply <- raft.OnTimeout(s.node)
			if s.onChange != nil {
				s.onChange(s.statusLocked())
			}
		case req := <-s.entriesCh:
			req.reply <- s.node.Log.From(req.from)
		}
	}
}

// statusLocked builds a NodeStatus snapshot; callable only from the loop
// goroutine.
func (s *Server) statusLocked() NodeStatus {
	return NodeStatus{
		ID:          s.node.ID,
		Role:        s.node.Role,
		CurrentTerm: s.node.CurrentTerm,
		CommitIndex: s.node.CommitIndex,
		LastIndex:   s.node.Log.LastIndex(),
	}
}

// Dispatch enqueues msg onto the node's single dispatch queue and returns
// whatever outbound messages that dispatch step produced.
func (s *Server) Dispatch(ctx context.Context, msg raft.Message) ([]raft.Message, error) {
	reply := make(chan dispatchResult, 1)
	select {
	case s.reqCh <- dispatchRequest{msg: msg, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, ErrServerStopped
	}

	select {
	case result := <-reply:
		return result.out, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns a race-free snapshot of the node's current fields,
// answered by the same dispatch loop that owns all node mutation.
func (s *Server) Status(ctx context.Context) (NodeStatus, error) {
	reply := make(chan NodeStatus, 1)
	select {
	case s.statusCh <- statusRequest{reply: reply}:
	case <-ctx.Done():
		return NodeStatus{}, ctx.Err()
	case <-s.stopCh:
		return NodeStatus{}, ErrServerStopped
	}

	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return NodeStatus{}, ctx.Err()
	}
}

// Timeout runs raft.OnTimeout against the node from inside the dispatch
// loop and returns the self-targeted message it produces, so the driver's
// timer goroutine never reads or mutates node state directly.
func (s *Server) Timeout(ctx context.Context) (raft.Message, error) {
	reply := make(chan raft.Message, 1)
	select {
	case s.timeoutCh <- timeoutRequest{reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, ErrServerStopped
	}

	select {
	case msg := <-reply:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EntriesFrom returns a copy of every log entry at or after from, so code
// running outside the loop goroutine that owns the log (internal/cli's
// snapshotter) can read it without racing. It must not be called from
// inside the loop itself, such as from an onChange hook: the request would
// wait for the loop until ctx expires.
func (s *Server) EntriesFrom(ctx context.Context, from int64) ([]raft.Entry, error) {
	reply := make(chan []raft.Entry, 1)
	select {
	case s.entriesCh <- entriesRequest{from: from, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, ErrServerStopped
	}

	select {
	case entries := <-reply:
		return entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetStatus implements RaftServer, exposing Status as a peer-callable RPC
// for the CLI's status command.
func (s *Server) GetStatus(ctx context.Context, req *StatusRequest) (*NodeStatus, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// recordLeader remembers source as the most recently seen leader, so
// Propose can redirect a client even while this node is a follower. This
// is driver-side bookkeeping the core itself doesn't need (spec.md's node
// record has no "known leader" field); it is best-effort and can go stale
// the moment a new election starts.
func (s *Server) recordLeader(source raft.NodeID) {
	<-s.leaderMu
	id := source
	s.lastLeader = &id
	s.leaderMu <- struct{}{}
}

func (s *Server) knownLeader() *raft.NodeID {
	<-s.leaderMu
	defer func() { s.leaderMu <- struct{}{} }()
	return s.lastLeader
}

// AppendEntries implements RaftServer.
func (s *Server) AppendEntries(ctx context.Context, req *raft.AppendEntryRequest) (*raft.AppendEntryResponse, error) {
	s.recordLeader(req.Source)

	out, err := s.Dispatch(ctx, *req)
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		if resp, ok := m.(raft.AppendEntryResponse); ok {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("transport: AppendEntryRequest produced no AppendEntryResponse")
}

// Propose implements RaftServer. The loop itself rejects this with
// ErrNotLeader instead of dispatching when the node isn't leader —
// handleClientLogAppend treats being called on a non-leader as an
// invariant violation (panic), so that check has to happen inside the
// same goroutine that owns node.Role, not here.
func (s *Server) Propose(ctx context.Context, req *ProposeRequest) (*ProposeResponse, error) {
	_, err := s.Dispatch(ctx, raft.ClientLogAppend{Source: s.node.ID, Target: s.node.ID, Item: req.Item})
	if err == nil {
		return &ProposeResponse{Success: true}, nil
	}
	if !errors.Is(err, ErrNotLeader) {
		return nil, err
	}

	resp := &ProposeResponse{Success: false}
	if id, ok := s.KnownLeader(); ok {
		resp.LeaderHint, resp.HasHint = id, true
	}
	return resp, nil
}

// KnownLeader returns the most recently observed leader's ID, if any.
func (s *Server) KnownLeader() (raft.NodeID, bool) {
	if id := s.knownLeader(); id != nil {
		return *id, true
	}
	return 0, false
}

// RequestVote implements RaftServer.
func (s *Server) RequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	out, err := s.Dispatch(ctx, *req)
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		if resp, ok := m.(raft.RequestVoteResponse); ok {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("transport: RequestVoteRequest produced no RequestVoteResponse")
}

// Stop halts the dispatch loop. In-flight Dispatch calls observe
// ErrServerStopped.
func (s *Server) Stop() {
	close(s.stopCh)
}
