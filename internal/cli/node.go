package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/quorumkit/raft/internal/config"
	"github.com/quorumkit/raft/internal/metrics"
	"github.com/quorumkit/raft/internal/raft"
	"github.com/quorumkit/raft/internal/snapshot"
	"github.com/quorumkit/raft/internal/statemachine"
	"github.com/quorumkit/raft/internal/timer"
	"github.com/quorumkit/raft/internal/transport"
	"github.com/quorumkit/raft/internal/walstore"
)

// Node wires the core together with its driver-side collaborators — the
// single orchestrator a process needs, playing the role the teacher's
// Controller plays for the job queue (owning WAL + snapshot + state
// machine + worker pool together), generalized to one raft core instance
// instead of one job queue.
type Node struct {
	cfg *config.Config

	raft       *raft.Node
	server     *transport.Server
	dialer     *transport.Dialer
	pool       *transport.Pool
	sched      *timer.Scheduler
	wal        *walstore.Store
	snap       *snapshot.Manager
	sm         *statemachine.StateMachine
	metrics    *metrics.Collector
	grpcServer *grpc.Server

	logger *slog.Logger

	mu               sync.Mutex
	lastPersisted    int64
	lastRole         raft.Role
	haveLastRole     bool
	snapshotTicker   *time.Ticker
	snapshotStopCh   chan struct{}
	snapshotStopOnce sync.Once
}

// NewNode constructs every collaborator and wires them together, but does
// not start any goroutines yet — call Start for that.
func NewNode(cfg *config.Config) (*Node, error) {
	walPath := filepath.Join(cfg.WAL.Dir, "wal.log")
	wal, err := walstore.Open(walPath, cfg.WAL.BufferSize, cfg.WALFlushInterval())
	if err != nil {
		return nil, fmt.Errorf("raftnode: open wal: %w", err)
	}

	raftLog, err := wal.ReplayLog()
	if err != nil {
		return nil, fmt.Errorf("raftnode: replay wal: %w", err)
	}

	sm := statemachine.New()
	snapPath := filepath.Join(cfg.Snapshot.Dir, "snapshot.json")
	snapMgr := snapshot.NewManager(snapPath)
	if snapMgr.Exists() {
		data, err := snapMgr.Load()
		if err != nil {
			return nil, fmt.Errorf("raftnode: load snapshot: %w", err)
		}
		sm.Restore(data.Store, data.LastIncludedIndex)
	}

	node := raft.NewNode(cfg.Cluster.Self, cfg.RaftConfig())
	node.Log = raftLog

	mcol := metrics.NewCollector()

	n := &Node{
		cfg:           cfg,
		raft:          node,
		wal:           wal,
		snap:          snapMgr,
		sm:            sm,
		metrics:       mcol,
		lastPersisted: raftLog.LastIndex(),
		logger:        slog.With("component", "raftnode", "node", cfg.Cluster.Self),
	}

	n.server = transport.NewServer(node, transport.WithOnChange(n.onChange))
	n.dialer = transport.NewDialer(cfg.PeerAddresses())
	n.pool = transport.NewPool(n.dialer, 16, transport.WithAppendLatencyObserver(mcol.ObserveReplicationLatency))
	n.sched = timer.NewScheduler(cfg.LeaderInterval(), func() raft.Role {
		status, err := n.server.Status(context.Background())
		if err != nil {
			return raft.Follower
		}
		return status.Role
	}, n.onTimerFire)

	return n, nil
}

// Start launches every background goroutine: the outbound pool, the
// result-draining loop, the timer, and (if configured) the periodic
// snapshotter.
func (n *Node) Start() error {
	if err := n.pool.Start(len(n.raft.Config.Others())); err != nil {
		return fmt.Errorf("raftnode: start pool: %w", err)
	}
	go n.drainResults()
	n.sched.Start()

	if n.cfg.Snapshot.IntervalSeconds > 0 {
		n.snapshotStopCh = make(chan struct{})
		n.snapshotTicker = time.NewTicker(n.cfg.SnapshotInterval())
		go n.runSnapshotLoop()
	}

	if n.cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(n.cfg.Metrics.Port); err != nil {
				n.logger.Error("metrics server stopped", "err", err)
			}
		}()
	}

	selfAddr, ok := n.cfg.Cluster.Peers[n.cfg.Cluster.Self]
	if !ok {
		return fmt.Errorf("raftnode: no listen address configured for self (node %d)", n.cfg.Cluster.Self)
	}
	lis, err := net.Listen("tcp", selfAddr)
	if err != nil {
		return fmt.Errorf("raftnode: listen on %s: %w", selfAddr, err)
	}
	n.grpcServer = grpc.NewServer()
	transport.RegisterRaftServer(n.grpcServer, n.server)
	go func() {
		if err := n.grpcServer.Serve(lis); err != nil {
			n.logger.Error("grpc server stopped", "err", err)
		}
	}()

	n.logger.Info("raftnode started", "self", n.cfg.Cluster.Self, "listen", selfAddr)
	return nil
}

// Stop tears every collaborator down in reverse dependency order.
func (n *Node) Stop() {
	if n.grpcServer != nil {
		n.grpcServer.GracefulStop()
	}
	n.sched.Stop()
	if n.snapshotTicker != nil {
		n.snapshotTicker.Stop()
		n.snapshotStopOnce.Do(func() { close(n.snapshotStopCh) })
	}
	n.pool.Stop()
	n.server.Stop()
	if err := n.wal.Close(); err != nil {
		n.logger.Error("wal close failed", "err", err)
	}
	if err := n.dialer.Close(); err != nil {
		n.logger.Error("dialer close failed", "err", err)
	}
	n.logger.Info("raftnode stopped")
}

// Server exposes the transport server for RPC registration and CLI use.
func (n *Node) Server() *transport.Server { return n.server }

// StateMachine exposes the applied key/value store for read-only queries.
func (n *Node) StateMachine() *statemachine.StateMachine { return n.sm }

func (n *Node) onTimerFire() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := n.server.Timeout(ctx)
	if err != nil {
		n.logger.Error("timeout dispatch failed", "err", err)
		return
	}
	if msg != nil {
		n.routeAndDispatch(ctx, msg)
	}
}

func (n *Node) drainResults() {
	for msg := range n.pool.Results() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		n.routeAndDispatch(ctx, msg)
		cancel()
	}
}

// routeAndDispatch feeds msg into the core, then routes whatever comes
// back: self-targeted triggers recurse straight into Dispatch, peer-bound
// requests go to the outbound pool.
func (n *Node) routeAndDispatch(ctx context.Context, msg raft.Message) {
	out, err := n.server.Dispatch(ctx, msg)
	if err != nil {
		n.logger.Error("dispatch failed", "err", err)
		return
	}
	for _, m := range out {
		n.deliver(ctx, m)
	}
}

func (n *Node) deliver(ctx context.Context, msg raft.Message) {
	switch msg.(type) {
	case raft.UpdateFollowers, raft.RunElection, raft.RoleChange:
		n.routeAndDispatch(ctx, msg)
	case raft.AppendEntryRequest, raft.RequestVoteRequest:
		if err := n.pool.Submit(msg); err != nil {
			n.logger.Warn("outbound submit failed", "err", err)
		}
	default:
		n.logger.Warn("unrouted outbound message", "type", fmt.Sprintf("%T", msg))
	}
}

// onChange runs inside the transport server's dispatch loop after every
// processed step; it persists newly appended entries and applies newly
// committed ones. Each WAL append blocks until its batch has been flushed
// and synced, so the dispatch loop it's called from waits on disk for every
// newly appended entry.
func (n *Node) onChange(status transport.NodeStatus) {
	n.metrics.SetTerm(status.CurrentTerm)
	n.metrics.SetRole(status.Role)
	n.metrics.SetCommitIndex(status.CommitIndex)

	n.mu.Lock()
	from := n.lastPersisted + 1
	changedRole := !n.haveLastRole || n.lastRole != status.Role
	n.lastRole, n.haveLastRole = status.Role, true
	n.mu.Unlock()

	if changedRole {
		switch status.Role {
		case raft.Candidate:
			n.metrics.RecordElectionStarted()
		case raft.Leader:
			n.metrics.RecordBecameLeader()
		}
	}

	// onChange runs on the dispatch loop goroutine, which owns the log, so
	// the log is read directly; From returns nil when nothing is new.
	entries := n.raft.Log.From(from)

	for i, e := range entries {
		index := from + int64(i)
		if err := n.wal.Append(index, e.Term, e.Item); err != nil {
			n.logger.Error("wal append failed", "index", index, "err", err)
			return
		}
		n.mu.Lock()
		n.lastPersisted = index
		n.mu.Unlock()
	}

	for index := n.sm.LastApplied() + 1; index <= status.CommitIndex; index++ {
		if err := n.sm.Apply(index, n.raft.Log.At(index).Item); err != nil {
			n.logger.Error("apply committed entry failed", "index", index, "err", err)
			return
		}
		n.metrics.SetLastApplied(index)
	}
}

func (n *Node) runSnapshotLoop() {
	for {
		select {
		case <-n.snapshotStopCh:
			return
		case <-n.snapshotTicker.C:
			if err := n.takeSnapshot(); err != nil {
				n.logger.Error("snapshot failed", "err", err)
			}
		}
	}
}

func (n *Node) takeSnapshot() error {
	store, lastApplied := n.sm.Snapshot()
	if lastApplied < 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	lastTerm := int64(raft.SentinelTerm)
	if entries, err := n.server.EntriesFrom(ctx, lastApplied); err == nil && len(entries) > 0 {
		lastTerm = entries[0].Term
	}

	data := snapshot.Snapshot{
		LastIncludedIndex: lastApplied,
		LastIncludedTerm:  lastTerm,
		Store:             store,
	}
	if err := n.snap.WriteWithRetention(data, n.cfg.Snapshot.RetentionCount); err != nil {
		return err
	}
	return n.wal.Compact(data.LastIncludedIndex + 1)
}
