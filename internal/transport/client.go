package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/quorumkit/raft/internal/raft"
)

// rpcTimeout bounds a single outbound RPC; the protocol's own retries
// (AppendEntries backtracking, election timeouts) cover failures, so the
// core never needs the transport to retry on its behalf (spec.md §4.4.10,
// §5).
const rpcTimeout = 200 * time.Millisecond

// Dialer sends core messages to peers over gRPC, caching one connection per
// peer address the way the teacher's GrpcTransport does with its
// map[string]*grpc.ClientConn.
type Dialer struct {
	mu    sync.Mutex
	conns map[raft.NodeID]*grpc.ClientConn

	addresses map[raft.NodeID]string
	logger    *slog.Logger
}

// NewDialer builds a Dialer over a fixed id-to-address mapping (the core
// only knows identifiers; addresses are purely a transport concern per
// spec.md §1).
func NewDialer(addresses map[raft.NodeID]string) *Dialer {
	return &Dialer{
		conns:     make(map[raft.NodeID]*grpc.ClientConn),
		addresses: addresses,
		logger:    slog.With("component", "transport"),
	}
}

func (d *Dialer) client(peer raft.NodeID) (RaftClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.conns[peer]; ok {
		return NewRaftClient(conn), nil
	}

	addr, ok := d.addresses[peer]
	if !ok {
		return nil, fmt.Errorf("transport: no address configured for peer %d", peer)
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dial peer %d at %s: %w", peer, addr, err)
	}

	d.conns[peer] = conn
	return NewRaftClient(conn), nil
}

// SendAppendEntries delivers an AppendEntryRequest and returns the
// follower's response, or an error if the RPC could not be completed — the
// caller (the outbound pool) treats delivery failure as silence, per
// spec.md §4.5's best-effort transport contract.
func (d *Dialer) SendAppendEntries(ctx context.Context, req *raft.AppendEntryRequest) (*raft.AppendEntryResponse, error) {
	client, err := d.client(req.Target)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := client.AppendEntries(ctx, req)
	if err != nil {
		d.logger.Debug("append entries rpc failed", "peer", req.Target, "err", err)
		return nil, err
	}
	return resp, nil
}

// SendRequestVote delivers a RequestVoteRequest and returns the peer's
// response.
func (d *Dialer) SendRequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	client, err := d.client(req.Target)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	resp, err := client.RequestVote(ctx, req)
	if err != nil {
		d.logger.Debug("request vote rpc failed", "peer", req.Target, "err", err)
		return nil, err
	}
	return resp, nil
}

// SendPropose submits item to peer, which only accepts it while it
// believes itself to be leader.
func (d *Dialer) SendPropose(ctx context.Context, peer raft.NodeID, item []byte) (*ProposeResponse, error) {
	client, err := d.client(peer)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	return client.Propose(ctx, &ProposeRequest{Item: item})
}

// SendStatus asks peer for its current NodeStatus.
func (d *Dialer) SendStatus(ctx context.Context, peer raft.NodeID) (*NodeStatus, error) {
	client, err := d.client(peer)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	return client.GetStatus(ctx, &StatusRequest{})
}

// Close tears down every cached connection.
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for peer, conn := range d.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transport: closing connection to peer %d: %w", peer, err)
		}
	}
	d.conns = make(map[raft.NodeID]*grpc.ClientConn)
	return firstErr
}

// RaftClient is the client-side stub matching RaftServer, playing the role
// a protoc-generated XClient interface normally would.
type RaftClient interface {
	AppendEntries(ctx context.Context, in *raft.AppendEntryRequest, opts ...grpc.CallOption) (*raft.AppendEntryResponse, error)
	RequestVote(ctx context.Context, in *raft.RequestVoteRequest, opts ...grpc.CallOption) (*raft.RequestVoteResponse, error)
	Propose(ctx context.Context, in *ProposeRequest, opts ...grpc.CallOption) (*ProposeResponse, error)
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*NodeStatus, error)
}

type raftClient struct {
	cc grpc.ClientConnInterface
}

// NewRaftClient wraps a connection (or any grpc.ClientConnInterface, e.g.
// for tests) as a RaftClient.
func NewRaftClient(cc grpc.ClientConnInterface) RaftClient {
	return &raftClient{cc: cc}
}

func (c *raftClient) AppendEntries(ctx context.Context, in *raft.AppendEntryRequest, opts ...grpc.CallOption) (*raft.AppendEntryResponse, error) {
	out := new(raft.AppendEntryResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/AppendEntries", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftClient) RequestVote(ctx context.Context, in *raft.RequestVoteRequest, opts ...grpc.CallOption) (*raft.RequestVoteResponse, error) {
	out := new(raft.RequestVoteResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RequestVote", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftClient) Propose(ctx context.Context, in *ProposeRequest, opts ...grpc.CallOption) (*ProposeResponse, error) {
	out := new(ProposeResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Propose", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*NodeStatus, error) {
	out := new(NodeStatus)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
