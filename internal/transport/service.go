package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/quorumkit/raft/internal/raft"
)

// serviceName is the RPC service path used by both client and server; it
// plays the role a .proto package/service declaration would, without one
// existing on disk.
const serviceName = "quorumkit.raft.RaftService"

// ProposeRequest carries a client-submitted item to whichever node
// receives it; only the leader accepts it (ProposeResponse.Success false
// otherwise, with LeaderHint set when known).
type ProposeRequest struct {
	Item []byte
}

// ProposeResponse reports whether the submission was accepted, and if
// not, which node this one last saw acting as leader.
type ProposeResponse struct {
	Success    bool
	LeaderHint raft.NodeID
	HasHint    bool
}

// StatusRequest carries no fields; it asks a node for its own NodeStatus.
type StatusRequest struct{}

// RaftServer is implemented by whatever owns the node and wants to receive
// RPCs on its behalf — in this module, *Server.
type RaftServer interface {
	AppendEntries(ctx context.Context, req *raft.AppendEntryRequest) (*raft.AppendEntryResponse, error)
	RequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error)
	Propose(ctx context.Context, req *ProposeRequest) (*ProposeResponse, error)
	GetStatus(ctx context.Context, req *StatusRequest) (*NodeStatus, error)
}

// RegisterRaftServer wires srv into a *grpc.Server using the hand-built
// ServiceDesc below, the same role protoc-generated RegisterXServer
// functions play.
func RegisterRaftServer(s grpc.ServiceRegistrar, srv RaftServer) {
	s.RegisterService(&raftServiceDesc, srv)
}

func raftAppendEntriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(raft.AppendEntryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).AppendEntries(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/AppendEntries"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).AppendEntries(ctx, req.(*raft.AppendEntryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func raftRequestVoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(raft.RequestVoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).RequestVote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RequestVote"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).RequestVote(ctx, req.(*raft.RequestVoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func raftProposeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProposeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).Propose(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Propose"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).Propose(ctx, req.(*ProposeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func raftGetStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RaftServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var raftServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RaftServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AppendEntries", Handler: raftAppendEntriesHandler},
		{MethodName: "RequestVote", Handler: raftRequestVoteHandler},
		{MethodName: "Propose", Handler: raftProposeHandler},
		{MethodName: "GetStatus", Handler: raftGetStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/service.go",
}
