package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quorumkit/raft/internal/raft"
)

// ErrPoolClosed mirrors the teacher's worker.ErrPoolClosed: submitting to a
// stopped Pool is a caller error, not a silent no-op.
var ErrPoolClosed = errors.New("transport: outbound pool is closed")

// Sender is the outbound half of a Dialer; Pool depends on this narrower
// interface so tests can substitute a fake instead of dialing real gRPC
// connections.
type Sender interface {
	SendAppendEntries(ctx context.Context, req *raft.AppendEntryRequest) (*raft.AppendEntryResponse, error)
	SendRequestVote(ctx context.Context, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error)
}

// Pool fans outbound AppendEntryRequest/RequestVoteRequest messages out to
// peers concurrently (same fixed-worker-count, buffered-channel,
// WaitGroup-drain shape as the teacher's worker.Pool), while every reply it
// receives is funneled onto one result channel — so whatever reads that
// channel stays the single writer into raft.Dispatch, per spec.md §5.
type Pool struct {
	dialer Sender

	taskCh   chan raft.Message
	resultCh chan raft.Message
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	logger *slog.Logger

	onAppendLatency func(time.Duration)
}

// PoolOption configures optional Pool behavior at construction time.
type PoolOption func(*Pool)

// WithAppendLatencyObserver registers fn to be called with the round-trip
// time of every AppendEntryRequest this pool delivers, for
// internal/metrics' raft_replication_latency_seconds histogram.
func WithAppendLatencyObserver(fn func(time.Duration)) PoolOption {
	return func(p *Pool) { p.onAppendLatency = fn }
}

// NewPool builds a Pool with the given channel buffer size.
func NewPool(dialer Sender, bufferSize int, opts ...PoolOption) *Pool {
	p := &Pool{
		dialer:   dialer,
		taskCh:   make(chan raft.Message, bufferSize),
		resultCh: make(chan raft.Message, bufferSize),
		stopCh:   make(chan struct{}),
		logger:   slog.With("component", "transport-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches workerCount goroutines draining taskCh.
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("transport: pool already started")
	}

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.started = true
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case msg, ok := <-p.taskCh:
			if !ok {
				return
			}
			p.deliver(msg)
		}
	}
}

func (p *Pool) deliver(msg raft.Message) {
	ctx := context.Background()

	switch req := msg.(type) {
	case raft.AppendEntryRequest:
		start := time.Now()
		resp, err := p.dialer.SendAppendEntries(ctx, &req)
		if err != nil {
			return
		}
		if p.onAppendLatency != nil {
			p.onAppendLatency(time.Since(start))
		}
		p.publish(*resp)
	case raft.RequestVoteRequest:
		resp, err := p.dialer.SendRequestVote(ctx, &req)
		if err != nil {
			return
		}
		p.publish(*resp)
	default:
		p.logger.Warn("outbound pool cannot deliver message variant", "type", fmt.Sprintf("%T", msg))
	}
}

func (p *Pool) publish(msg raft.Message) {
	select {
	case p.resultCh <- msg:
	case <-p.stopCh:
	}
}

// Submit enqueues an outbound message for concurrent delivery. Messages
// targeted at self (UpdateFollowers, RunElection, RoleChange) never reach
// the pool — the driver loop dispatches those directly.
func (p *Pool) Submit(msg raft.Message) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return errors.New("transport: pool not started")
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	taskCh := p.taskCh
	stopCh := p.stopCh
	p.mu.Unlock()

	select {
	case taskCh <- msg:
		return nil
	case <-stopCh:
		return ErrPoolClosed
	}
}

// Results returns the channel of inbound replies the driver loop should
// feed back into raft.Dispatch.
func (p *Pool) Results() <-chan raft.Message {
	return p.resultCh
}

// Stop drains in-flight workers and closes the result channel.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	close(p.resultCh)
}
