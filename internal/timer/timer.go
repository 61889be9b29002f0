// Package timer drives the raft core's on_timeout contract (spec.md §6):
// it owns the wall-clock side the core itself never touches, and feeds a
// single fire callback whenever a role-appropriate interval elapses.
package timer

import (
	"math/rand"
	"sync"
	"time"

	"github.com/quorumkit/raft/internal/raft"
)

// Scheduler owns one time.Timer and re-arms it on the interval appropriate
// to the node's current role, mirroring the teacher's
// resetElectionTimer/randomElectionTimeout pattern in raft.go but
// generalized to all three roles instead of just the election timer.
type Scheduler struct {
	mu sync.Mutex

	leaderInterval time.Duration // T_L
	peerInterval   time.Duration // 2*T_L, before follower jitter

	timer   *time.Timer
	role    func() raft.Role
	fire    func()
	stopped bool

	suppressed bool
}

// NewScheduler builds a Scheduler with the leader heartbeat interval T_L;
// follower/candidate timeouts use 2*T_L plus jitter per spec.md §6.
func NewScheduler(leaderInterval time.Duration, role func() raft.Role, fire func()) *Scheduler {
	return &Scheduler{
		leaderInterval: leaderInterval,
		peerInterval:   2 * leaderInterval,
		role:           role,
		fire:           fire,
	}
}

// Start arms the timer for the first time and begins the re-arm loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = time.NewTimer(s.intervalFor(s.role()))
	go s.loop()
}

func (s *Scheduler) loop() {
	for {
		s.mu.Lock()
		t := s.timer
		s.mu.Unlock()
		if t == nil {
			return
		}
		<-t.C

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		skip := s.suppressed
		s.suppressed = false
		role := s.role()
		s.rearmLocked(role)
		s.mu.Unlock()

		if !skip {
			s.fire()
		}
	}
}

// Notify records that the core handled a message this tick that spec.md §6
// allows to suppress the next timeout fire: AppendEntryRequest or
// RequestVoteRequest while follower, or RequestVoteResponse while
// candidate. Suppression is a liveness optimization, never a safety
// property — a suppressed tick still re-arms the timer.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed = true
}

// Reset re-arms the timer immediately for the given role, draining any
// pending fire first. Callers invoke this after a role change so the new
// role's interval takes effect without waiting out the old one.
func (s *Scheduler) Reset(role raft.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rearmLocked(role)
}

func (s *Scheduler) rearmLocked(role raft.Role) {
	if s.timer == nil {
		return
	}
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	s.timer.Reset(s.intervalFor(role))
}

func (s *Scheduler) intervalFor(role raft.Role) time.Duration {
	if role == raft.Leader {
		return s.leaderInterval
	}
	jitter := time.Duration(rand.Int63n(int64(s.leaderInterval)))
	return s.peerInterval + jitter
}

// Stop halts the re-arm loop and releases the underlying timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
