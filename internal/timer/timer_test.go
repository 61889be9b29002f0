package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumkit/raft/internal/raft"
)

func TestSchedulerFiresAndRearms(t *testing.T) {
	var fires int32
	role := raft.Leader
	s := NewScheduler(10*time.Millisecond, func() raft.Role { return role }, func() {
		atomic.AddInt32(&fires, 1)
	})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fires) >= 2 }, time.Second, time.Millisecond, "scheduler must re-arm after firing")
}

func TestSchedulerNotifySuppressesOneFire(t *testing.T) {
	var fires int32
	role := raft.Follower
	s := NewScheduler(15*time.Millisecond, func() raft.Role { return role }, func() {
		atomic.AddInt32(&fires, 1)
	})
	s.Start()
	defer s.Stop()

	s.Notify()
	time.Sleep(60 * time.Millisecond)

	assert.LessOrEqual(t, atomic.LoadInt32(&fires), int32(1), "a notified tick must be suppressed at least once")
}

func TestSchedulerStopHaltsFiring(t *testing.T) {
	var fires int32
	role := raft.Leader
	s := NewScheduler(5*time.Millisecond, func() raft.Role { return role }, func() {
		atomic.AddInt32(&fires, 1)
	})
	s.Start()
	s.Stop()

	time.Sleep(30 * time.Millisecond)
	after := atomic.LoadInt32(&fires)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&fires), "no more fires may occur once stopped")
}
