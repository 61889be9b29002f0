package walstore

import (
	"fmt"

	"github.com/quorumkit/raft/internal/raft"
)

// ReplayLog rebuilds a fresh raft.Log from a segment by feeding every
// record through raft.AppendEntries in order, reusing the core's own
// idempotent, gap-checked append instead of a bespoke reconstruction path.
// A node calls this once at startup, before it starts accepting
// AppendEntryRequest/ClientLogAppend traffic.
func (s *Store) ReplayLog() (*raft.Log, error) {
	log := raft.NewLog()

	err := s.Replay(func(rec Record) error {
		previousIndex := rec.Index - 1
		previousTerm := raft.SentinelTerm
		if previousIndex >= 0 && previousIndex < log.Len() {
			previousTerm = log.At(previousIndex).Term
		}

		ok := raft.AppendEntries(log, previousIndex, previousTerm, []raft.Entry{{Term: rec.Term, Item: rec.Item}})
		if !ok {
			return fmt.Errorf("walstore: segment record at index %d does not extend the reconstructed log", rec.Index)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return log, nil
}
