// Package walstore persists a durable copy of the core's replicated log.
//
// The core's raft.Log (spec.md §2/§3) lives entirely in memory — spec.md's
// non-goals explicitly place durability outside the core. A deployment
// that wants to survive a process restart appends every entry the core's
// log gains to a walstore.Store, and rebuilds a fresh raft.Log from it on
// startup via ReplayLog. This is field-for-field the teacher's
// internal/storage/wal package, retargeted from wal.Event{JobID,
// EventType} to walstore.Record{Index, Term, Item}.
package walstore

// Record is one persisted log position: the index and term the core
// assigned it, the opaque item it carries, and a checksum over both.
type Record struct {
	Index    int64  `json:"index"`
	Term     int64  `json:"term"`
	Item     []byte `json:"item"`
	Checksum uint32 `json:"checksum"`
}
