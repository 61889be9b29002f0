package raft

// SentinelTerm is the term of the "before the first entry" position, and the
// term a node reports before it has observed any real term.
const SentinelTerm int64 = -1

// SentinelIndex is "before the first entry" / "nothing committed yet".
const SentinelIndex int64 = -1

// UnknownIndex marks a leader's match_index entry for a peer it has not yet
// heard back from, distinct from SentinelIndex (which means "known to have
// zero entries replicated").
const UnknownIndex int64 = -2

// Entry is the unit of replication: the term in which some leader created
// it, and an opaque command payload.
type Entry struct {
	Term int64
	Item []byte
}

func (e Entry) equal(other Entry) bool {
	if e.Term != other.Term {
		return false
	}
	if len(e.Item) != len(other.Item) {
		return false
	}
	for i := range e.Item {
		if e.Item[i] != other.Item[i] {
			return false
		}
	}
	return true
}

// Log is a finite, 0-indexed, gap-free sequence of entries. The zero value
// is a valid empty log.
type Log struct {
	entries []Entry
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Len returns the number of entries in the log.
func (l *Log) Len() int64 {
	return int64(len(l.entries))
}

// LastIndex returns the index of the last entry, or SentinelIndex if empty.
func (l *Log) LastIndex() int64 {
	return l.Len() - 1
}

// LastTerm returns the term of the last entry, or SentinelTerm if empty.
func (l *Log) LastTerm() int64 {
	if l.Len() == 0 {
		return SentinelTerm
	}
	return l.entries[len(l.entries)-1].Term
}

// At returns the entry at index i. The caller must ensure 0 <= i < Len().
func (l *Log) At(i int64) Entry {
	return l.entries[i]
}

// From returns a copy of the entries starting at index i through the end of
// the log. Returns nil if i is at or past the end.
func (l *Log) From(i int64) []Entry {
	if i >= l.Len() {
		return nil
	}
	if i < 0 {
		i = 0
	}
	out := make([]Entry, l.Len()-i)
	copy(out, l.entries[i:])
	return out
}

// appendOwn appends an entry a leader created itself, unconditionally. A
// leader never modifies its own existing entries (spec.md §3); this is the
// only way new entries reach a leader's own log.
func (l *Log) appendOwn(e Entry) {
	l.entries = append(l.entries, e)
}

// AppendEntries implements spec.md §4.1's append/reconcile operation.
//
// Rules, applied in order:
//  1. Gap check: previousIndex must not be past the end of the log.
//  2. Term check: the entry at previousIndex, if any, must have term
//     previousTerm.
//  3. Conflict truncation: scan previousIndex+1... paired with entries[0]...;
//     at the first position where both sides are present and disagree on
//     term, truncate the log there and stop scanning.
//  4. Consistency assertion: anything still present at a target position
//     must equal the incoming entry, or the conflict scan missed something.
//  5. Append tail: append whatever entries land past the end of the log.
//
// Returns false (log unchanged) if the gap or term check fails. Idempotent:
// calling it twice with the same arguments produces the same log as once.
func AppendEntries(log *Log, previousIndex int64, previousTerm int64, entries []Entry) bool {
	if previousIndex >= log.Len() {
		return false
	}
	if previousIndex >= 0 && log.entries[previousIndex].Term != previousTerm {
		return false
	}

	base := previousIndex + 1
	for i, e := range entries {
		idx := base + int64(i)
		if idx >= log.Len() {
			break
		}
		if log.entries[idx].Term != e.Term {
			log.entries = log.entries[:idx]
			break
		}
	}

	for i, e := range entries {
		idx := base + int64(i)
		switch {
		case idx < log.Len():
			if !log.entries[idx].equal(e) {
				invariantViolation("AppendEntries", ErrLogContradiction)
			}
		case idx == log.Len():
			log.entries = append(log.entries, e)
		default:
			// Contiguity guarantees idx == log.Len() at every append step;
			// anything else means the caller handed us a non-contiguous
			// anchor that slipped past the gap check above.
			invariantViolation("AppendEntries", ErrLogContradiction)
		}
	}

	return true
}
