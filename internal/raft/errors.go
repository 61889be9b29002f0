package raft

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by InvariantError. These are programming errors,
// not protocol conditions: a correctly driven node should never trigger
// them. See spec.md §7 for the taxonomy this mirrors.
var (
	ErrNotLeader       = errors.New("raft: node is not leader")
	ErrNotCandidate    = errors.New("raft: node is not candidate")
	ErrRoleMismatch    = errors.New("raft: RoleChange.FromRole does not match current role")
	ErrLogContradiction = errors.New("raft: existing log entry does not match incoming entry after conflict resolution")
	ErrUnsupportedRoleChange = errors.New("raft: RoleChange does not name a transition the core can apply")
)

// InvariantError reports a condition that indicates a bug in the driver or
// in the core itself, rather than a network or timing condition. Handlers
// panic with this type rather than returning it, because the dispatcher has
// no error return channel (spec.md §7): the driver is expected to recover
// the panic at its own boundary, log it, and treat it as fatal.
type InvariantError struct {
	Op  string
	Err error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("raft: invariant violation in %s: %v", e.Op, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func invariantViolation(op string, err error) {
	panic(&InvariantError{Op: op, Err: err})
}
