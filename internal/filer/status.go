package filer

import "fmt"

// Status is a filing's lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusHistorical Status = "HISTORICAL"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// transitions lists the legal successors of each non-terminal state.
// ERROR is reachable from every state before COMPLETED.
var transitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusHistorical, StatusError},
	StatusPaid:       {StatusCompleted, StatusError},
	StatusHistorical: {StatusCompleted, StatusError},
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no successors.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Lifecycle tracks one filing through its states.
//
// Not safe for concurrent use; a lifecycle belongs to a single Apply.
type Lifecycle struct {
	status  Status
	history []Status
}

// NewLifecycle starts a lifecycle in PENDING.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{status: StatusPending, history: []Status{StatusPending}}
}

// Status returns the current state.
func (l *Lifecycle) Status() Status {
	return l.status
}

// History returns every state visited, in order.
func (l *Lifecycle) History() []Status {
	return append([]Status(nil), l.history...)
}

// To moves to next, rejecting transitions the state machine does not allow.
func (l *Lifecycle) To(next Status) error {
	if !l.status.CanTransition(next) {
		return fmt.Errorf("illegal filing transition %s -> %s", l.status, next)
	}
	l.status = next
	l.history = append(l.history, next)
	return nil
}

// Fail moves to ERROR. It is a no-op once the lifecycle is terminal.
func (l *Lifecycle) Fail() {
	if l.status.Terminal() {
		return
	}
	l.status = StatusError
	l.history = append(l.history, StatusError)
}
