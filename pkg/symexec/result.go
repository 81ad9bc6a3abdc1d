package symexec

import "errors"

// ErrInvariant marks a broken internal contract discovered during a walk,
// such as an evaluation stack underflow. It is a defect, not an outcome.
var ErrInvariant = errors.New("symexec: invariant violation")

// Status is the lifecycle state of a walk.
type Status int

const (
	NotStarted Status = iota
	Walking
	Completed
	Aborted
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Walking:
		return "walking"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// AbortReason says why a walk stopped before its worklist emptied.
type AbortReason int

const (
	NotAborted AbortReason = iota
	BudgetExceeded
	UnsupportedOperation
	Cancelled
	InvariantViolation
)

func (r AbortReason) String() string {
	switch r {
	case NotAborted:
		return ""
	case BudgetExceeded:
		return "budget-exceeded"
	case UnsupportedOperation:
		return "unsupported-operation"
	case Cancelled:
		return "cancelled"
	case InvariantViolation:
		return "invariant-violation"
	}
	return "unknown"
}

// Result summarizes a walk.
type Result struct {
	Status Status
	Reason AbortReason
	// Steps counts processed exploded nodes.
	Steps int
	// Visited counts distinct (point, state) pairs.
	Visited int
	// PointCapReached is set when some program point hit its visit cap and
	// later states there were dropped.
	PointCapReached bool
	// DroppedPaths counts paths abandoned at operations whose effect is
	// unknown.
	DroppedPaths int
}

// FullyExplored reports whether every feasible path was followed to its
// end, so that rules needing complete coverage may report.
func (r Result) FullyExplored() bool {
	return r.Status == Completed && !r.PointCapReached && r.DroppedPaths == 0
}
