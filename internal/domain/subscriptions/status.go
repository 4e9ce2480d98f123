package subscriptions

import "fmt"

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
	StatusInactive  Status = "inactive"
)

// transitions lists the target statuses reachable from each status.
// Re-entering active covers renewal and completion on an active record.
// A completion that arrives after cancellation reactivates the record.
var transitions = map[Status][]Status{
	StatusActive:    {StatusActive, StatusPending, StatusCancelled},
	StatusPending:   {StatusPending, StatusActive, StatusCancelled},
	StatusCancelled: {StatusPending, StatusActive},
	StatusInactive:  {StatusPending, StatusActive},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a record in status from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an error describing an illegal move.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("subscription cannot move from %q to %q", from, to)
	}
	return nil
}
