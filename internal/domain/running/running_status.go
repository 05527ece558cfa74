package running

import "fmt"

// Status represents the current state of a running event in its lifecycle.
type Status string

const (
	StatusRecruiting Status = "recruiting"
	StatusClosed     Status = "closed"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// validTransitions defines the state machine for running status transitions.
var validTransitions = map[Status][]Status{
	StatusRecruiting: {StatusClosed, StatusCompleted, StatusCancelled},
	StatusClosed:     {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid returns true if the status is a recognized running status.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid running status: %s", s)
	}
	return status, nil
}
