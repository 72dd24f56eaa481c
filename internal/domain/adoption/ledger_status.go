package adoption

import "fmt"

// Status is the settlement state of a ledger. It is never stored independently of the
// amounts; see ComputeStatus.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ComputeStatus derives a ledger status from the paid amount and the total owed.
// An empty ledger is cancelled, an underpaid one pending, anything else completed.
func ComputeStatus(payMoneyCents, totalCents int64) Status {
	switch {
	case totalCents == 0:
		return StatusCancelled
	case payMoneyCents < totalCents:
		return StatusPending
	default:
		return StatusCompleted
	}
}

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid ledger status: %s", s)
	}
	return status, nil
}
