package shared

import "fmt"

// Status is the soft-delete lifecycle shared by catalog, directory and pricing rows.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// IsActive reports whether the row participates in new transactions.
func (s Status) IsActive() bool {
	return s == StatusActive
}

// Transition validates a status change.
func (s Status) Transition(to Status) (Status, error) {
	if !to.Valid() {
		return s, Validationf("unknown status %q", to)
	}
	if s == to {
		return s, fmt.Errorf("%w: status already %s", ErrValidation, to)
	}
	return to, nil
}
