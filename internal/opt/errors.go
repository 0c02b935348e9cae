package opt

import "errors"

var (
	// ErrCapacityViolation is returned when a pickup or delivery is attempted
	// without the onboard slots it needs. The search discards such moves.
	ErrCapacityViolation = errors.New("capacity violation")

	ErrInvalidMatrix    = errors.New("invalid distance matrix")
	ErrStopOutOfRange   = errors.New("stop out of range")
	ErrUnclassifiedStop = errors.New("stop is neither pending pickup nor pending delivery")
	ErrIncompleteRoute  = errors.New("route leaves clients unserved")
	ErrNoLegalAction    = errors.New("no legal action")
)
