package routing

import (
	"errors"
	"fmt"
)

// Error kinds returned by the routing core. Callers classify failures with errors.Is;
// an explicit "nothing matched" outcome is never reported as an error.
var (
	// ErrInvalidOperation reports an action the participant's role or state does not allow.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidArgument reports malformed input such as an empty language list.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports a participant or session ID unknown to the backing store.
	ErrNotFound = errors.New("not found")
	// ErrStorage wraps any failure returned by the participant or session store.
	ErrStorage = errors.New("storage failure")
)

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
