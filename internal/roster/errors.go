package roster

import (
	"errors"
	"fmt"
)

// UnavailableError means the roster could not be fetched or decoded. The
// sync cycle aborts and keeps its prior state.
type UnavailableError struct {
	URL string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("roster: source unavailable (%s): %v", e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err carries an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// MalformedRecordError describes a row that was skipped.
type MalformedRecordError struct {
	Row    int
	ID     string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("roster: row %d (id %q): %s", e.Row, e.ID, e.Reason)
	}
	return fmt.Sprintf("roster: row %d: %s", e.Row, e.Reason)
}
