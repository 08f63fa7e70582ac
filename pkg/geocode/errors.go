package geocode

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an address has no coordinates.
type FailureKind string

const (
	// NotApplicable means there was no address to resolve.
	NotApplicable FailureKind = "not_applicable"
	// NoMatch means the provider answered but had no usable coordinate pair.
	NoMatch FailureKind = "no_match"
	// Transport means the provider could not be reached or is throttling.
	// Another cycle may succeed.
	Transport FailureKind = "transport"
	// Rejected means the provider refused the request or answered with
	// something unreadable, e.g. a bad key or a 4xx. Asking again will not help.
	Rejected FailureKind = "rejected"
)

// ResolutionError reports a failed address resolution.
type ResolutionError struct {
	Kind    FailureKind
	Address string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode: %s for %q: %v", e.Kind, e.Address, e.Err)
	}
	return fmt.Sprintf("geocode: %s for %q", e.Kind, e.Address)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or "" if err is not a
// ResolutionError.
func KindOf(err error) FailureKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
