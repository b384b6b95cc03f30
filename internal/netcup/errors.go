package netcup

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an authenticated action is attempted
// on a session that has never logged in or has been torn down.
var ErrNotAuthenticated = errors.New("session is not authenticated (login required)")

// ErrInvariant indicates an internal consistency violation in a record set,
// e.g. more than two records sharing a hostname. This cannot occur as long
// as Merge is the only mutator.
var ErrInvariant = errors.New("record set invariant violated")

// APIError is an application-level failure: the webservice answered with a
// non-success status. Message carries the remote longmessage verbatim.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netcup API error on %s: %s", e.Action, e.Message)
}

// StatusError is a transport-level failure: the endpoint answered with a
// non-2xx HTTP status before any API-level response could be read.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from netcup endpoint", e.Code)
}
