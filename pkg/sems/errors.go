package sems

import "errors"

// Login failures.
var (
	// ErrMissingCredentials is returned before any network call when the
	// account or password is empty.
	ErrMissingCredentials = errors.New("missing sems account or password")
	// ErrRejected means the portal explicitly refused the login.
	ErrRejected = errors.New("sems login rejected")
	// ErrConsentRequired means the account has terms or agreements that must
	// be accepted in the SEMS app or portal first.
	ErrConsentRequired = errors.New("sems account requires accepting the portal agreements")
	// ErrProtocolMismatch means the login response did not have the expected
	// shape.
	ErrProtocolMismatch = errors.New("unexpected sems login response")
)

// Request failures.
var (
	// ErrMissingStation is returned before any network call when the station
	// id is empty.
	ErrMissingStation = errors.New("missing sems station id")
	ErrEmptyResponse  = errors.New("empty sems response")
	ErrMalformed      = errors.New("malformed sems response")
	ErrUpstream       = errors.New("sems api error")
	ErrTransport      = errors.New("sems transport error")
	// ErrUnauthorized means the portal no longer accepts the session token.
	ErrUnauthorized = errors.New("sems session not authorized")
)

// IsAuthError reports whether err is a login failure or a rejected session.
// These abort a refresh cycle since every further request would fail too.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrConsentRequired) ||
		errors.Is(err, ErrProtocolMismatch) ||
		errors.Is(err, ErrUnauthorized)
}
