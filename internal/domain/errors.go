package domain

import "errors"

// Sentinel errors shared across the domain services. Handlers map these to
// HTTP status codes; anything else surfaces as a backend failure.
var (
	// ErrInvalidArgument means a required field was missing or malformed
	// before any backend call was attempted.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAuthFailure covers bad credentials and unregistered profiles.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrForbidden means the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")
)

// Roles as stored on user documents.
const (
	RoleStaff    = "ansatt"
	RoleGuardian = "foresatt"
)

// OppositeRole returns the notification target for an actor role: staff
// actions notify guardians and vice versa.
func OppositeRole(role string) string {
	if role == RoleStaff {
		return RoleGuardian
	}
	return RoleStaff
}
