package models

import "errors"

// ErrorKind tags a failure so callers can branch on the category instead of
// matching message strings
type ErrorKind string

const (
	ErrKindClubNotFound             ErrorKind = "club_not_found"
	ErrKindStudentNotFound          ErrorKind = "student_not_found"
	ErrKindMembershipNotFound       ErrorKind = "membership_not_found"
	ErrKindInviteNotFound           ErrorKind = "invite_not_found"
	ErrKindDuplicateMembership      ErrorKind = "duplicate_membership"
	ErrKindInvalidRole              ErrorKind = "invalid_role"
	ErrKindInvalidInput             ErrorKind = "invalid_input"
	ErrKindForbidden                ErrorKind = "forbidden"
	ErrKindSameRequesterConfirmer   ErrorKind = "same_requester_confirmer"
	ErrKindDenormalizedStateMissing ErrorKind = "denormalized_state_missing"
)

// AppError is a tagged service-level failure
type AppError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewAppError creates a tagged error
func NewAppError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// WrapAppError creates a tagged error that carries an underlying cause
func WrapAppError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, cause: cause}
}

// ErrorKindOf extracts the kind from an error chain; returns "" when the
// error carries no kind
func ErrorKindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether the error chain contains an AppError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return ErrorKindOf(err) == kind
}
