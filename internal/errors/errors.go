package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the development backend and the client packages
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("No active account found with the given credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("A user with that username already exists.")

	// Token errors
	ErrInvalidToken       = errors.New("Given token not valid for any token type")
	ErrTokenExpired       = errors.New("Token is invalid or expired")
	ErrMissingCredentials = errors.New("Authentication credentials were not provided.")

	// Authorization errors
	ErrPermissionDenied = errors.New("You do not have permission to perform this action.")

	// Password reset errors
	ErrInvalidResetLink = errors.New("Invalid or expired reset link")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers importing this package under the
// name "errors" still have it.
func New(text string) error {
	return errors.New(text)
}
