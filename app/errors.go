// Package app contains the application services of the dashboard: directory
// management, authentication and results. Services own caching and
// invalidation; stores stay dumb.
package app

import "errors"

// Service errors. Store errors (ports.ErrNotFound, ports.ErrDuplicate) and
// directory validation errors pass through unchanged.
var (
	ErrUnitHasUsers       = errors.New("unit still has active users")
	ErrUnknownReference   = errors.New("referenced role, unit or module does not exist")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("account is not active")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidUpload      = errors.New("invalid upload")
)
