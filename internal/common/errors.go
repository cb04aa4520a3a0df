package common

import "errors"

// Callers should match these values with errors.Is; most call sites wrap them
// with additional context.
var (
	// Repository-level errors. A record owned by someone else is reported as
	// ErrorNotFound as well.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Input errors.
	ErrorValidation = errors.New("validation error")

	// Upstream object storage or archive fetch failures.
	ErrorExternalService = errors.New("external service error")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Token errors (access tokens and one-time activation/reset tokens).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
