package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrValidation        = fmt.Errorf("validation failed")
	ErrMissingArgument   = fmt.Errorf("%w: missing required argument", ErrValidation)
	ErrInvalidArgument   = fmt.Errorf("%w: invalid argument", ErrValidation)
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimensions differ", ErrValidation)
	ErrEmptyMessage      = fmt.Errorf("%w: message content required", ErrValidation)
	ErrInvalidLocation   = fmt.Errorf("%w: invalid coordinates", ErrValidation)

	// Lookup errors
	ErrNotFound      = fmt.Errorf("not found")
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrMatchNotFound = fmt.Errorf("match %w", ErrNotFound)
	ErrNoMatchToday  = fmt.Errorf("no match for today: %w", ErrNotFound)
	ErrTokenNotFound = fmt.Errorf("spotify token %w", ErrNotFound)

	// Authorization errors
	ErrUnauthorized = fmt.Errorf("not authorized")
	ErrNotAParty    = fmt.Errorf("%w: user is not a party to this match", ErrUnauthorized)
	ErrSelfAccept   = fmt.Errorf("%w: cannot accept your own reveal request", ErrUnauthorized)

	// Conflict errors
	ErrConflict        = fmt.Errorf("conflict")
	ErrAlreadyMatched  = fmt.Errorf("%w: participant already matched today", ErrConflict)
	ErrStaleState      = fmt.Errorf("%w: match changed since it was read", ErrConflict)
	ErrMatchInactive   = fmt.Errorf("%w: match is no longer active", ErrConflict)
	ErrAlreadyRevealed = fmt.Errorf("%w: identities already revealed", ErrConflict)
	ErrNoPendingReveal = fmt.Errorf("%w: no reveal request pending", ErrConflict)
)
