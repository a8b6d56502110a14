package totpgate

import "errors"

var (
	// ErrConfigInvalid is an exported constant or variable used by the second-factor gate.
	ErrConfigInvalid = errors.New("invalid gate configuration")
	// ErrGateNotReady is an exported constant or variable used by the second-factor gate.
	ErrGateNotReady = errors.New("gate not fully initialized")
	// ErrMissingUserID is an exported constant or variable used by the second-factor gate.
	ErrMissingUserID = errors.New("transaction lacks a resolvable user id attribute")
	// ErrNotConfigured is an exported constant or variable used by the second-factor gate.
	ErrNotConfigured = errors.New("second factor enforced but not configured for user")
	// ErrStateIDMissing is an exported constant or variable used by the second-factor gate.
	ErrStateIDMissing = errors.New("missing required StateId parameter")
	// ErrStateIDInvalid is an exported constant or variable used by the second-factor gate.
	ErrStateIDInvalid = errors.New("malformed state identifier")
	// ErrRedirectRejected is an exported constant or variable used by the second-factor gate.
	ErrRedirectRejected = errors.New("redirect target not allowed")
	// ErrStateNotFound is an exported constant or variable used by the second-factor gate.
	ErrStateNotFound = errors.New("authentication state not found")
	// ErrStateExpired is an exported constant or variable used by the second-factor gate.
	ErrStateExpired = errors.New("authentication state expired")
	// ErrStateBackend is an exported constant or variable used by the second-factor gate.
	ErrStateBackend = errors.New("state store backend unavailable")
	// ErrCodeNotNumeric is an exported constant or variable used by the second-factor gate.
	ErrCodeNotNumeric = errors.New("token must consist of only numeric values")
	// ErrCodeRejected is an exported constant or variable used by the second-factor gate.
	ErrCodeRejected = errors.New("incorrect token")
	// ErrValidatorUnreachable is an exported constant or variable used by the second-factor gate.
	ErrValidatorUnreachable = errors.New("validation service unreachable")
	// ErrValidatorProtocol is an exported constant or variable used by the second-factor gate.
	ErrValidatorProtocol = errors.New("validation service returned an unexpected response")
	// ErrNoValidationBackend is an exported constant or variable used by the second-factor gate.
	ErrNoValidationBackend = errors.New("no validation backend configured")
	// ErrResumeFailed is an exported constant or variable used by the second-factor gate.
	ErrResumeFailed = errors.New("pipeline resume failed")
)
