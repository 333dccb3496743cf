package scope

import "errors"

// Typed errors returned by scope validation and the session security binder.
// Security errors always fail closed; validation errors reject the requested
// change and retain the prior scope.
var (
	// ErrForbidden means the principal is not entitled to the requested
	// scope. Never retried automatically.
	ErrForbidden = errors.New("principal is not entitled to the requested scope")

	// ErrUnknownTenant means the requested tenant id does not name an
	// active tenant.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrRateLimited means the principal exceeded the scope-switch window.
	// Checked before any validation or persistence work.
	ErrRateLimited = errors.New("scope switch rate limit exceeded")

	// ErrNotFound means the principal has zero entitlements and is not
	// elevated: a misconfigured account.
	ErrNotFound = errors.New("principal has no tenant entitlements")

	// ErrSecurityDowngrade is signalled by the binder when elevation could
	// not be verified and the connection was bound to the most restrictive
	// scope instead. Callers must abort the request.
	ErrSecurityDowngrade = errors.New("security verification failed; connection bound to restrictive scope")
)
