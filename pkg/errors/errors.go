package errors

import "fmt"

// Error types for the login engine
var (
	ErrAuthenticationFailed = &ServiceError{
		Code:    "AUTHENTICATION_FAILED",
		Message: "The token endpoint rejected the credentials",
		Status:  401,
	}

	ErrNoRefreshToken = &ServiceError{
		Code:    "NO_REFRESH_TOKEN",
		Message: "Cannot refresh access token: no refresh_token available",
		Status:  401,
	}

	ErrDirectoryLookup = &ServiceError{
		Code:    "DIRECTORY_LOOKUP_FAILED",
		Message: "Directory endpoint returned an unexpected response",
		Status:  502,
	}

	ErrConfirmationFailed = &ServiceError{
		Code:    "CONFIRMATION_FAILED",
		Message: "The authorization confirmation could not be completed",
		Status:  502,
	}

	ErrMissingRedirect = &ServiceError{
		Code:    "MISSING_REDIRECT",
		Message: "Authorization was confirmed but no redirect URL was returned",
		Status:  502,
	}

	ErrTenantNotConfigured = &ServiceError{
		Code:    "TENANT_NOT_CONFIGURED",
		Message: "IAM client is not configured for this identity provider",
		Status:  409,
	}

	// ErrInvalidRequest is used for syntactically invalid requests (missing or
	// malformed parameters) where a 400 response is appropriate.
	ErrInvalidRequest = &ServiceError{
		Code:    "INVALID_REQUEST",
		Message: "Invalid request",
		Status:  400,
	}

	ErrNotAuthenticated = &ServiceError{
		Code:    "NOT_AUTHENTICATED",
		Message: "Sign in before confirming an authorization request",
		Status:  401,
	}

	ErrConfirmationInProgress = &ServiceError{
		Code:    "CONFIRMATION_IN_PROGRESS",
		Message: "An authorization confirmation is already in progress",
		Status:  409,
	}

	ErrInternalServer = &ServiceError{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "Internal server error",
		Status:  500,
	}
)

// ServiceError represents a service-level error. Details carries the raw
// backend response (status line and body) for the expandable technical block;
// Message stays short and user-facing.
type ServiceError struct {
	Code    string
	Message string
	Status  int
	Details string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches any ServiceError with the same code, so wrapped errors still
// compare equal to their sentinel with errors.Is.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

// Wrap wraps an error with a ServiceError
func Wrap(err error, serviceErr *ServiceError) *ServiceError {
	return &ServiceError{
		Code:    serviceErr.Code,
		Message: serviceErr.Message,
		Status:  serviceErr.Status,
		Err:     err,
	}
}

// WithDetails returns a copy of serviceErr carrying raw backend details.
func WithDetails(serviceErr *ServiceError, details string) *ServiceError {
	return &ServiceError{
		Code:    serviceErr.Code,
		Message: serviceErr.Message,
		Status:  serviceErr.Status,
		Details: details,
	}
}

// DirectoryLookup builds the error for a non-2xx response from one of the
// read endpoints, keeping the status line and best-effort body.
func DirectoryLookup(status int, reason, body string) *ServiceError {
	if body == "" {
		body = "no body"
	}
	return &ServiceError{
		Code:    ErrDirectoryLookup.Code,
		Message: ErrDirectoryLookup.Message,
		Status:  ErrDirectoryLookup.Status,
		Details: fmt.Sprintf("%d %s: %s", status, reason, body),
	}
}
