package model

import "fmt"

// APIError is the unified error format of the console. Category drives the
// recovery path: "auth" errors from credentialed backend calls force a
// logout, everything else is presented in place.
type APIError struct {
	Code     string // stable error code
	Message  string // user-facing message
	Category string // auth, validation, network, registry, system
	Action   string // user-facing recovery hint
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Error codes of the console taxonomy.
const (
	ErrCodeNetworkFailure     = "NETWORK_FAILURE"
	ErrCodeAuthRejected       = "AUTH_REJECTED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeValidationFailure  = "VALIDATION_FAILURE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeLoginInFlight      = "LOGIN_IN_FLIGHT"
)

// NewNetworkFailureError wraps a request that could not complete at all
// (connection refused, timeout, malformed response body).
func NewNetworkFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkFailure,
		Message:  fmt.Sprintf("The registry backend could not be reached: %s", reason),
		Category: "network",
		Action:   "Check the connection and try again shortly.",
	}
}

// NewAuthRejectedError marks a credentialed request that the backend refused.
// The stored token is presumed invalid or expired; the caller must clear the
// session and return the operator to the login view.
func NewAuthRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRejected,
		Message:  "Your session is no longer valid.",
		Category: "auth",
		Action:   "Log in again to continue.",
	}
}

// NewInvalidCredentialsError carries the backend's rejection message from the
// token endpoint, or a generic message when the backend provided none.
func NewInvalidCredentialsError(detail string) *APIError {
	if detail == "" {
		detail = "Invalid username or password."
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  detail,
		Category: "validation",
		Action:   "Correct the credentials and submit again.",
	}
}

// NewValidationFailureError carries a user-facing detail message from a
// rejected write (for example a duplicate national ID on driver creation).
func NewValidationFailureError(detail string) *APIError {
	if detail == "" {
		detail = "The request was rejected by the registry."
	}
	return &APIError{
		Code:     ErrCodeValidationFailure,
		Message:  detail,
		Category: "validation",
		Action:   "Correct the highlighted fields and retry.",
	}
}

// NewNotFoundError marks a lookup miss, such as a public verification scan
// for an unknown driver ID.
func NewNotFoundError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s was not found.", what),
		Category: "registry",
		Action:   "Verify the identifier and try again.",
	}
}

// NewLoginInFlightError rejects a duplicate login submission while an
// earlier attempt for the same browsing session is still being processed.
func NewLoginInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginInFlight,
		Message:  "A login attempt is already in progress.",
		Category: "validation",
		Action:   "Wait for the current attempt to finish.",
	}
}
