// ABOUTME: Typed authentication error taxonomy with fallback metadata
// ABOUTME: Maps transport failures to user-facing codes and backoff delays

package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/loreworks/lore-console/internal/storage"
)

// Code identifies an authentication failure class.
type Code string

const (
	CodeInvalidCredentials    Code = "INVALID_CREDENTIALS"
	CodeNetworkError          Code = "NETWORK_ERROR"
	CodeServerError           Code = "SERVER_ERROR"
	CodeAccessDenied          Code = "ACCESS_DENIED"
	CodeSessionExpired        Code = "SESSION_EXPIRED"
	CodeSSOLoginFailed        Code = "SSO_LOGIN_FAILED"
	CodeSSOCallbackFailed     Code = "SSO_CALLBACK_FAILED"
	CodeSSOServiceUnavailable Code = "SSO_SERVICE_UNAVAILABLE"
	CodeTokenExchangeFailed   Code = "TOKEN_EXCHANGE_FAILED"
	CodeConfigurationError    Code = "CONFIGURATION_ERROR"
)

// Sentinel errors that callers branch on with errors.Is. AuthError values
// wrap these so the taxonomy survives error chains.
var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
)

// errorMessages is the user-facing message catalogue.
var errorMessages = map[Code]string{
	CodeInvalidCredentials:    "Invalid username or password. Please try again.",
	CodeNetworkError:          "Network connection error. Please check your connection.",
	CodeServerError:           "Server error occurred. Please try again later or contact support.",
	CodeAccessDenied:          "Access denied. You do not have permission to access this resource.",
	CodeSessionExpired:        "Your session has expired. Please sign in again.",
	CodeSSOLoginFailed:        "Enterprise sign-in failed. Please try again or use username/password.",
	CodeSSOCallbackFailed:     "Enterprise authentication callback failed. Please try again.",
	CodeSSOServiceUnavailable: "Enterprise sign-in is temporarily unavailable. Please try username/password.",
	CodeTokenExchangeFailed:   "Failed to complete enterprise authentication. Please try again.",
	CodeConfigurationError:    "Authentication configuration error. Please contact your administrator.",
}

// Message returns the catalogue message for a code.
func Message(code Code) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "An unexpected error occurred. Please try again."
}

// AuthError is the typed error surfaced to UI code. Raw transport errors
// never leak past the session manager; they are wrapped here first.
type AuthError struct {
	Code           Code
	Message        string
	Method         storage.Method
	CanFallback    bool
	FallbackMethod storage.Method
	Timestamp      time.Time
	Err            error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// newAuthError builds an AuthError with the catalogue message.
func newAuthError(code Code, method storage.Method, cause error) *AuthError {
	return &AuthError{
		Code:      code,
		Message:   Message(code),
		Method:    method,
		Timestamp: time.Now(),
		Err:       cause,
	}
}

// withFallback marks the error as recoverable via the other auth method.
func (e *AuthError) withFallback(method storage.Method) *AuthError {
	e.CanFallback = true
	e.FallbackMethod = method
	return e
}

// errorFromStatus maps an HTTP status from an authentication endpoint to the
// taxonomy. A zero status means the request never reached the server.
func errorFromStatus(status int, method storage.Method, cause error) *AuthError {
	switch {
	case status == 0:
		return newAuthError(CodeNetworkError, method, cause)
	case status == http.StatusUnauthorized:
		e := newAuthError(CodeInvalidCredentials, method, cause)
		if method == storage.MethodFederated {
			e.withFallback(storage.MethodLocal)
		}
		return e
	case status == http.StatusForbidden:
		return newAuthError(CodeAccessDenied, method, cause)
	case status == http.StatusServiceUnavailable:
		e := newAuthError(CodeSSOServiceUnavailable, method, cause)
		if method == storage.MethodFederated {
			e.withFallback(storage.MethodLocal)
		}
		return e
	case status >= 500:
		return newAuthError(CodeServerError, method, cause)
	default:
		e := newAuthError(CodeServerError, method, cause)
		e.Message = fmt.Sprintf("HTTP %d: unexpected authentication failure", status)
		return e
	}
}

// ShouldRetry reports whether the error class is worth retrying.
func ShouldRetry(err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	switch authErr.Code {
	case CodeNetworkError, CodeServerError, CodeSSOServiceUnavailable:
		return true
	default:
		return false
	}
}

// RetryDelay returns the backoff delay before retry attempt n (1-based):
// 1s, 2s, 4s, 8s, capped at 30s.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Second << (attempt - 1)
	if delay > 30*time.Second || delay <= 0 {
		return 30 * time.Second
	}
	return delay
}
