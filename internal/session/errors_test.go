// ABOUTME: Tests for the authentication error taxonomy
// ABOUTME: Covers status mapping, fallback hints, retry classes, and backoff

package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loreworks/lore-console/internal/storage"
)

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		method       storage.Method
		wantCode     Code
		wantFallback bool
	}{
		{"transport failure", 0, storage.MethodLocal, CodeNetworkError, false},
		{"bad local credentials", 401, storage.MethodLocal, CodeInvalidCredentials, false},
		{"bad federated credentials", 401, storage.MethodFederated, CodeInvalidCredentials, true},
		{"forbidden", 403, storage.MethodLocal, CodeAccessDenied, false},
		{"sso outage", 503, storage.MethodFederated, CodeSSOServiceUnavailable, true},
		{"server error", 500, storage.MethodLocal, CodeServerError, false},
		{"gateway error", 502, storage.MethodLocal, CodeServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errorFromStatus(tt.status, tt.method, nil)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantFallback, err.CanFallback)
			if tt.wantFallback {
				assert.Equal(t, storage.MethodLocal, err.FallbackMethod)
			}
			assert.NotEmpty(t, err.Message)
			assert.False(t, err.Timestamp.IsZero())
		})
	}
}

func TestAuthErrorWrapsSentinels(t *testing.T) {
	err := newAuthError(CodeSessionExpired, "", ErrSessionExpired)
	assert.ErrorIs(t, err, ErrSessionExpired)

	var authErr *AuthError
	assert.ErrorAs(t, error(err), &authErr)
	assert.Equal(t, CodeSessionExpired, authErr.Code)
}

func TestShouldRetry(t *testing.T) {
	retriable := []Code{CodeNetworkError, CodeServerError, CodeSSOServiceUnavailable}
	for _, code := range retriable {
		assert.True(t, ShouldRetry(newAuthError(code, "", nil)), "%s should be retriable", code)
	}

	terminal := []Code{
		CodeInvalidCredentials, CodeAccessDenied, CodeSessionExpired,
		CodeSSOLoginFailed, CodeSSOCallbackFailed, CodeTokenExchangeFailed,
		CodeConfigurationError,
	}
	for _, code := range terminal {
		assert.False(t, ShouldRetry(newAuthError(code, "", nil)), "%s should not be retriable", code)
	}

	assert.False(t, ShouldRetry(errors.New("untyped")))
	assert.True(t, ShouldRetry(fmt.Errorf("wrapped: %w", newAuthError(CodeNetworkError, "", nil))))
}

func TestRetryDelayBackoff(t *testing.T) {
	assert.Equal(t, time.Second, RetryDelay(1))
	assert.Equal(t, 2*time.Second, RetryDelay(2))
	assert.Equal(t, 4*time.Second, RetryDelay(3))
	assert.Equal(t, 8*time.Second, RetryDelay(4))
	assert.Equal(t, 16*time.Second, RetryDelay(5))
	assert.Equal(t, 30*time.Second, RetryDelay(6))
	assert.Equal(t, 30*time.Second, RetryDelay(50))
	assert.Equal(t, time.Second, RetryDelay(0))
}

func TestMessageCatalogueCoversAllCodes(t *testing.T) {
	codes := []Code{
		CodeInvalidCredentials, CodeNetworkError, CodeServerError,
		CodeAccessDenied, CodeSessionExpired, CodeSSOLoginFailed,
		CodeSSOCallbackFailed, CodeSSOServiceUnavailable,
		CodeTokenExchangeFailed, CodeConfigurationError,
	}
	for _, code := range codes {
		assert.NotEmpty(t, Message(code))
	}
	assert.Equal(t, "An unexpected error occurred. Please try again.", Message(Code("BOGUS")))
}
