// ABOUTME: Tests for the typed backend client
// ABOUTME: Verifies JSON round-tripping and non-2xx error surfacing

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/lore-console/internal/storage"
)

func TestClientAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/ask", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what is the refund policy?", body["question"])

		json.NewEncoder(w).Encode(Answer{
			Answer:  "Refunds are processed within 14 days.",
			Sources: []string{"policies/refunds.md"},
		})
	}))
	defer srv.Close()

	sess := &fakeSession{token: "tok-1", method: storage.MethodLocal}
	client := New(srv.URL, sess, nil, 5*time.Second)

	answer, err := client.Ask(context.Background(), "what is the refund policy?")
	require.NoError(t, err)
	assert.Equal(t, "Refunds are processed within 14 days.", answer.Answer)
	assert.Equal(t, []string{"policies/refunds.md"}, answer.Sources)
}

func TestClientSurfacesForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "admin role required", http.StatusForbidden)
	}))
	defer srv.Close()

	sess := &fakeSession{token: "tok-1", method: storage.MethodLocal}
	client := New(srv.URL, sess, nil, 5*time.Second)

	_, err := client.ListUsers(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "admin role required", apiErr.Body)
}
