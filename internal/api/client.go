// ABOUTME: Typed JSON client for the knowledge-base backend
// ABOUTME: All calls flow through the authorizing transport

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loreworks/lore-console/internal/session"
)

// Error is a non-2xx backend response surfaced to callers.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the knowledge-base backend. Every request goes through
// the AuthTransport, so callers never handle tokens directly.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client rooted at baseURL. base is the underlying transport
// (nil for the default); session supplies credentials.
func New(baseURL string, session SessionSource, base http.RoundTripper, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: NewAuthTransport(base, session),
			Timeout:   timeout,
		},
	}
}

// Answer is the backend's response to a knowledge-base question.
type Answer struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
}

// Ask submits a question to the AI answer endpoint.
func (c *Client) Ask(ctx context.Context, question string) (*Answer, error) {
	var out Answer
	err := c.postJSON(ctx, "/conversations/ask", map[string]string{"question": question}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers fetches the user roster. Requires an administrative role on
// the backend; under-privileged callers get a 403 Error.
func (c *Client) ListUsers(ctx context.Context) ([]session.UserProfile, error) {
	var out []session.UserProfile
	if err := c.getJSON(ctx, "/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
