package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoServiceKey means the server was started without the service-role
// key. Provisioning endpoints answer 500 in that state; everything else
// keeps working.
var ErrNoServiceKey = errors.New("service-role key not configured")

// BackendError is a non-2xx answer from the auth backend. Status and
// message are relayed to the dashboard caller as-is.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("auth backend returned %d: %s", e.Status, e.Message)
}

// User is an identity record as the auth backend reports it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is the admin client for the hosted auth backend.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a client. serviceKey may be empty; calls will then
// fail with ErrNoServiceKey.
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether the client holds a service-role key.
func (c *Client) Configured() bool {
	return c.serviceKey != ""
}

// CreateUser provisions an auto-confirmed, passwordless account and
// returns it. The backend follows up with a recovery email so the user
// can set their own password.
func (c *Client) CreateUser(ctx context.Context, email string) (*User, error) {
	body := map[string]interface{}{
		"email":         email,
		"email_confirm": true,
	}

	var user User
	if err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", body, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("auth backend returned no user id")
	}
	return &user, nil
}

// DeleteUser removes an account. Deleting an unknown id surfaces the
// backend's 404 as a BackendError.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+id, nil, nil)
}

// SendRecoveryEmail asks the backend to mail a password-setup link.
func (c *Client) SendRecoveryEmail(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", map[string]interface{}{"email": email}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	if c.serviceKey == "" {
		return ErrNoServiceKey
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{
			Status:  resp.StatusCode,
			Message: readErrorMessage(resp.Body),
		}
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("failed to decode auth backend response: %w", err)
		}
	}
	return nil
}

// readErrorMessage pulls a human-readable message out of the backend's
// error body, which varies in shape across endpoints.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "unknown error"
	}

	var parsed struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		for _, candidate := range []string{parsed.Msg, parsed.Message, parsed.ErrorDescription, parsed.Error} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return strings.TrimSpace(string(data))
}
