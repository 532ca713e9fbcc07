package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// callerHeader must match the header read by the bridge API
const callerHeader = "X-Caller-ID"

// Client is the HTTP client for communicating with the bridge API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Context is a stored context as reported by the bridge
type Context struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt string `json:"updated_at,omitempty"` // RFC 3339
}

// Entry is one role/content pair of a prompt
type Entry struct {
	Role    string `json:"role" jsonschema:"system, user or assistant"`
	Content string `json:"content" jsonschema:"the text of the message"`
}

// Estimate is the prompt size reported by the bridge
type Estimate struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
	Budget int    `json:"budget"`
	Fits   bool   `json:"fits"`
}

// APIError is a non-success answer of the bridge API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ============ Contexts ============

// ListContexts returns all stored contexts
func (c *Client) ListContexts(ctx context.Context) ([]Context, error) {
	var result struct {
		Contexts []Context `json:"contexts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/contexts", "", nil, &result); err != nil {
		return nil, err
	}
	return result.Contexts, nil
}

// SetContext stores value under name on behalf of caller
func (c *Client) SetContext(ctx context.Context, caller, name, value string) (*Context, error) {
	var result Context
	body := map[string]string{"value": value}
	if err := c.do(ctx, http.MethodPut, "/api/contexts/"+url.PathEscape(name), caller, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UnsetContext removes name on behalf of caller
func (c *Client) UnsetContext(ctx context.Context, caller, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/contexts/"+url.PathEscape(name), caller, nil, nil)
}

// ============ Tokens ============

// Estimate counts the prompt tokens of messages for model. An empty model
// selects the bridge's default model.
func (c *Client) Estimate(ctx context.Context, model string, messages []Entry) (*Estimate, error) {
	var result Estimate
	body := map[string]any{"model": model, "messages": messages}
	if err := c.do(ctx, http.MethodPost, "/api/estimate", "", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func (c *Client) do(ctx context.Context, method, path, caller string, body, result any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var payload struct {
		Error string `json:"error"`
	}
	msg := string(bytes.TrimSpace(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
