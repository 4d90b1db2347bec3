// Package grafana synchronizes the deployment dashboard against a Grafana
// instance. Publishing is always an upsert keyed by dashboard UID (or exact
// title when no UID is set), never a blind create, so re-running the
// pipeline can never produce duplicate dashboards.
package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 30 * time.Second

	// maxAttempts bounds retries for transient failures (network errors
	// and 5xx responses). 4xx responses are never retried.
	maxAttempts = 3

	backoffInitial    = 1 * time.Second
	backoffMultiplier = 2
)

// Client talks to the Grafana HTTP API with bearer-token authentication
// and bounded retry on transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Grafana API client.
// baseURL is the instance root (e.g. https://grafana.example.com/grafana);
// apiKey is a service-account token with the Editor role.
func NewClient(baseURL, apiKey string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("grafana URL must be set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("grafana API key must be set")
	}

	// The oauth2 transport injects "Authorization: Bearer <key>" on every
	// request, the same way the token never has to live in call sites.
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = DefaultTimeout

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the configured instance root.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes the service's health endpoint. Callers treat a failure
// here as a warning, never as a reason to reverse a publish.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusOK {
		return fmt.Errorf("health endpoint returned HTTP %d", resp.status)
	}
	return nil
}

// response is a fully-read API response.
type response struct {
	status int
	body   []byte
}

// do executes one API call, retrying network errors and 5xx responses with
// exponential backoff before giving up with a TransientError. Non-5xx
// responses are returned as-is for the caller to interpret.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	wait := backoffInitial

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.send(ctx, method, endpoint, payload)
		if err == nil && resp.status < http.StatusInternalServerError {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.status, strings.TrimSpace(string(resp.body)))
		}

		if attempt == maxAttempts {
			break
		}

		c.logger.Warn("Grafana request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"retry_in", wait,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return nil, &TransientError{Attempts: attempt, Err: ctx.Err()}
		case <-time.After(wait):
		}
		wait *= backoffMultiplier
	}

	return nil, &TransientError{Attempts: maxAttempts, Err: lastErr}
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{status: resp.StatusCode, body: body}, nil
}

// apiError maps a non-success response to the error taxonomy.
func apiError(resp *response) error {
	body := strings.TrimSpace(string(resp.body))
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return &AuthError{StatusCode: resp.status, Body: body}
	}
	return &RejectedError{StatusCode: resp.status, Body: body}
}
