// Package client is the Go SDK for the pipeforge daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rmax-ai/pipeforge/pkg/archive"
	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/library"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// DefaultEndpoint is the daemon's default listen address.
const DefaultEndpoint = "http://127.0.0.1:8095"

// DefaultRetries is how many times an idempotent read is retried.
const DefaultRetries = 3

// Client is the pipeforge SDK client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  BackoffStrategy
	retries  int
}

// NewClient creates a new pipeforge client.
// endpoint defaults to DefaultEndpoint if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: DefaultBackoff(),
		retries: DefaultRetries,
	}
}

// SetRetry configures how GET requests are retried on transport errors and
// 502/503/504 answers. retries of zero disables retrying.
func (c *Client) SetRetry(retries int, backoff BackoffStrategy) {
	c.retries = retries
	if backoff != nil {
		c.backoff = backoff
	}
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	err := c.get(ctx, "/v1/health", &status)
	return status, err
}

// Hydrate resolves ref on the daemon. It returns ErrUnresolvable when the
// daemon answers that the reference cannot be resolved.
func (c *Client) Hydrate(ctx context.Context, ref componentspec.ComponentReference) (*componentref.Hydrated, error) {
	var resp struct {
		Hydrated *componentref.Hydrated `json:"hydrated"`
	}
	err := c.post(ctx, "/v1/hydrate", map[string]any{"reference": ref}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvable, apiErr.Code)
		}
		return nil, err
	}
	if resp.Hydrated == nil {
		return nil, ErrUnresolvable
	}
	return resp.Hydrated, nil
}

// Duplicate copies nodes of the graph component in req.ComponentText.
func (c *Client) Duplicate(ctx context.Context, req DuplicateRequest) (*DuplicateResponse, error) {
	var resp DuplicateResponse
	if err := c.post(ctx, "/v1/duplicate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListComponents returns cached records, most recently updated first.
func (c *Client) ListComponents(ctx context.Context, limit int) ([]store.Record, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	var records []store.Record
	if err := c.get(ctx, "/v1/components?limit="+strconv.Itoa(limit), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetComponent returns the record with id, or ErrNotFound.
func (c *Client) GetComponent(ctx context.Context, id string) (*store.Record, error) {
	var rec store.Record
	if err := c.get(ctx, "/v1/components/"+url.PathEscape(id), &rec); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// GetComponentByURL returns the newest record fetched from u, or ErrNotFound.
func (c *Client) GetComponentByURL(ctx context.Context, u string) (*store.Record, error) {
	var rec store.Record
	if err := c.get(ctx, "/v1/components?url="+url.QueryEscape(u), &rec); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// LoadLibrary asks the daemon to load the component library at u.
func (c *Client) LoadLibrary(ctx context.Context, u string) (*library.Report, error) {
	var report library.Report
	if err := c.post(ctx, "/v1/libraries", map[string]string{"url": u}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Export asks the daemon to write a snapshot of its store to blob storage.
func (c *Client) Export(ctx context.Context) (*archive.Result, error) {
	var res archive.Result
	if err := c.post(ctx, "/v1/admin/export", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func notFound(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// get performs an idempotent read, retrying transient failures.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
		if err != nil {
			return err
		}
		lastErr = c.do(req, out)
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			if json.Unmarshal(data, &body) == nil {
				apiErr.Code = body.Error
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// transportError marks a request that never got a response.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var tErr *transportError
	if errors.As(err, &tErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
