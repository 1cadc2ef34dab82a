// Package fetch retrieves component text over HTTP.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// ErrNetwork indicates the fetch failed or returned a non-2xx response.
var ErrNetwork = errors.New("network error")

// NetworkError describes a failed fetch.
// Wraps ErrNetwork for errors.Is() compatibility.
type NetworkError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: GET %s: unexpected status %d", ErrNetwork.Error(), e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: GET %s: %v", ErrNetwork.Error(), e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: GET %s", ErrNetwork.Error(), e.URL)
	}
}

func (e *NetworkError) Unwrap() error { return ErrNetwork }

// Fetcher loads the serialized text behind a url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DefaultTimeout bounds a single fetch when no client is supplied.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// ErrBodyTooLarge is the cause of a NetworkError for a response over maxBodyBytes.
var ErrBodyTooLarge = errors.New("response exceeds 8 MiB")

// HTTPFetcher performs a single GET per call.
type HTTPFetcher struct {
	http *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
// A non-positive timeout means DefaultTimeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{http: &http.Client{Timeout: timeout}}
}

// NewHTTPFetcherWithClient uses an existing client, e.g. one from httptest.
func NewHTTPFetcherWithClient(c *http.Client) *HTTPFetcher {
	return &HTTPFetcher{http: c}
}

// Fetch returns the response body as text. A JSON response of the form
// {"text": "..."} yields the text field instead; any other JSON shape is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/yaml, application/json;q=0.9, text/plain;q=0.8")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", &NetworkError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return "", &NetworkError{URL: url, Err: ErrBodyTooLarge}
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		return decodeEnvelope(url, body)
	}
	return string(body), nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

func decodeEnvelope(url string, body []byte) (string, error) {
	var envelope struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", &NetworkError{URL: url, Err: fmt.Errorf("invalid json envelope: %w", err)}
	}
	if envelope.Text == nil {
		return "", &NetworkError{URL: url, Err: errors.New("json envelope has no text field")}
	}
	return *envelope.Text, nil
}
