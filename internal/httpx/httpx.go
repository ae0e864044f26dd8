// Package httpx holds the small amount of HTTP plumbing shared by the
// provider implementations: a streaming POST that leaves the body open for
// SSE reading, and a JSON GET used by model discovery.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// maxErrorBodySize caps how much of an error response body is read.
const maxErrorBodySize int64 = 1 * 1024 * 1024

// Header is one request header to set.
type Header struct {
	Key   string
	Value string
}

// StatusError is a non-2xx response. The body is preserved raw so the caller
// (which knows the provider's error envelope) can decode it into a typed
// provider error or fall back to a transport error.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: status %d: %s", e.StatusCode, e.Body)
}

// PostStream POSTs a JSON body and returns the response with its body left
// open for incremental reading. The caller must close the body. A non-2xx
// status is drained, closed and returned as a *StatusError.
func PostStream(ctx context.Context, client *http.Client, url string, body any, headers ...Header) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("httpx: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("httpx: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpx: send request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseQuietly(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
		if readErr != nil {
			return nil, fmt.Errorf("httpx: status %d (body unreadable: %v)", response.StatusCode, readErr)
		}
		return nil, &StatusError{StatusCode: response.StatusCode, Body: errorBody}
	}

	return response, nil
}

// GetJSON performs a GET and decodes the JSON response into T. A non-2xx
// status is returned as a *StatusError.
func GetJSON[T any](ctx context.Context, client *http.Client, url string, headers ...Header) (*T, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpx: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpx: send request: %w", err)
	}
	defer CloseQuietly(response.Body)

	body, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize*10))
	if err != nil {
		return nil, fmt.Errorf("httpx: read response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: response.StatusCode, Body: body}
	}

	decoded := new(T)
	if err := json.Unmarshal(body, decoded); err != nil {
		return nil, fmt.Errorf("httpx: decode response: %w", err)
	}
	return decoded, nil
}

// CloseQuietly closes a body, logging failures instead of returning them.
func CloseQuietly(closer io.Closer) {
	if err := closer.Close(); err != nil {
		log.Debug().Err(err).Msg("httpx: close response body")
	}
}
