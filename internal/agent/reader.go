package agent

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

	"github.com/ripor/slocheck/internal/otel"
)

const maxResponseBodyBytes = 64 * 1024

// ErrRead is wrapped by every error returned from Reader.Fetch.
var ErrRead = errors.New("agent status read failed")

// Reader fetches the agent status from <baseURL>/state.
// It performs exactly one request per Fetch and never retries.
type Reader struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ReaderOption {
	return func(r *Reader) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// NewReader creates a Reader for the panel at baseURL.
// timeout bounds each request; zero means 2 seconds.
func NewReader(baseURL string, timeout time.Duration, opts ...ReaderOption) *Reader {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	r := &Reader{
		url:        strings.TrimRight(baseURL, "/") + "/state",
		timeout:    timeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL returns the status endpoint this reader queries.
func (r *Reader) URL() string {
	return r.url
}

// Fetch performs one GET of the status endpoint and decodes the body.
func (r *Reader) Fetch(ctx context.Context) (_ *StatusSnapshot, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	req.Header.Set("Accept", "application/json")

	status := 0
	endSpan := otel.StartClientSpan(otel.GetGlobalTracer(), req)
	defer func() { endSpan(status, err) }()

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrRead, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrRead, resp.Status)
	}
	if len(body) > maxResponseBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrRead, maxResponseBodyBytes)
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrRead)
	}

	var snap StatusSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding body: %w", ErrRead, err)
	}
	return &snap, nil
}
