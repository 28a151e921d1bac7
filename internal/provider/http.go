package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP retry defaults, matching the 1s/2s/4s backoff used across adapters.
const (
	DefaultRetries   = 3
	DefaultRetryBase = 1 * time.Second
)

// Fetcher performs GET requests with retry on 429 and 5xx responses.
type Fetcher struct {
	Client    *http.Client
	Retries   int
	RetryBase time.Duration
}

// NewFetcher returns a Fetcher using hc and the default retry policy.
func NewFetcher(hc *http.Client) *Fetcher {
	if hc == nil {
		hc = &http.Client{Timeout: APITimeout}
	}
	return &Fetcher{Client: hc, Retries: DefaultRetries, RetryBase: DefaultRetryBase}
}

// Get returns the body of a successful GET to rawURL.
// A 404 yields ErrNotFound without retrying.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	var body []byte
	err := Retry(ctx, f.Retries, f.RetryBase, func(ctx context.Context) error {
		b, err := f.once(ctx, rawURL, header)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, err
	}
	return body, nil
}

// GetJSON performs Get and decodes the body into v.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	body, err := f.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (f *Fetcher) once(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("creating request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, Permanent(ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
		if se.Retryable() {
			return nil, se
		}
		return nil, Permanent(se)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
