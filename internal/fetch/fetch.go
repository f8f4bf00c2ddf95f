// Package fetch provides streaming HTTP retrieval of raw gnomAD release
// files. Responses are returned as readers, never buffered: the sites VCFs
// run to tens of gigabytes.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "gnomad-gks/1.0"

// DefaultResponseTimeout bounds time-to-first-byte, not the full transfer;
// the body read is governed by the caller's context.
const DefaultResponseTimeout = 60 * time.Second

// Error represents an error during a raw-source fetch.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	UserAgent string
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// DefaultOptions returns sensible defaults for streaming large files.
func DefaultOptions() *Options {
	return &Options{
		UserAgent: DefaultUserAgent,
		Client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefaultResponseTimeout,
			},
		},
	}
}

// Stream opens a streaming GET against urlStr and returns the response body
// plus the content length when the server reports one (-1 otherwise). The
// caller owns closing the reader; cancelling ctx tears the transfer down.
func Stream(ctx context.Context, urlStr string, opts *Options) (io.ReadCloser, int64, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, 0, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, 0, &Error{URL: urlStr, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	client := opts.Client
	if client == nil {
		client = DefaultOptions().Client
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &Error{URL: urlStr, Message: "request failed", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, &Error{
			URL:     urlStr,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	return resp.Body, resp.ContentLength, nil
}
