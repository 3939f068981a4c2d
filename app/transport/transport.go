// Package transport sends outbound HTTP requests for queries. It owns retry
// policy, response size limits and per-host rate limiting; callers see a
// single Sender interface that the cache middleware and mocks also satisfy.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrBodyTooLarge is returned when a response exceeds the size limit.
	ErrBodyTooLarge = errors.New("transport: response body too large")
	// ErrRateLimited is returned when the outbound limiter rejects a request.
	ErrRateLimited = errors.New("transport: rate limit exceeded")
)

// Request is a fully built outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a buffered response. StoredAt is set when the response was
// written to or served from a cache.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
	CacheHit   bool
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Sender delivers a request and returns the buffered response. A non-2xx
// status is not an error at this layer.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req *Request) (*Response, error)

func (f SenderFunc) Send(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// Error is a failed exchange. StatusCode is zero for network failures.
type Error struct {
	StatusCode int
	URL        string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("request %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request %s failed with status %d", e.URL, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }
