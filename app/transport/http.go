package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultMaxBodySize caps buffered response bodies.
	DefaultMaxBodySize int64 = 10 << 20
	// DefaultBackoff is the linear backoff step between retries.
	DefaultBackoff = 500 * time.Millisecond
	// MaxRetryDelay caps delays requested through Retry-After.
	MaxRetryDelay = 30 * time.Second
)

// Options configure an HTTPSender. Zero values select the defaults.
type Options struct {
	Client *http.Client
	// MaxRetries below zero disables retries.
	MaxRetries int
	Backoff    time.Duration
	// MaxBodySize below zero disables the limit.
	MaxBodySize int64
	Limiter     *RateLimiter
	UserAgent   string
	Logger      *zap.Logger
	// Observe is called once per attempt with the upstream host, status
	// (zero on network error) and duration.
	Observe func(host string, status int, d time.Duration)
}

// HTTPSender sends requests with net/http, retrying 5xx responses and
// connection failures with linear backoff.
type HTTPSender struct {
	client      *http.Client
	maxRetries  int
	backoff     time.Duration
	maxBodySize int64
	limiter     *RateLimiter
	userAgent   string
	logger      *zap.Logger
	observe     func(string, int, time.Duration)
	closer      io.Closer
}

// New returns an HTTPSender configured by opts.
func New(opts Options) *HTTPSender {
	s := &HTTPSender{
		client:      opts.Client,
		maxRetries:  opts.MaxRetries,
		backoff:     opts.Backoff,
		maxBodySize: opts.MaxBodySize,
		limiter:     opts.Limiter,
		userAgent:   opts.UserAgent,
		logger:      opts.Logger,
		observe:     opts.Observe,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.maxRetries == 0 {
		s.maxRetries = DefaultMaxRetries
	} else if s.maxRetries < 0 {
		s.maxRetries = 0
	}
	if s.backoff <= 0 {
		s.backoff = DefaultBackoff
	}
	if s.maxBodySize == 0 {
		s.maxBodySize = DefaultMaxBodySize
	}
	if s.userAgent == "" {
		s.userAgent = "remotedata"
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Close releases transport resources such as QUIC connections.
func (s *HTTPSender) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	s.client.CloseIdleConnections()
	return nil
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &Error{URL: req.URL, Err: err}
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, u.Host) {
		s.logger.Warn("host exceeded rate limit", zap.String("host", u.Host))
		return nil, &Error{StatusCode: http.StatusTooManyRequests, URL: req.URL, Err: ErrRateLimited}
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err := s.do(ctx, req)
		if s.observe != nil {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			s.observe(u.Host, status, time.Since(start))
		}
		if attempt >= s.maxRetries || !retryable(ctx, resp, err) {
			if err != nil {
				return nil, &Error{URL: req.URL, Err: err}
			}
			return resp, nil
		}

		delay := s.retryDelay(resp, attempt+1)
		if err != nil {
			s.logger.Warn("request failed, retrying", zap.String("url", req.URL), zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		} else {
			s.logger.Warn("upstream error, retrying", zap.String("url", req.URL), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, &Error{URL: req.URL, Err: ctx.Err()}
		case <-t.C:
		}
	}
}

func (s *HTTPSender) do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.Header != nil {
		hr.Header = req.Header.Clone()
	}
	if hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if s.maxBodySize > 0 {
		r = io.LimitReader(resp.Body, s.maxBodySize+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if s.maxBodySize > 0 && int64(len(b)) > s.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// retryable reports whether another attempt is safe. Network errors are
// retried only when the connection was never established, since the
// upstream may already have acted on the request otherwise.
func retryable(ctx context.Context, resp *Response, err error) bool {
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		var op *net.OpError
		return errors.As(err, &op) && op.Op == "dial"
	}
	return resp.StatusCode >= 500
}

func (s *HTTPSender) retryDelay(resp *Response, retries int) time.Duration {
	if resp != nil {
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return d
		}
	}
	return time.Duration(retries) * s.backoff
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = time.Until(t)
	} else {
		return 0, false
	}
	if d < 0 {
		d = 0
	}
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d, true
}
