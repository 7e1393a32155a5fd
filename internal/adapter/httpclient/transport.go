// Package httpclient holds the shared plumbing of the outbound HTTP
// adapters: pooled transports, circuit breakers, JSON posting and the
// mapping of HTTP failures onto domain errors.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

// MaxResponseBody caps how much of a response body is read.
const MaxResponseBody = 10 * 1024 * 1024 // 10 MB

// Default connection pool settings: few hosts, modest concurrency.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
	defaultConnTimeout         = 30 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling.
// A zero respTimeout leaves the response header wait unbounded.
func NewPooledTransport(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Transport {
	if connTimeout <= 0 {
		connTimeout = defaultConnTimeout
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	maxIdlePerHost := pool.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = defaultMaxIdleConnsPerHost
	}
	maxConnsPerHost := pool.MaxConnsPerHost
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = defaultMaxConnsPerHost
	}
	idleTimeout := pool.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       idleTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// NewClient returns an *http.Client over a pooled transport. The client has
// no overall timeout; callers bound requests through the context.
func NewClient(connTimeout, respTimeout time.Duration, pool config.PoolConfig) *http.Client {
	return &http.Client{Transport: NewPooledTransport(connTimeout, respTimeout, pool)}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// PostJSON sends body as a JSON POST and reads the whole response. Only
// transport failures are errors; the caller judges the status code.
func PostJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.5")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// StatusError maps a non-2xx response to a domain error. 429 is a rate
// limit, 401/403 an auth failure, 408/504 a timeout; anything else
// becomes fallback. The detail carries the body unchanged.
func StatusError(subsystem, op string, resp Response, fallback error) error {
	detail := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Body)
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return domain.NewSubSystemError(subsystem, op, domain.ErrRateLimit, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewSubSystemError(subsystem, op, domain.ErrAuthInvalid, detail)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.NewSubSystemError(subsystem, op, domain.ErrTimeout, detail)
	}
	return domain.NewSubSystemError(subsystem, op, fallback, detail)
}

// TransportError maps a failed round trip to a domain error. Deadlines and
// network timeouts become domain.ErrTimeout; an open circuit stays
// domain.ErrCircuitOpen.
func TransportError(subsystem, op string, err error, fallback error) error {
	if errors.Is(err, domain.ErrCircuitOpen) {
		return domain.NewSubSystemError(subsystem, op, domain.ErrCircuitOpen, err.Error())
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.NewSubSystemError(subsystem, op, domain.ErrTimeout, err.Error())
	}
	return domain.NewSubSystemError(subsystem, op, fallback, err.Error())
}

// ServerFault reports whether err should count against a breaker: transport
// failures, timeouts and 5xx do; caller mistakes and auth failures do not.
func ServerFault(err error) bool {
	var se *statusFault
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// statusFault carries a response status through a breaker so ServerFault
// can classify it.
type statusFault struct {
	code int
	err  error
}

func (s *statusFault) Error() string { return s.err.Error() }
func (s *statusFault) Unwrap() error { return s.err }

// WithStatus tags err with the HTTP status that produced it.
func WithStatus(code int, err error) error {
	return &statusFault{code: code, err: err}
}
