package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

func TestBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	b := NewBreaker[string]("webhook", config.CircuitBreakerConfig{
		Enabled: true, MaxFailures: 3, Timeout: 5 * time.Second,
	}, nil, slog.Default())

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (string, error) {
			calls++
			return "", errors.New("upstream down")
		})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Execute(func() (string, error) {
		calls++
		return "ok", nil
	})
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 3, calls, "open circuit must not call through")
}

func TestBreakerIgnoresCallerFaults(t *testing.T) {
	b := NewBreaker[int]("exec", config.CircuitBreakerConfig{Enabled: true, MaxFailures: 1}, ServerFault, slog.Default())

	_, err := b.Execute(func() (int, error) {
		return 0, WithStatus(400, errors.New("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	_, _ = b.Execute(func() (int, error) {
		return 0, WithStatus(502, errors.New("bad gateway"))
	})
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

func TestBreakerDisabled(t *testing.T) {
	b := NewBreaker[int]("off", config.CircuitBreakerConfig{}, nil, slog.Default())
	assert.False(t, b.Enabled())
	for i := 0; i < 10; i++ {
		_, err := b.Execute(func() (int, error) { return 0, errors.New("fail") })
		assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	var nilBreaker *Breaker[int]
	v, err := nilBreaker.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":1}`, string(body))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	client := NewClient(time.Second, time.Second, config.PoolConfig{})
	resp, err := PostJSON(context.Background(), client, srv.URL, []byte(`{"q":1}`),
		map[string]string{"Authorization": "Bearer tkn"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Equal(t, "short and stout", string(resp.Body))
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{429, domain.ErrRateLimit},
		{401, domain.ErrAuthInvalid},
		{403, domain.ErrAuthInvalid},
		{504, domain.ErrTimeout},
		{500, domain.ErrWebhookFailed},
		{404, domain.ErrWebhookFailed},
	}
	for _, tt := range tests {
		err := StatusError("webhook", "Webhook.Ask", Response{StatusCode: tt.code, Body: []byte("x")}, domain.ErrWebhookFailed)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.code)
	}

	err := StatusError("webhook", "Webhook.Ask", Response{StatusCode: 504}, domain.ErrWebhookFailed)
	assert.Equal(t, domain.CodeWebhookTimeout, domain.ErrorCodeOf(err))
}

func TestTransportError(t *testing.T) {
	err := TransportError("execution", "Piston.Run", context.DeadlineExceeded, domain.ErrExecutionFailed)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.CodeExecutionTimeout, domain.ErrorCodeOf(err))

	err = TransportError("execution", "Piston.Run", errors.New("connection refused"), domain.ErrExecutionFailed)
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)

	err = TransportError("webhook", "Webhook.Ask", domain.ErrCircuitOpen, domain.ErrWebhookFailed)
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
}

func TestNewPooledTransportDefaults(t *testing.T) {
	tr := NewPooledTransport(0, 0, config.PoolConfig{})
	assert.Equal(t, defaultMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, defaultMaxConnsPerHost, tr.MaxConnsPerHost)
	assert.Equal(t, defaultIdleConnTimeout, tr.IdleConnTimeout)
	assert.Zero(t, tr.ResponseHeaderTimeout)

	tr = NewPooledTransport(time.Second, 5*time.Second, config.PoolConfig{MaxIdleConns: 3})
	assert.Equal(t, 3, tr.MaxIdleConns)
	assert.Equal(t, 5*time.Second, tr.ResponseHeaderTimeout)
}
