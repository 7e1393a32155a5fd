// Package webhook implements domain.AIClient over the AI webhook: one POST
// per question, answered with a JSON array, a JSON object or plain text.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"canvaschat/internal/adapter/httpclient"
	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
	"canvaschat/internal/infra/tracer"
)

const (
	subsystem = "webhook"
	opAsk     = "Webhook.Ask"
)

// Client asks the AI webhook.
type Client struct {
	url     string
	token   string
	http    *http.Client
	breaker *httpclient.Breaker[domain.Reply]
	logger  *slog.Logger
}

// New creates a webhook client from configuration.
func New(cfg config.WebhookConfig, logger *slog.Logger) *Client {
	return NewWithHTTPClient(cfg, httpclient.NewClient(cfg.ConnTimeout, cfg.RespTimeout, cfg.Pool), logger)
}

// NewWithHTTPClient creates a webhook client over an existing *http.Client.
func NewWithHTTPClient(cfg config.WebhookConfig, hc *http.Client, logger *slog.Logger) *Client {
	return &Client{
		url:     cfg.URL,
		token:   cfg.Token,
		http:    hc,
		breaker: httpclient.NewBreaker[domain.Reply]("webhook", cfg.CircuitBreaker, httpclient.ServerFault, logger),
		logger:  logger,
	}
}

// BreakerState reports the circuit breaker state as gobreaker names it.
func (c *Client) BreakerState() string { return c.breaker.State().String() }

type askRequest struct {
	Question string `json:"question"`
}

// Ask posts question and decodes the answer. An empty body is an empty
// reply, not an error.
func (c *Client) Ask(ctx context.Context, question string) (domain.Reply, error) {
	var reply domain.Reply
	err := tracer.Do(ctx, "webhook.ask", func(ctx context.Context) error {
		var err error
		reply, err = c.breaker.Execute(func() (domain.Reply, error) {
			return c.ask(ctx, question)
		})
		return err
	}, tracer.IntAttr("webhook.question_len", len(question)))
	if err != nil {
		c.logger.Warn("webhook call failed", "error", err)
		return domain.Reply{}, classify(err)
	}
	c.logger.Debug("webhook answered", "empty", reply.Empty, "reply_len", len(reply.Text))
	return reply, nil
}

func (c *Client) ask(ctx context.Context, question string) (domain.Reply, error) {
	body, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return domain.Reply{}, fmt.Errorf("marshal request: %w", err)
	}
	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}

	resp, err := httpclient.PostJSON(ctx, c.http, c.url, body, headers)
	if err != nil {
		return domain.Reply{}, httpclient.TransportError(subsystem, opAsk, err, domain.ErrWebhookFailed)
	}
	if !resp.OK() {
		return domain.Reply{}, httpclient.WithStatus(resp.StatusCode,
			httpclient.StatusError(subsystem, opAsk, resp, domain.ErrWebhookFailed))
	}

	text := Decode(resp.Body)
	return domain.Reply{Text: text, Empty: strings.TrimSpace(text) == ""}, nil
}

// classify keeps domain errors as they are and maps an open circuit (which
// the breaker returns bare) onto the webhook subsystem.
func classify(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}
	return httpclient.TransportError(subsystem, opAsk, err, domain.ErrWebhookFailed)
}

// Decode extracts the answer text from a webhook response body:
// array[0].output, then object.answer (or output), then the raw text.
func Decode(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '[':
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			if len(items) == 0 {
				return ""
			}
			if s, ok := stringField(items[0], "output", "answer"); ok {
				return s
			}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			if s, ok := stringField(obj, "answer", "output"); ok {
				return s
			}
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(body)
}

func stringField(obj map[string]json.RawMessage, keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return "", false
}

var _ domain.AIClient = (*Client)(nil)
