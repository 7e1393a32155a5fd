package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"canvaschat/internal/domain"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Service     ServiceStatus     `json:"service"`
	Connections ConnectionStatus  `json:"connections"`
	Messages    MessageStatus     `json:"messages"`
	Executions  ExecutionStatus   `json:"executions"`
	RenderCache int               `json:"render_cache"`
	Breakers    map[string]string `json:"breakers,omitempty"`
}

// ServiceStatus holds service overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ConnectionStatus holds websocket connection counts.
type ConnectionStatus struct {
	Active int64 `json:"active"`
	Total  int64 `json:"total"`
}

// MessageStatus counts chat exchanges by outcome.
type MessageStatus struct {
	Received int64 `json:"received"`
	Answered int64 `json:"answered"`
	Failed   int64 `json:"failed"`
	Stale    int64 `json:"stale"`
}

// ExecutionStatus counts remote executions.
type ExecutionStatus struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
}

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	MessagesRecv     atomic.Int64
	MessagesAnswered atomic.Int64
	MessagesFailed   atomic.Int64
	MessagesStale    atomic.Int64
	Conversations    atomic.Int64
	Executions       atomic.Int64
	ExecutionErrors  atomic.Int64
}

// NewMetrics counts application bus events. bus may be nil.
func NewMetrics(bus domain.EventBus) *Metrics {
	m := &Metrics{}
	if bus == nil {
		return m
	}
	count := func(t domain.EventType, c *atomic.Int64) {
		bus.Subscribe(t, func(context.Context, domain.Event) { c.Add(1) })
	}
	count(domain.EventMessageReceived, &m.MessagesRecv)
	count(domain.EventMessageAnswered, &m.MessagesAnswered)
	count(domain.EventMessageFailed, &m.MessagesFailed)
	count(domain.EventMessageStale, &m.MessagesStale)
	count(domain.EventConversationCreated, &m.Conversations)
	count(domain.EventExecutionStarted, &m.Executions)
	bus.Subscribe(domain.EventExecutionDone, func(_ context.Context, e domain.Event) {
		if decodeExecEvent(e).Error != "" {
			m.ExecutionErrors.Add(1)
		}
	})
	return m
}

func decodeExecEvent(e domain.Event) execEventPayload {
	var p execEventPayload
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &p)
	}
	return p
}

func breakerStates(deps HandlerDeps) map[string]string {
	if len(deps.Breakers) == 0 {
		return nil
	}
	out := make(map[string]string, len(deps.Breakers))
	for name, b := range deps.Breakers {
		out[name] = b.BreakerState()
	}
	return out
}

func buildStatus(s *Server, deps HandlerDeps, startTime time.Time, metrics *Metrics) StatusResponse {
	active, total := s.Connections()
	resp := StatusResponse{
		Service: ServiceStatus{
			Name:          "canvaschat",
			Version:       deps.Version,
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		},
		Connections: ConnectionStatus{Active: active, Total: total},
		Messages: MessageStatus{
			Received: metrics.MessagesRecv.Load(),
			Answered: metrics.MessagesAnswered.Load(),
			Failed:   metrics.MessagesFailed.Load(),
			Stale:    metrics.MessagesStale.Load(),
		},
		Executions: ExecutionStatus{
			Total:  metrics.Executions.Load(),
			Failed: metrics.ExecutionErrors.Load(),
		},
		Breakers: breakerStates(deps),
	}
	if deps.Renderer != nil {
		resp.RenderCache = deps.Renderer.Len()
	}
	return resp
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(s *Server, deps HandlerDeps, startTime time.Time, metrics *Metrics) authedHandler {
	return func(w http.ResponseWriter, _ *http.Request, _ *ClientInfo) {
		writeJSON(w, http.StatusOK, buildStatus(s, deps, startTime, metrics))
	}
}
