package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"canvaschat/internal/domain"
)

// authedHandler is an HTTP handler that runs after authentication.
type authedHandler func(w http.ResponseWriter, r *http.Request, client *ClientInfo)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.auth.Authenticate(requestToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, client)
	}
}

// RegisterRESTHandlers registers HTTP REST endpoints on the gateway server
// and returns the counters behind the status route.
func RegisterRESTHandlers(s *Server, deps HandlerDeps) *Metrics {
	metrics := NewMetrics(deps.Bus)
	started := time.Now()

	s.RegisterHTTPRoute("GET /health", healthHandler)
	s.RegisterHTTPRoute("GET /api/v1/status", s.requireAuth(statusHandler(s, deps, started, metrics)))
	s.RegisterHTTPRoute("GET /metrics", s.requireAuth(metricsHandler(s, deps, started, metrics)))
	s.RegisterHTTPRoute("GET /api/v1/messages/{id}/preview", s.requireAuth(previewHandler(deps)))
	if deps.Executor != nil {
		s.RegisterHTTPRoute("POST /api/v1/execute", s.requireAuth(executeHandler(deps)))
	}
	return metrics
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorBody{Error: err.Error(), Code: string(domain.ErrorCodeOf(err))})
}

// httpStatus maps a domain error to its REST status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrConversationNotFound), errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrProfileNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimit), errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrRPCInvalidPayload),
		errors.Is(err, domain.ErrUnsupportedLanguage), errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotRenderable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrExecutionFailed), errors.Is(err, domain.ErrWebhookFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
