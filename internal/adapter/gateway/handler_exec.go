package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"canvaschat/internal/adapter/piston"
	"canvaschat/internal/domain"
)

type execRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
	Stdin    string `json:"stdin"`
}

type execResponse struct {
	Result  domain.ExecutionResult  `json:"result"`
	Display domain.ExecutionDisplay `json:"display"`
}

type execEventPayload struct {
	Language string `json:"language"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

// execute runs one source file on behalf of key, which scopes the rate limit.
func (deps HandlerDeps) execute(ctx context.Context, key string, req execRequest) (*execResponse, error) {
	if strings.TrimSpace(req.Source) == "" || req.Language == "" {
		return nil, domain.NewDomainError("Gateway.Execute", domain.ErrInvalidInput, "language and source are required")
	}
	if deps.ExecLimiter != nil && !deps.ExecLimiter.Allow(key) {
		return nil, domain.NewSubSystemError("execution", "Gateway.Execute", domain.ErrRateLimit, "")
	}

	deps.publish(ctx, domain.EventExecutionStarted, execEventPayload{Language: req.Language})
	res, err := deps.Executor.Run(ctx, req.Language, req.Source, req.Stdin)
	if err != nil {
		deps.publish(ctx, domain.EventExecutionDone, execEventPayload{Language: req.Language, Error: err.Error()})
		return nil, err
	}
	display := piston.Display(res)
	deps.publish(ctx, domain.EventExecutionDone, execEventPayload{Language: req.Language, Kind: string(display.Kind)})
	return &execResponse{Result: res, Display: display}, nil
}

func (deps HandlerDeps) publish(ctx context.Context, t domain.EventType, payload any) {
	if deps.Bus != nil {
		deps.Bus.Publish(ctx, domain.NewEvent(t, "", payload))
	}
}

func execRunHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req execRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		out, err := deps.execute(ctx, call.Session.ID(), req)
		if err != nil {
			return nil, err
		}
		return reply(out)
	}
}

// executeHandler serves POST /api/v1/execute. The rate limit applies per user.
func executeHandler(deps HandlerDeps) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, client *ClientInfo) {
		var req execRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, domain.NewDomainError("Gateway.Execute", domain.ErrInvalidInput, "malformed request body"))
			return
		}
		out, err := deps.execute(r.Context(), "user:"+client.UserID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
