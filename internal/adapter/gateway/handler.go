package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/middleware"
	"canvaschat/internal/usecase/chat"
	"canvaschat/internal/usecase/render"
)

// BreakerReporter is implemented by outbound clients guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Chat        *chat.Service
	Renderer    *render.Service
	Executor    domain.Executor
	ExecLimiter *middleware.KeyedLimiter // per session or user; nil disables
	Previews    *PreviewCache
	Bus         domain.EventBus            // application bus; can be nil
	Breakers    map[string]BreakerReporter // by subsystem; can be nil
	Version     string
	Logger      *slog.Logger
}

// RegisterDefaultHandlers registers all built-in RPC handlers on the server.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) {
	s.RegisterAsyncHandler("chat.send", chatSendHandler(deps))
	s.RegisterAsyncHandler("chat.edit", chatEditHandler(deps))
	s.RegisterAsyncHandler("conversation.list", conversationListHandler(deps))
	s.RegisterAsyncHandler("conversation.get", conversationGetHandler(deps))
	s.RegisterHandler("conversation.switch", conversationSwitchHandler(deps))
	s.RegisterHandler("conversation.delete", conversationDeleteHandler(deps))
	s.RegisterHandler("conversation.delete_all", conversationDeleteAllHandler(deps))
	s.RegisterAsyncHandler("profile.get", profileGetHandler(deps))
	s.RegisterAsyncHandler("profile.update", profileUpdateHandler(deps))
	s.RegisterAsyncHandler("usage.get", usageGetHandler(deps))
	s.RegisterAsyncHandler("message.render", messageRenderHandler(deps))

	s.RegisterHandler("canvas.open", canvasOpenHandler())
	s.RegisterHandler("canvas.close", canvasCloseHandler())
	s.RegisterHandler("canvas.auto_open", canvasAutoOpenHandler())
	s.RegisterHandler("canvas.resize_begin", canvasResizeBeginHandler())
	s.RegisterHandler("canvas.resize_drag", canvasResizeDragHandler())
	s.RegisterHandler("canvas.resize_end", canvasResizeEndHandler())
	s.RegisterHandler("canvas.state", canvasStateHandler())
	s.RegisterHandler("canvas.console", canvasConsoleHandler())
	s.RegisterHandler("settings.opened", settingsOpenedHandler())
	s.RegisterHandler("edit.begin", editBeginHandler())
	s.RegisterHandler("edit.cancel", editCancelHandler())

	if deps.Executor != nil {
		s.RegisterAsyncHandler("exec.run", execRunHandler(deps))
	}
}

// decode unmarshals an RPC payload. An empty payload leaves v zero.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRPCInvalidPayload, err)
	}
	return nil
}

func reply(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

var okReply = json.RawMessage(`{"ok":true}`)

// --- chat ---

type chatSendRequest struct {
	ConversationID string `json:"conversation_id"`
	Question       string `json:"question"`
}

func chatSendHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req chatSendRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		res, err := deps.Chat.Send(ctx, call.Session, call.Client.UserID, req.ConversationID, req.Question)
		if err != nil {
			return nil, err
		}
		deps.trackReply(call, res)
		return reply(res)
	}
}

type chatEditRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
}

func chatEditHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req chatEditRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" || req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		res, err := deps.Chat.Edit(ctx, call.Session, call.Client.UserID, req.ConversationID, req.MessageID, req.Content)
		if err != nil {
			return nil, err
		}
		call.Session.Edit.Cancel(ctx, req.MessageID)
		deps.trackReply(call, res)
		return reply(res)
	}
}

// trackReply binds a view to the reply and keeps its render model for the
// preview route.
func (deps HandlerDeps) trackReply(call *Call, res *chat.Result) {
	if res == nil || res.Reply.ID == "" || res.Stale {
		return
	}
	call.Session.Track(res.Reply.ID)
	if res.Rendered != nil {
		deps.Previews.Put(call.Client.UserID, res.Reply.ID, res.Rendered)
	}
}

// --- conversations ---

type conversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

func conversationListHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		convs, err := deps.Chat.List(ctx, call.Client.UserID)
		if err != nil {
			return nil, err
		}
		return reply(map[string]any{"conversations": convs})
	}
}

func conversationGetHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req conversationRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		conv, err := deps.Chat.Get(ctx, call.Client.UserID, req.ConversationID)
		if err != nil {
			return nil, err
		}
		return reply(conv)
	}
}

func conversationSwitchHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req conversationRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		conv, err := deps.Chat.Switch(ctx, call.Session, call.Client.UserID, req.ConversationID)
		if err != nil {
			return nil, err
		}
		return reply(conv)
	}
}

func conversationDeleteHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req conversationRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		if err := deps.Chat.Delete(ctx, call.Session, call.Client.UserID, req.ConversationID); err != nil {
			return nil, err
		}
		return okReply, nil
	}
}

func conversationDeleteAllHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		if err := deps.Chat.DeleteAll(ctx, call.Session, call.Client.UserID); err != nil {
			return nil, err
		}
		return okReply, nil
	}
}

// --- profile ---

func profileGetHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		p, err := deps.Chat.Profile(ctx, call.Client.UserID)
		if err != nil {
			return nil, err
		}
		return reply(p)
	}
}

func profileUpdateHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req domain.Profile
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		p, err := deps.Chat.UpdateProfile(ctx, call.Client.UserID, req)
		if err != nil {
			return nil, err
		}
		return reply(p)
	}
}

func usageGetHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		u, err := deps.Chat.Usage(ctx, call.Client.UserID)
		if err != nil {
			return nil, err
		}
		return reply(u)
	}
}
