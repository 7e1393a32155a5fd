package gateway

import (
	"context"
	"encoding/json"

	"canvaschat/internal/adapter/sandbox"
	"canvaschat/internal/domain"
	"canvaschat/internal/usecase/canvas"
)

type messageRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type messageRenderResponse struct {
	MessageID string                  `json:"message_id"`
	Rendered  *domain.RenderedMessage `json:"rendered"`
	View      canvas.ViewState        `json:"view"`
}

// messageRenderHandler renders a stored message and binds a canvas view to it.
func messageRenderHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req messageRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" || req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		rm, err := deps.renderStored(ctx, call.Client.UserID, req.ConversationID, req.MessageID)
		if err != nil {
			return nil, err
		}
		view := call.Session.Track(req.MessageID)
		return reply(messageRenderResponse{MessageID: req.MessageID, Rendered: rm, View: view.State()})
	}
}

// renderStored loads one message of the user's conversation, renders it and
// keeps the result for the preview route.
func (deps HandlerDeps) renderStored(ctx context.Context, userID, conversationID, messageID string) (*domain.RenderedMessage, error) {
	conv, err := deps.Chat.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	for _, m := range conv.Messages {
		if m.ID == messageID {
			rm := deps.Renderer.Render(m.Content)
			deps.Previews.Put(userID, messageID, rm)
			return rm, nil
		}
	}
	return nil, domain.NewDomainError("Gateway.Render", domain.ErrMessageNotFound, messageID)
}

// --- canvas ---

type canvasStateResponse struct {
	Canvas         domain.CanvasState    `json:"canvas"`
	Console        []domain.ConsoleEntry `json:"console"`
	Editing        string                `json:"editing,omitempty"`
	ConversationID string                `json:"conversation_id,omitempty"`
	OpenViews      []string              `json:"open_views,omitempty"`
}

func sessionState(s *canvas.Session) (json.RawMessage, error) {
	return reply(canvasStateResponse{
		Canvas:         s.Canvas.State(),
		Console:        s.Canvas.Console().Entries(),
		Editing:        s.Edit.Editing(),
		ConversationID: s.ConversationID(),
		OpenViews:      s.OpenViews(),
	})
}

func messageID(payload json.RawMessage) (string, error) {
	var req messageRequest
	if err := decode(payload, &req); err != nil {
		return "", err
	}
	if req.MessageID == "" {
		return "", domain.ErrRPCInvalidPayload
	}
	return req.MessageID, nil
}

func canvasOpenHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		id, err := messageID(payload)
		if err != nil {
			return nil, err
		}
		if err := call.Session.Canvas.Open(ctx, id); err != nil {
			return nil, err
		}
		return sessionState(call.Session)
	}
}

func canvasCloseHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		id, err := messageID(payload)
		if err != nil {
			return nil, err
		}
		call.Session.Canvas.Close(ctx, id)
		return sessionState(call.Session)
	}
}

type autoOpenRequest struct {
	MessageID string `json:"message_id"`
	Eligible  bool   `json:"eligible"`
}

func canvasAutoOpenHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req autoOpenRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if req.MessageID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		opened := call.Session.AutoOpen(ctx, req.MessageID, req.Eligible)
		return reply(map[string]bool{"opened": opened})
	}
}

type resizeBeginRequest struct {
	Mobile bool `json:"mobile"`
}

func canvasResizeBeginHandler() RPCHandler {
	return func(_ context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req resizeBeginRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := call.Session.Canvas.BeginResize(req.Mobile); err != nil {
			return nil, err
		}
		return sessionState(call.Session)
	}
}

type resizeDragRequest struct {
	PointerX      float64 `json:"pointer_x"`
	ViewportWidth float64 `json:"viewport_width"`
}

func canvasResizeDragHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		var req resizeDragRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		width, err := call.Session.Canvas.DragTo(ctx, req.PointerX, req.ViewportWidth)
		if err != nil {
			return nil, err
		}
		return reply(map[string]float64{"width": width})
	}
}

func canvasResizeEndHandler() RPCHandler {
	return func(_ context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		call.Session.Canvas.EndResize()
		return sessionState(call.Session)
	}
}

func canvasStateHandler() RPCHandler {
	return func(_ context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		return sessionState(call.Session)
	}
}

// canvasConsoleHandler appends a console line relayed from the preview frame.
func canvasConsoleHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		entry, err := sandbox.ParseRelay(payload)
		if err != nil {
			return nil, err
		}
		if err := call.Session.Canvas.Console().Append(ctx, entry); err != nil {
			return nil, err
		}
		return okReply, nil
	}
}

func settingsOpenedHandler() RPCHandler {
	return func(ctx context.Context, call *Call, _ json.RawMessage) (json.RawMessage, error) {
		call.Session.SettingsOpened(ctx)
		return sessionState(call.Session)
	}
}

// --- edit ---

func editBeginHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		id, err := messageID(payload)
		if err != nil {
			return nil, err
		}
		if err := call.Session.Edit.Begin(ctx, id); err != nil {
			return nil, err
		}
		return reply(domain.EditSession{EditingMessageID: call.Session.Edit.Editing()})
	}
}

func editCancelHandler() RPCHandler {
	return func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
		id, err := messageID(payload)
		if err != nil {
			return nil, err
		}
		call.Session.Edit.Cancel(ctx, id)
		return reply(domain.EditSession{EditingMessageID: call.Session.Edit.Editing()})
	}
}
