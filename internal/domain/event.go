package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventMessageReceived  EventType = "message.received"
	EventMessageAnswered  EventType = "message.answered"
	EventMessageFailed    EventType = "message.failed"
	EventMessageStale     EventType = "message.stale"
	EventMessageReplaced  EventType = "message.replaced"
	EventWebhookCalled    EventType = "webhook.called"
	EventExecutionStarted EventType = "execution.started"
	EventExecutionDone    EventType = "execution.completed"

	// Conversation lifecycle.
	EventConversationCreated  EventType = "conversation.created"
	EventConversationDeleted  EventType = "conversation.deleted"
	EventConversationSwitched EventType = "conversation.switched"
	EventSettingsOpened       EventType = "settings.opened"

	// Canvas coordination.
	EventCanvasActivated       EventType = "canvas.activated"
	EventCanvasClosed          EventType = "canvas.closed"
	EventCanvasResized         EventType = "canvas.resized"
	EventCanvasConsoleAppended EventType = "canvas.console.appended"
	EventCanvasConsoleRevealed EventType = "canvas.console.revealed"

	// Edit session coordination.
	EventEditStarted   EventType = "edit.started"
	EventEditCancelled EventType = "edit.cancelled"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event with a JSON-encoded payload. A payload that
// fails to encode is dropped rather than failing the publish.
func NewEvent(t EventType, sessionID string, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// CanvasEventPayload is carried by canvas.activated, canvas.closed and canvas.resized.
type CanvasEventPayload struct {
	MessageID string  `json:"message_id,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// EditEventPayload is carried by edit.started and edit.cancelled.
type EditEventPayload struct {
	MessageID string `json:"message_id"`
}

// MessageEventPayload is carried by message lifecycle events.
type MessageEventPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Error          string `json:"error,omitempty"`
}
