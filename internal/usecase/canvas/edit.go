package canvas

import (
	"context"
	"sync"

	"canvaschat/internal/domain"
)

// EditCoordinator tracks the single user message in edit mode.
// Beginning an edit on another message cancels the previous one.
type EditCoordinator struct {
	mu        sync.Mutex
	bus       domain.EventBus
	sessionID string
	session   domain.EditSession
}

// NewEditCoordinator creates an edit coordinator publishing on bus.
func NewEditCoordinator(bus domain.EventBus, sessionID string) *EditCoordinator {
	return &EditCoordinator{bus: bus, sessionID: sessionID}
}

// Begin puts messageID in edit mode.
func (e *EditCoordinator) Begin(ctx context.Context, messageID string) error {
	if messageID == "" {
		return domain.NewDomainError("Edit.Begin", domain.ErrInvalidInput, "message id is required")
	}

	e.mu.Lock()
	prev := e.session.EditingMessageID
	if prev == messageID {
		e.mu.Unlock()
		return nil
	}
	e.session.EditingMessageID = messageID
	e.mu.Unlock()

	if prev != "" {
		e.publish(ctx, domain.EventEditCancelled, prev)
	}
	e.publish(ctx, domain.EventEditStarted, messageID)
	return nil
}

// Cancel leaves edit mode if messageID is the message being edited.
func (e *EditCoordinator) Cancel(ctx context.Context, messageID string) bool {
	e.mu.Lock()
	if messageID == "" || e.session.EditingMessageID != messageID {
		e.mu.Unlock()
		return false
	}
	e.session.EditingMessageID = ""
	e.mu.Unlock()

	e.publish(ctx, domain.EventEditCancelled, messageID)
	return true
}

// Editing returns the id of the message in edit mode, or "".
func (e *EditCoordinator) Editing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.EditingMessageID
}

// Reset cancels any edit in progress.
func (e *EditCoordinator) Reset(ctx context.Context) {
	e.Cancel(ctx, e.Editing())
}

func (e *EditCoordinator) publish(ctx context.Context, t domain.EventType, messageID string) {
	e.bus.Publish(ctx, domain.NewEvent(t, e.sessionID, domain.EditEventPayload{MessageID: messageID}))
}
