package canvas

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"canvaschat/internal/domain"
	"canvaschat/internal/usecase/eventbus"
)

// Session is the UI state of one page session: canvas, edit mode, current
// conversation and the views of the messages on screen. It owns an ordered
// bus; subscribers see every transition in the order it happened.
type Session struct {
	id     string
	bus    *eventbus.Bus
	logger *slog.Logger

	Canvas *Coordinator
	Edit   *EditCoordinator

	mu             sync.Mutex
	conversationID string
	views          map[string]*View
}

// NewSession creates a page session with its own ordered bus.
func NewSession(id string, defaultWidth float64, logger *slog.Logger) *Session {
	bus := eventbus.New(logger, eventbus.WithOrdered())
	return &Session{
		id:     id,
		bus:    bus,
		logger: logger,
		Canvas: NewCoordinator(bus, id, defaultWidth, logger),
		Edit:   NewEditCoordinator(bus, id),
		views:  make(map[string]*View),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Subscribe registers a handler for every session event.
func (s *Session) Subscribe(handler domain.EventHandler) func() {
	return s.bus.SubscribeAll(handler)
}

// ConversationID returns the conversation currently shown, or "".
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// SwitchConversation shows conversationID. Switching closes the canvas,
// cancels any edit and drops the views of the previous conversation.
// Switching to the conversation already shown does nothing.
func (s *Session) SwitchConversation(ctx context.Context, conversationID string) {
	s.mu.Lock()
	if s.conversationID == conversationID {
		s.mu.Unlock()
		return
	}
	s.conversationID = conversationID
	views := s.takeViewsLocked()
	s.mu.Unlock()

	s.bus.Publish(ctx, domain.NewEvent(domain.EventConversationSwitched, s.id,
		map[string]string{"conversation_id": conversationID}))
	s.Canvas.ConversationSwitched(ctx)
	s.Edit.Reset(ctx)
	for _, v := range views {
		v.Detach()
	}
	s.logger.Debug("conversation switched", "session_id", s.id, "conversation_id", conversationID)
}

// SettingsOpened closes the canvas.
func (s *Session) SettingsOpened(ctx context.Context) {
	s.Canvas.SettingsOpened(ctx)
}

// AutoOpen opens messageID's canvas on its first eligible completion.
func (s *Session) AutoOpen(ctx context.Context, messageID string, eligible bool) bool {
	return s.Canvas.AutoOpen(ctx, messageID, eligible)
}

// MessageReplaced closes the canvas of a message replaced by an edit and
// drops its view.
func (s *Session) MessageReplaced(ctx context.Context, oldID string) {
	s.Canvas.MessageReplaced(ctx, oldID)
	s.Untrack(oldID)
}

// Track returns the view bound to messageID, creating it on first use.
func (s *Session) Track(messageID string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[messageID]; ok {
		return v
	}
	v := NewView(s.bus, messageID, s.Canvas.Active())
	s.views[messageID] = v
	return v
}

// Untrack detaches the view bound to messageID.
func (s *Session) Untrack(messageID string) {
	s.mu.Lock()
	v, ok := s.views[messageID]
	delete(s.views, messageID)
	s.mu.Unlock()
	if ok {
		v.Detach()
	}
}

// OpenViews returns the ids of tracked views in the open state, sorted.
func (s *Session) OpenViews() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []string
	for id, v := range s.views {
		if v.State() == ViewOpen {
			open = append(open, id)
		}
	}
	sort.Strings(open)
	return open
}

// Close resets the session and releases its bus.
func (s *Session) Close(ctx context.Context) {
	s.Canvas.Reset(ctx)
	s.Edit.Reset(ctx)

	s.mu.Lock()
	views := s.takeViewsLocked()
	s.mu.Unlock()
	for _, v := range views {
		v.Detach()
	}
	s.bus.Close()
}

func (s *Session) takeViewsLocked() []*View {
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	s.views = make(map[string]*View)
	return views
}
