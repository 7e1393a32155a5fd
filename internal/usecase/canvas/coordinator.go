package canvas

import (
	"context"
	"log/slog"
	"sync"

	"canvaschat/internal/domain"
)

// Close reasons carried by canvas.closed.
const (
	ReasonUser                 = "user"
	ReasonSettings             = "settings"
	ReasonConversationSwitched = "conversation_switched"
	ReasonReplaced             = "replaced"
	ReasonReset                = "reset"
)

// Coordinator owns the canvas state of one page session.
//
// At most one message's canvas is active at a time. Every transition is
// published on the session bus before the caller sees its result, and the
// bus must deliver in publish order (eventbus.WithOrdered) so all views
// observe the same sequence.
type Coordinator struct {
	// tmu serializes transitions with their broadcast, so the publish order
	// is the order in which state changed.
	tmu sync.Mutex

	mu           sync.Mutex
	bus          domain.EventBus
	sessionID    string
	logger       *slog.Logger
	defaultWidth float64

	state      domain.CanvasState
	autoOpened map[string]bool
	console    *Console
}

// NewCoordinator creates a coordinator publishing on bus. defaultWidth is
// clamped to the allowed range; zero selects domain.CanvasDefaultWidth.
func NewCoordinator(bus domain.EventBus, sessionID string, defaultWidth float64, logger *slog.Logger) *Coordinator {
	if defaultWidth == 0 {
		defaultWidth = domain.CanvasDefaultWidth
	}
	defaultWidth = domain.ClampWidth(defaultWidth)
	return &Coordinator{
		bus:          bus,
		sessionID:    sessionID,
		logger:       logger,
		defaultWidth: defaultWidth,
		state:        domain.CanvasState{Width: defaultWidth},
		autoOpened:   make(map[string]bool),
		console:      newConsole(bus, sessionID),
	}
}

// Console returns the console buffer of the active canvas.
func (c *Coordinator) Console() *Console { return c.console }

// Open makes messageID's canvas the active one. Any other open canvas is
// closed by the activation broadcast.
func (c *Coordinator) Open(ctx context.Context, messageID string) error {
	if messageID == "" {
		return domain.NewDomainError("Canvas.Open", domain.ErrInvalidInput, "message id is required")
	}
	c.tmu.Lock()
	defer c.tmu.Unlock()
	c.activate(ctx, messageID)
	return nil
}

// Close closes messageID's canvas if it is the active one. It reports
// whether anything was closed.
func (c *Coordinator) Close(ctx context.Context, messageID string) bool {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	return c.closeIf(ctx, func(active string) bool { return active == messageID }, ReasonUser)
}

// AutoOpen opens messageID's canvas the first time the message finishes
// loading with canvas-eligible content, but only when no canvas is open.
// Later completions of the same message never auto-open.
func (c *Coordinator) AutoOpen(ctx context.Context, messageID string, eligible bool) bool {
	if messageID == "" || !eligible {
		return false
	}
	c.tmu.Lock()
	defer c.tmu.Unlock()

	c.mu.Lock()
	seen := c.autoOpened[messageID]
	c.autoOpened[messageID] = true
	busy := c.state.ActiveMessageID != ""
	c.mu.Unlock()

	if seen || busy {
		return false
	}
	c.activate(ctx, messageID)
	return true
}

// Active returns the id of the open canvas, or "" when none is open.
func (c *Coordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveMessageID
}

// State returns a snapshot of the canvas state.
func (c *Coordinator) State() domain.CanvasState {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	st.ConsoleRevealed = c.console.Revealed()
	return st
}

// SettingsOpened closes any open canvas.
func (c *Coordinator) SettingsOpened(ctx context.Context) {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	c.publish(ctx, domain.EventSettingsOpened, nil)
	c.closeIf(ctx, anyActive, ReasonSettings)
}

// ConversationSwitched closes any open canvas.
func (c *Coordinator) ConversationSwitched(ctx context.Context) {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	c.closeIf(ctx, anyActive, ReasonConversationSwitched)
}

// MessageReplaced closes the canvas of a message whose slot now holds a
// different message. The closed event is published even when oldID was not
// active so a view bound to oldID never survives the replacement.
func (c *Coordinator) MessageReplaced(ctx context.Context, oldID string) {
	if oldID == "" {
		return
	}
	c.tmu.Lock()
	defer c.tmu.Unlock()
	if c.closeIf(ctx, func(active string) bool { return active == oldID }, ReasonReplaced) {
		return
	}
	c.publish(ctx, domain.EventCanvasClosed, domain.CanvasEventPayload{MessageID: oldID, Reason: ReasonReplaced})
}

// Reset closes the canvas and forgets auto-open history and width.
func (c *Coordinator) Reset(ctx context.Context) {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	c.closeIf(ctx, anyActive, ReasonReset)

	c.mu.Lock()
	c.state = domain.CanvasState{Width: c.defaultWidth}
	c.autoOpened = make(map[string]bool)
	c.mu.Unlock()
}

func anyActive(active string) bool { return active != "" }

// activate and closeIf must be called with tmu held.
func (c *Coordinator) activate(ctx context.Context, messageID string) {
	c.mu.Lock()
	if c.state.ActiveMessageID == messageID {
		c.mu.Unlock()
		return
	}
	c.state.ActiveMessageID = messageID
	c.state.Resizing = false
	width := c.state.Width
	c.mu.Unlock()

	c.console.clear()
	c.logger.Debug("canvas activated", "session_id", c.sessionID, "message_id", messageID)
	c.publish(ctx, domain.EventCanvasActivated, domain.CanvasEventPayload{MessageID: messageID, Width: width})
}

func (c *Coordinator) closeIf(ctx context.Context, match func(active string) bool, reason string) bool {
	c.mu.Lock()
	active := c.state.ActiveMessageID
	if active == "" || !match(active) {
		c.mu.Unlock()
		return false
	}
	c.state.ActiveMessageID = ""
	c.state.Resizing = false
	c.mu.Unlock()

	c.console.clear()
	c.logger.Debug("canvas closed", "session_id", c.sessionID, "message_id", active, "reason", reason)
	c.publish(ctx, domain.EventCanvasClosed, domain.CanvasEventPayload{MessageID: active, Reason: reason})
	return true
}

func (c *Coordinator) publish(ctx context.Context, t domain.EventType, payload any) {
	c.bus.Publish(ctx, domain.NewEvent(t, c.sessionID, payload))
}
