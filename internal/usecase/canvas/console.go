package canvas

import (
	"context"
	"sync"
	"time"

	"canvaschat/internal/domain"
)

// MaxConsoleEntries bounds the buffer; the oldest entries are dropped first.
const MaxConsoleEntries = 500

// Console buffers the sandbox console of the active canvas.
type Console struct {
	mu        sync.Mutex
	bus       domain.EventBus
	sessionID string
	entries   []domain.ConsoleEntry
	revealed  bool
}

func newConsole(bus domain.EventBus, sessionID string) *Console {
	return &Console{bus: bus, sessionID: sessionID}
}

// Append records an entry relayed from the sandbox. The first error-level
// entry since the canvas opened reveals the console panel.
func (c *Console) Append(ctx context.Context, entry domain.ConsoleEntry) error {
	if !entry.Level.Valid() {
		return domain.NewDomainError("Console.Append", domain.ErrInvalidInput, "unknown level "+string(entry.Level))
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	if over := len(c.entries) - MaxConsoleEntries; over > 0 {
		c.entries = append(c.entries[:0:0], c.entries[over:]...)
	}
	reveal := entry.Level == domain.ConsoleError && !c.revealed
	if reveal {
		c.revealed = true
	}
	c.mu.Unlock()

	c.bus.Publish(ctx, domain.NewEvent(domain.EventCanvasConsoleAppended, c.sessionID, entry))
	if reveal {
		c.bus.Publish(ctx, domain.NewEvent(domain.EventCanvasConsoleRevealed, c.sessionID, nil))
	}
	return nil
}

// Entries returns a copy of the buffered entries in arrival order.
func (c *Console) Entries() []domain.ConsoleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ConsoleEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Revealed reports whether the console panel has been auto-revealed.
func (c *Console) Revealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revealed
}

func (c *Console) clear() {
	c.mu.Lock()
	c.entries = nil
	c.revealed = false
	c.mu.Unlock()
}
