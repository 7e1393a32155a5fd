package domain

// Canvas width bounds, in percent of viewport width.
const (
	CanvasMinWidth     = 25.0
	CanvasMaxWidth     = 75.0
	CanvasDefaultWidth = 50.0
)

// CanvasState is the page-session canvas visibility state.
// At most one message's canvas is open: ActiveMessageID is empty when none is.
type CanvasState struct {
	ActiveMessageID string  `json:"active_message_id"`
	Width           float64 `json:"width"`
	Resizing        bool    `json:"resizing"`
	ConsoleRevealed bool    `json:"console_revealed"`
}

// ClampWidth bounds w to [CanvasMinWidth, CanvasMaxWidth].
func ClampWidth(w float64) float64 {
	if w < CanvasMinWidth {
		return CanvasMinWidth
	}
	if w > CanvasMaxWidth {
		return CanvasMaxWidth
	}
	return w
}

// ConsoleLevel is the severity of a sandbox console entry.
type ConsoleLevel string

const (
	ConsoleLog   ConsoleLevel = "log"
	ConsoleWarn  ConsoleLevel = "warn"
	ConsoleError ConsoleLevel = "error"
	ConsoleInfo  ConsoleLevel = "info"
)

// Valid reports whether l is a known console level.
func (l ConsoleLevel) Valid() bool {
	switch l {
	case ConsoleLog, ConsoleWarn, ConsoleError, ConsoleInfo:
		return true
	}
	return false
}

// ConsoleEntry is one relayed console line from the sandbox.
type ConsoleEntry struct {
	Level     ConsoleLevel `json:"level"`
	Message   string       `json:"message"`
	Timestamp int64        `json:"timestamp"` // unix millis, assigned by the relay
}

// EditSession tracks the single message in edit mode, if any.
type EditSession struct {
	EditingMessageID string `json:"editing_message_id"`
}
