package sandbox

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"canvaschat/internal/domain"
)

// MaxConsoleMessage caps one relayed console line, in bytes.
const MaxConsoleMessage = 8 * 1024

// RelayMessage is what a preview posts to its parent window.
type RelayMessage struct {
	Source    string `json:"source"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ParseRelay decodes a relayed console message. Messages from other
// sources or with unknown levels are rejected; long messages are cut.
func ParseRelay(raw []byte) (domain.ConsoleEntry, error) {
	var m RelayMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.ConsoleEntry{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return m.Entry()
}

// Entry validates m and converts it to a console entry.
func (m RelayMessage) Entry() (domain.ConsoleEntry, error) {
	if m.Source != "" && m.Source != ConsoleSource {
		return domain.ConsoleEntry{}, fmt.Errorf("%w: unexpected console source %q", domain.ErrInvalidInput, m.Source)
	}
	level := domain.ConsoleLevel(m.Level)
	if !level.Valid() {
		return domain.ConsoleEntry{}, fmt.Errorf("%w: console level %q", domain.ErrInvalidInput, m.Level)
	}
	return domain.ConsoleEntry{Level: level, Message: truncate(m.Message, MaxConsoleMessage), Timestamp: m.Timestamp}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
