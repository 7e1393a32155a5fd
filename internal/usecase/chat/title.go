package chat

import (
	"strings"

	"canvaschat/internal/usecase/render"
)

// MaxTitleRunes bounds conversation titles.
const MaxTitleRunes = 60

// DefaultTitle names conversations whose first message is only code.
const DefaultTitle = "New conversation"

// Title derives a conversation title from its first user message: code
// blocks are removed, whitespace collapsed and the result truncated.
func Title(question string) string {
	title := strings.Join(strings.Fields(render.StripCodeBlocks(question)), " ")
	if title == "" {
		return DefaultTitle
	}
	runes := []rune(title)
	if len(runes) <= MaxTitleRunes {
		return title
	}
	return strings.TrimSpace(string(runes[:MaxTitleRunes-1])) + "…"
}
