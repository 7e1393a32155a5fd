package render

import (
	"regexp"
	"sort"
	"strings"

	"canvaschat/internal/domain"
)

// Text normalization rules, applied in order.
var textRules = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`), ""},
	{regexp.MustCompile(`\*\*([^*\n]+)\*\*`), "$1"},
	{regexp.MustCompile(`__([^_\n]+)__`), "$1"},
	{regexp.MustCompile("`([^`\n]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`), "${1}• "},
}

// NormalizeText strips heading, bold and inline-code markers and turns
// leading list bullets into "•".
func NormalizeText(s string) string {
	for _, r := range textRules {
		s = r.re.ReplaceAllString(s, r.with)
	}
	return strings.TrimSpace(s)
}

type span struct {
	start, end int
	seg        domain.Segment
}

// Segment splits an AI reply into text, code and table segments in
// document order. Non-empty input always yields at least one segment.
func Segment(text string) []domain.Segment {
	blocks := Blocks(text)

	spans := make([]span, 0, len(blocks))
	for _, b := range blocks {
		spans = append(spans, span{b.Start, b.End, domain.CodeSegment(b.Language, b.Code)})
	}
	for _, t := range findTables(text, blocks) {
		spans = append(spans, span{t.start, t.end, domain.TableSegment(t.headers, t.rows)})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var out []domain.Segment
	emitText := func(raw string) {
		if s := NormalizeText(raw); s != "" {
			out = append(out, domain.TextSegment(s))
		}
	}

	prev := 0
	for _, sp := range spans {
		if sp.start > prev {
			emitText(text[prev:sp.start])
		}
		out = append(out, sp.seg)
		prev = sp.end
	}
	if prev < len(text) {
		emitText(text[prev:])
	}

	if len(out) == 0 && strings.TrimSpace(text) != "" {
		content := NormalizeText(text)
		if content == "" {
			content = strings.TrimSpace(text)
		}
		out = append(out, domain.TextSegment(content))
	}
	return out
}
