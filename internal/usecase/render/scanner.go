// Package render turns AI reply text into segments, canvas files and
// sandbox bundles. Every consumer locates fenced blocks through NextBlock.
package render

import "strings"

const fence = "```"

// Block is one fenced code region. Start and End are byte offsets of the
// opening and (exclusive) closing marker.
type Block struct {
	Language string
	Code     string
	Start    int
	End      int
}

// NextBlock returns the first well-formed fenced block at or after from.
//
// The language tag is the trimmed remainder of the opener's line. An opener
// with no newline after it ends the scan. A close only counts at the start of
// text or directly after a newline. If an opener has no valid close, scanning
// stops and no block is returned.
func NextBlock(text string, from int) (Block, bool) {
	if from < 0 {
		from = 0
	}
	if from >= len(text) {
		return Block{}, false
	}
	rel := strings.Index(text[from:], fence)
	if rel < 0 {
		return Block{}, false
	}
	open := from + rel
	tagStart := open + len(fence)

	// No later opener can have a newline after it either.
	nl := strings.IndexByte(text[tagStart:], '\n')
	if nl < 0 {
		return Block{}, false
	}
	tagEnd := tagStart + nl
	bodyStart := tagEnd + 1

	closeAt, ok := findClose(text, tagEnd)
	if !ok {
		return Block{}, false
	}

	return Block{
		Language: strings.TrimSpace(text[tagStart:tagEnd]),
		Code:     strings.TrimSpace(text[bodyStart:max(bodyStart, closeAt)]),
		Start:    open,
		End:      closeAt + len(fence),
	}, true
}

// findClose searches from the newline ending the tag line for a marker that
// sits at the start of a line.
func findClose(text string, from int) (int, bool) {
	s := from
	for s < len(text) {
		rel := strings.Index(text[s:], fence)
		if rel < 0 {
			return 0, false
		}
		idx := s + rel
		if idx == 0 || text[idx-1] == '\n' {
			return idx, true
		}
		s = idx + len(fence)
	}
	return 0, false
}

// Blocks returns every fenced block in document order.
func Blocks(text string) []Block {
	var out []Block
	pos := 0
	for {
		b, ok := NextBlock(text, pos)
		if !ok {
			return out
		}
		out = append(out, b)
		pos = b.End
	}
}

// StripCodeBlocks removes every fenced block from text and trims the result.
func StripCodeBlocks(text string) string {
	blocks := Blocks(text)
	if len(blocks) == 0 {
		return strings.TrimSpace(text)
	}
	var sb strings.Builder
	prev := 0
	for _, b := range blocks {
		sb.WriteString(text[prev:b.Start])
		prev = b.End
	}
	sb.WriteString(text[prev:])
	return strings.TrimSpace(sb.String())
}
