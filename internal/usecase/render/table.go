package render

import (
	"regexp"
	"strings"
)

var separatorRow = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)

// tableSpan is a detected pipe table and its byte span in the source text.
type tableSpan struct {
	start, end int
	headers    []string
	rows       [][]string
}

type line struct {
	text       string
	start, end int // end excludes the newline
}

func splitLines(text string) []line {
	var out []line
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out = append(out, line{text: text[start:i], start: start, end: i})
			start = i + 1
		}
	}
	if start <= len(text) {
		out = append(out, line{text: text[start:], start: start, end: len(text)})
	}
	return out
}

// findTables locates header/separator/rows triples. Tables whose span
// overlaps any of the given code spans are discarded, as are tables that
// parse to zero headers or zero rows.
func findTables(text string, code []Block) []tableSpan {
	lines := splitLines(text)
	var out []tableSpan

	for i := 0; i+2 < len(lines); i++ {
		header := lines[i]
		sep := lines[i+1]
		if !strings.Contains(header.text, "|") || !strings.Contains(sep.text, "|") || !separatorRow.MatchString(sep.text) {
			continue
		}

		j := i + 2
		for j < len(lines) && strings.Contains(lines[j].text, "|") && strings.TrimSpace(lines[j].text) != "" {
			j++
		}
		if j == i+2 {
			continue
		}

		span := tableSpan{start: header.start, end: lines[j-1].end}
		if overlapsAny(span.start, span.end, code) {
			i = j - 1
			continue
		}

		span.headers = splitCells(header.text)
		for _, row := range lines[i+2 : j] {
			if cells := splitCells(row.text); len(cells) > 0 {
				span.rows = append(span.rows, cells)
			}
		}
		if len(span.headers) > 0 && len(span.rows) > 0 {
			out = append(out, span)
		}
		i = j - 1
	}
	return out
}

// splitCells splits a pipe row and drops the empty artifacts that leading
// and trailing pipes leave behind.
func splitCells(row string) []string {
	parts := strings.Split(strings.TrimSpace(row), "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func overlapsAny(start, end int, blocks []Block) bool {
	for _, b := range blocks {
		if start < b.End && b.Start < end {
			return true
		}
	}
	return false
}
