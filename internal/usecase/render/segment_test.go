package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaschat/internal/domain"
)

func TestSegment_TextCodeText(t *testing.T) {
	text := "Here:\n```jsx\nfunction App(){return <div>Hi</div>;}\n```\nDone"

	got := Segment(text)
	want := []domain.Segment{
		domain.TextSegment("Here:"),
		domain.CodeSegment("jsx", "function App(){return <div>Hi</div>;}"),
		domain.TextSegment("Done"),
	}
	assert.Equal(t, want, got)
}

func TestSegment_Table(t *testing.T) {
	text := "Results:\n| Name | Score |\n|---|:---:|\n| Ann | 9 |\n| Bob | 7 |\nEnd"

	got := Segment(text)
	require.Len(t, got, 3)
	assert.Equal(t, domain.TextSegment("Results:"), got[0])
	assert.Equal(t, domain.TableSegment(
		[]string{"Name", "Score"},
		[][]string{{"Ann", "9"}, {"Bob", "7"}},
	), got[1])
	assert.Equal(t, domain.TextSegment("End"), got[2])
}

func TestSegment_TableWithoutOuterPipes(t *testing.T) {
	got := Segment("a | b\n--- | ---\n1 | 2")
	require.Len(t, got, 1)
	assert.Equal(t, domain.SegmentTable, got[0].Kind)
	assert.Equal(t, []string{"a", "b"}, got[0].Headers)
	assert.Equal(t, [][]string{{"1", "2"}}, got[0].Rows)
}

func TestSegment_TableInsideCodeIsNotATable(t *testing.T) {
	text := "```md\n| a | b |\n|---|---|\n| 1 | 2 |\n```"

	got := Segment(text)
	require.Len(t, got, 1)
	assert.Equal(t, domain.SegmentCode, got[0].Kind)
	assert.Equal(t, "md", got[0].Language)
	for _, s := range got {
		assert.NotEqual(t, domain.SegmentTable, s.Kind)
	}
}

func TestSegment_EmptyHeaderTableDiscarded(t *testing.T) {
	got := Segment("||\n|---|\n| a |")
	for _, s := range got {
		assert.NotEqual(t, domain.SegmentTable, s.Kind)
	}
	require.NotEmpty(t, got)
}

func TestSegment_SeparatorWithoutRowsIsText(t *testing.T) {
	got := Segment("| a | b |\n|---|---|")
	require.Len(t, got, 1)
	assert.Equal(t, domain.SegmentText, got[0].Kind)
}

func TestSegment_Normalization(t *testing.T) {
	got := Segment("# Title\n**bold** and `code`\n- one\n* two")
	require.Len(t, got, 1)
	assert.Equal(t, "Title\nbold and code\n• one\n• two", got[0].Content)
}

func TestSegment_EmptyAndDecorationOnly(t *testing.T) {
	assert.Empty(t, Segment(""))

	got := Segment("## ")
	require.Len(t, got, 1)
	assert.Equal(t, domain.TextSegment("##"), got[0])
}

func TestSegment_WhitespaceBetweenBlocksDropped(t *testing.T) {
	got := Segment("```a\n1\n```\n\n   \n```b\n2\n```")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Language)
	assert.Equal(t, "b", got[1].Language)
}

func TestSegment_AccountsForAllWords(t *testing.T) {
	text := "## Plan\nFirst **step** here.\n\n| k | v |\n|---|---|\n| x | 1 |\n\n```py\nprint('hi')\n```\n- last word"

	var sb strings.Builder
	for _, s := range Segment(text) {
		switch s.Kind {
		case domain.SegmentText:
			sb.WriteString(s.Content)
		case domain.SegmentCode:
			sb.WriteString(s.Code)
		case domain.SegmentTable:
			sb.WriteString(strings.Join(s.Headers, " "))
			for _, r := range s.Rows {
				sb.WriteString(strings.Join(r, " "))
			}
		}
		sb.WriteString(" ")
	}
	joined := sb.String()
	for _, word := range []string{"Plan", "First", "step", "here.", "k", "v", "x", "1", "print('hi')", "last", "word"} {
		assert.Contains(t, joined, word)
	}
}
