package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBlock_WellFormed(t *testing.T) {
	text := "intro\n```go\nfmt.Println(\"a ``` b\")\n```\nmid\n```python\nprint(1)\n```\n"

	blocks := Blocks(text)
	require.Len(t, blocks, 2)

	assert.Equal(t, "go", blocks[0].Language)
	assert.Equal(t, "fmt.Println(\"a ``` b\")", blocks[0].Code)
	assert.Equal(t, "python", blocks[1].Language)
	assert.Equal(t, "print(1)", blocks[1].Code)
	assert.Less(t, blocks[0].End, blocks[1].Start)
	assert.Equal(t, "```go", text[blocks[0].Start:blocks[0].Start+5])
	assert.Equal(t, "```", text[blocks[1].End-3:blocks[1].End])
}

func TestNextBlock_FromOffset(t *testing.T) {
	text := "```a\none\n```\n```b\ntwo\n```"
	first, ok := NextBlock(text, 0)
	require.True(t, ok)
	second, ok := NextBlock(text, first.End)
	require.True(t, ok)
	assert.Equal(t, "b", second.Language)
	assert.Equal(t, "two", second.Code)

	_, ok = NextBlock(text, second.End)
	assert.False(t, ok)
}

func TestNextBlock_TrimsContentAndTag(t *testing.T) {
	b, ok := NextBlock("```  jsx  \n\n   const a = 1;\n\n```", 0)
	require.True(t, ok)
	assert.Equal(t, "jsx", b.Language)
	assert.Equal(t, "const a = 1;", b.Code)
}

func TestNextBlock_EmptyBody(t *testing.T) {
	b, ok := NextBlock("```\n```", 0)
	require.True(t, ok)
	assert.Equal(t, "", b.Language)
	assert.Equal(t, "", b.Code)
	assert.Equal(t, 7, b.End)
}

func TestNextBlock_Unterminated(t *testing.T) {
	assert.Empty(t, Blocks("```js\nconsole.log(1)\n"))
	assert.Empty(t, Blocks("before ```js\nno close here ``` still mid-line"))
}

func TestNextBlock_OpenerWithoutNewline(t *testing.T) {
	_, ok := NextBlock("trailing opener ```", 0)
	assert.False(t, ok)
}

func TestNextBlock_UnterminatedStopsScan(t *testing.T) {
	// The second opener never closes, so nothing after it becomes code.
	text := "```a\nx\n```\ntext ```b\nnever closed"
	blocks := Blocks(text)
	require.Len(t, blocks, 1)
	assert.Equal(t, "x", blocks[0].Code)
}

func TestNextBlock_LargeMalformedInputTerminates(t *testing.T) {
	assert.Empty(t, Blocks(strings.Repeat("```x", 100000)))
	assert.Empty(t, Blocks("```js\n"+strings.Repeat("x ``` ", 100000)))
}

func TestNextBlock_OpenersWithoutNewlineAreLinear(t *testing.T) {
	text := "x\n" + strings.Repeat("```", 400000)

	done := make(chan []Block, 1)
	go func() { done <- Blocks(text) }()
	select {
	case blocks := <-done:
		assert.Empty(t, blocks)
	case <-time.After(2 * time.Second):
		t.Fatal("scan of unterminated openers did not finish")
	}
}

func TestStripCodeBlocks(t *testing.T) {
	assert.Equal(t, "Look:\n\nDone", StripCodeBlocks("Look:\n```go\nx := 1\n```\nDone"))
	assert.Equal(t, "plain", StripCodeBlocks("  plain \n"))
	assert.Equal(t, "", StripCodeBlocks("```sh\nls\n```"))
}
