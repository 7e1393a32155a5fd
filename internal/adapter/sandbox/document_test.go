package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaschat/internal/domain"
	"canvaschat/internal/usecase/render"
)

func TestComponentDocument(t *testing.T) {
	rm := render.Derive("```jsx\nimport React, { useState } from 'react';\nimport { motion } from 'framer-motion/dist';\nexport default function App() {\n  const [n, setN] = useState(0);\n  return <button onClick={() => setN(n + 1)}>{n}</button>;\n}\n```\n```css\n.btn { color: red; }\n```")
	require.Equal(t, domain.PreviewComponent, rm.Mode)
	require.NotNil(t, rm.Bundle)

	doc, err := Document(rm)
	require.NoError(t, err)
	html := string(doc)

	assert.Contains(t, html, ReactURL)
	assert.Contains(t, html, BabelURL)
	assert.Contains(t, html, `"canvaschat-console"`)
	assert.Contains(t, html, ".btn { color: red; }")
	assert.Contains(t, html, `var IMPORTS = ["framer-motion"]`)
	assert.Contains(t, html, "Babel.transform(source")
	assert.NotContains(t, html, "fail(\"")

	// relay installed before the libraries load
	assert.Less(t, strings.Index(html, "postMessage"), strings.Index(html, ReactURL))
}

func TestComponentDocumentEscapesSource(t *testing.T) {
	rm := &domain.RenderedMessage{
		Mode:   domain.PreviewComponent,
		Bundle: &domain.Bundle{Code: "function App() { return <div>{'</script><script>alert(1)</script>'}</div>; }", Entry: "App", Imports: []string{}},
	}
	doc, err := Document(rm)
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "</script><script>alert(1)")
	assert.Contains(t, string(doc), `</script>`)
}

func TestComponentDocumentAssemblyFailure(t *testing.T) {
	rm := &domain.RenderedMessage{Mode: domain.PreviewComponent, AssemblyError: domain.ErrNoValidComponent.Error()}
	doc, err := Document(rm)
	require.NoError(t, err)
	html := string(doc)
	assert.Contains(t, html, `fail("no valid component found")`)
	assert.NotContains(t, html, "Babel.transform(source")
}

func TestMarkupDocumentFragment(t *testing.T) {
	rm := render.Derive("```html\n<h1 id=\"top\">Hi</h1>\n```\n```css\nh1 { color: blue; }\n```\n```js\nconsole.log('ready')\n```")
	require.Equal(t, domain.PreviewMarkup, rm.Mode)

	doc, err := Document(rm)
	require.NoError(t, err)
	html := string(doc)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, `<h1 id="top">Hi</h1>`)
	assert.Contains(t, html, "<style>h1 { color: blue; }")
	assert.Contains(t, html, `s.text = "console.log('ready')"`)
	assert.NotContains(t, html, ReactURL)
}

func TestMarkupDocumentFullDocument(t *testing.T) {
	page := "<!DOCTYPE html>\n<html>\n<head><title>T</title></head>\n<body><header>x</header><p>body</p></body>\n</html>"
	rm := &domain.RenderedMessage{
		Mode: domain.PreviewMarkup,
		Files: []domain.FileEntry{
			{Name: "index.html", Language: "html", Content: page},
			{Name: "script.js", Language: "javascript", Content: "document.title = 'x'"},
		},
	}
	doc, err := Document(rm)
	require.NoError(t, err)
	html := string(doc)

	assert.Equal(t, 1, strings.Count(html, "<!DOCTYPE html>"), "user document kept, not wrapped")
	headAt := strings.Index(html, "<head>")
	relayAt := strings.Index(html, "postMessage")
	assert.Greater(t, relayAt, headAt)
	assert.Less(t, relayAt, strings.Index(html, "<title>"))
	assert.Less(t, strings.Index(html, "s.text"), strings.Index(html, "</body>"))
}

func TestDocumentNotRenderable(t *testing.T) {
	for _, mode := range []domain.PreviewMode{domain.PreviewRun, domain.PreviewNone} {
		_, err := Document(&domain.RenderedMessage{Mode: mode})
		assert.ErrorIs(t, err, domain.ErrNotRenderable, mode)
	}
}

func TestSafeStyle(t *testing.T) {
	assert.Equal(t, `a{}<\/style><script>`, safeStyle(`a{}</STYLE><script>`))
}

func TestParseRelay(t *testing.T) {
	e, err := ParseRelay([]byte(`{"source":"canvaschat-console","level":"error","message":"boom","timestamp":42}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ConsoleEntry{Level: domain.ConsoleError, Message: "boom", Timestamp: 42}, e)

	_, err = ParseRelay([]byte(`{"source":"other","level":"log","message":"x"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ParseRelay([]byte(`{"level":"debug","message":"x"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ParseRelay([]byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	long := strings.Repeat("é", MaxConsoleMessage)
	e, err = RelayMessage{Level: "log", Message: long}.Entry()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(e.Message), MaxConsoleMessage+len("…"))
	assert.True(t, strings.HasSuffix(e.Message, "…"))
}
