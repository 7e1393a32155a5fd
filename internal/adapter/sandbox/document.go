// Package sandbox builds the self-contained preview documents the canvas
// loads into its sandboxed frame.
package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"canvaschat/internal/domain"
	"canvaschat/internal/usecase/render"
)

// ContentSecurityPolicy isolates a preview document from the host origin.
const ContentSecurityPolicy = "sandbox allow-scripts allow-popups allow-modals"

// ConsoleSource tags the console messages a preview posts to its parent.
const ConsoleSource = "canvaschat-console"

// Script and style sources loaded by component previews.
const (
	ReactURL    = "https://unpkg.com/react@18/umd/react.development.js"
	ReactDOMURL = "https://unpkg.com/react-dom@18/umd/react-dom.development.js"
	BabelURL    = "https://unpkg.com/@babel/standalone/babel.min.js"
)

var (
	fullDocumentRe = regexp.MustCompile(`(?i)<!doctype\s+html|<html[\s>]`)
	headOpenRe     = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	bodyCloseRe    = regexp.MustCompile(`(?i)</body\s*>`)
	htmlOpenRe     = regexp.MustCompile(`(?i)<html(?:\s[^>]*)?>`)
)

// Document builds the preview for a rendered message. Component messages
// get the bundle (or the assembly failure) inside a React harness; markup
// messages get their html, css and scripts combined. Run and none modes
// have no document and fail with domain.ErrNotRenderable.
func Document(rm *domain.RenderedMessage) ([]byte, error) {
	switch rm.Mode {
	case domain.PreviewComponent:
		return componentDocument(rm.Bundle, rm.AssemblyError)
	case domain.PreviewMarkup:
		return markupDocument(rm.Files)
	}
	return nil, domain.NewSubSystemError("canvas", "Sandbox.Document", domain.ErrNotRenderable, string(rm.Mode))
}

type componentData struct {
	Prelude     string
	ReactURL    string
	ReactDOMURL string
	BabelURL    string
	Styles      string
	Source      string // JSON string literal
	Entry       string // JSON string literal
	Imports     string // JSON array literal
	Failure     string // JSON string literal, empty when assembly succeeded
}

func componentDocument(b *domain.Bundle, assembleErr string) ([]byte, error) {
	data := componentData{
		Prelude:     prelude(),
		ReactURL:    ReactURL,
		ReactDOMURL: ReactDOMURL,
		BabelURL:    BabelURL,
		Source:      `""`,
		Entry:       jsString(render.EntryComponent),
		Imports:     "[]",
	}
	switch {
	case b != nil && assembleErr == "":
		data.Styles = b.Styles
		data.Source = jsString(b.Code)
		data.Entry = jsString(b.Entry)
		data.Imports = jsValue(b.Imports)
	case assembleErr != "":
		data.Failure = jsString(assembleErr)
	default:
		data.Failure = jsString(domain.ErrNoComponent.Error())
	}

	var buf bytes.Buffer
	if err := componentTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render component document: %w", err)
	}
	return buf.Bytes(), nil
}

type markupData struct {
	Prelude string
	Styles  string
	Body    string
	Script  string // JSON string literal
}

func markupDocument(files []domain.FileEntry) ([]byte, error) {
	var html, css, js []string
	for _, f := range files {
		switch render.NormalizeLanguage(f.Language) {
		case "html":
			html = append(html, f.Content)
		case "css":
			css = append(css, f.Content)
		case "javascript", "js":
			js = append(js, f.Content)
		case "typescript", "ts":
			js = append(js, render.Rewrite(f.Content))
		}
	}
	data := markupData{
		Prelude: prelude(),
		Styles:  strings.Join(css, "\n\n"),
		Body:    strings.Join(html, "\n"),
		Script:  jsString(strings.Join(js, "\n;\n")),
	}

	if len(html) == 1 && fullDocumentRe.MatchString(html[0]) {
		return injectIntoDocument(html[0], data)
	}

	var buf bytes.Buffer
	if err := markupTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render markup document: %w", err)
	}
	return buf.Bytes(), nil
}

// injectIntoDocument keeps a user-supplied full document and adds the
// relay and styles to its head and the script before </body>.
func injectIntoDocument(doc string, data markupData) ([]byte, error) {
	var head, tail bytes.Buffer
	if err := headTmpl.Execute(&head, data); err != nil {
		return nil, fmt.Errorf("render document head: %w", err)
	}
	if err := tailTmpl.Execute(&tail, data); err != nil {
		return nil, fmt.Errorf("render document tail: %w", err)
	}

	switch {
	case headOpenRe.MatchString(doc):
		loc := headOpenRe.FindStringIndex(doc)
		doc = doc[:loc[1]] + head.String() + doc[loc[1]:]
	case htmlOpenRe.MatchString(doc):
		loc := htmlOpenRe.FindStringIndex(doc)
		doc = doc[:loc[1]] + "<head>" + head.String() + "</head>" + doc[loc[1]:]
	default:
		doc = head.String() + doc
	}

	if locs := bodyCloseRe.FindAllStringIndex(doc, -1); len(locs) > 0 {
		at := locs[len(locs)-1][0]
		doc = doc[:at] + tail.String() + doc[at:]
	} else {
		doc += tail.String()
	}
	return []byte(doc), nil
}

// jsString encodes s as a JavaScript string literal that is safe inside a
// script element: encoding/json escapes <, > and &.
func jsString(s string) string {
	return jsValue(s)
}

func jsValue(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}
