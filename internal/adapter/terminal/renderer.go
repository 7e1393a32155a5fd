// Package terminal renders chat replies for a terminal: markdown text through
// glamour, tables through lipgloss, and a short canvas summary.
package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"canvaschat/internal/domain"
)

// DefaultWidth is the word-wrap width when none is configured.
const DefaultWidth = 100

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	colorInfo   = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorError  = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}

	codeLabel   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	headerCell  = lipgloss.NewStyle().Foreground(colorInfo).Bold(true).Padding(0, 1)
	bodyCell    = lipgloss.NewStyle().Padding(0, 1)
	muted       = lipgloss.NewStyle().Foreground(colorMuted)
	warning     = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	errorLabel  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	outputLabel = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	outputBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// Options configures a Renderer.
type Options struct {
	Width int
	// Style is a glamour standard style ("dark", "light", "notty") or
	// "auto" (the default) to detect the terminal background.
	Style string
}

// Renderer turns a rendered message into terminal output.
type Renderer struct {
	width int
	md    *glamour.TermRenderer
}

// New creates a Renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	style := glamour.WithAutoStyle()
	if opts.Style != "" && opts.Style != "auto" {
		style = glamour.WithStandardStyle(opts.Style)
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return nil, fmt.Errorf("terminal renderer: %w", err)
	}
	return &Renderer{width: opts.Width, md: md}, nil
}

// Message renders every segment in order, followed by a canvas summary when
// the message has canvas files.
func (r *Renderer) Message(msg *domain.RenderedMessage) (string, error) {
	if msg == nil {
		return "", nil
	}
	var b strings.Builder
	for _, seg := range msg.Segments {
		var (
			out string
			err error
		)
		switch seg.Kind {
		case domain.SegmentText:
			out, err = r.md.Render(seg.Content)
		case domain.SegmentCode:
			out, err = r.code(seg)
		case domain.SegmentTable:
			out = r.table(seg) + "\n"
		}
		if err != nil {
			return "", fmt.Errorf("render %s segment: %w", seg.Kind, err)
		}
		b.WriteString(out)
	}
	if msg.HasCanvas() {
		b.WriteString(canvasSummary(msg))
	}
	return b.String(), nil
}

func (r *Renderer) code(seg domain.Segment) (string, error) {
	fence := "```"
	if strings.Contains(seg.Code, fence) {
		fence = "~~~~"
	}
	body, err := r.md.Render(fence + seg.Language + "\n" + seg.Code + "\n" + fence)
	if err != nil {
		return "", err
	}
	label := seg.Language
	if label == "" {
		label = "text"
	}
	return "  " + codeLabel.Render(label) + "\n" + body, nil
}

func (r *Renderer) table(seg domain.Segment) string {
	cols := len(seg.Headers)
	for _, row := range seg.Rows {
		cols = max(cols, len(row))
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(pad(seg.Headers, cols)...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
	for _, row := range seg.Rows {
		t.Row(pad(row, cols)...)
	}
	return lipgloss.NewStyle().MaxWidth(r.width).Render(t.String())
}

// pad extends a row to n cells.
func pad(cells []string, n int) []string {
	if len(cells) >= n {
		return cells
	}
	out := make([]string, n)
	copy(out, cells)
	return out
}

func canvasSummary(msg *domain.RenderedMessage) string {
	names := make([]string, len(msg.Files))
	for i, f := range msg.Files {
		names[i] = f.Name
	}
	var b strings.Builder
	b.WriteString(muted.Render(fmt.Sprintf("canvas: %s · %s", msg.Mode, strings.Join(names, ", "))))
	b.WriteByte('\n')
	if msg.AssemblyError != "" {
		b.WriteString(warning.Render("preview unavailable: " + msg.AssemblyError))
		b.WriteByte('\n')
	}
	if msg.Run != nil {
		hint := "run with: canvaschat run --lang " + msg.Run.Language
		if msg.Run.NeedsInput {
			hint += " --stdin <input>"
		}
		b.WriteString(muted.Render(hint))
		b.WriteByte('\n')
	}
	return b.String()
}

// Execution renders an execution panel result.
func (r *Renderer) Execution(d domain.ExecutionDisplay) string {
	var label string
	switch d.Kind {
	case domain.DisplayCompileError:
		label = errorLabel.Render("compile error")
	case domain.DisplayRuntimeError:
		label = errorLabel.Render("runtime error")
	default:
		label = outputLabel.Render("output")
	}
	out := d.Output
	if out == "" {
		out = muted.Render("(no output)")
	}
	return label + "\n" + outputBox.MaxWidth(r.width).Render(strings.TrimRight(out, "\n")) + "\n"
}
