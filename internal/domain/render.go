package domain

// SegmentKind tags a Segment variant.
type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentCode  SegmentKind = "code"
	SegmentTable SegmentKind = "table"
)

// Segment is one typed chunk of an AI response, in display order.
// Only the fields of its Kind are set.
type Segment struct {
	Kind     SegmentKind `json:"kind"`
	Content  string      `json:"content,omitempty"`
	Language string      `json:"language,omitempty"`
	Code     string      `json:"code,omitempty"`
	Headers  []string    `json:"headers,omitempty"`
	Rows     [][]string  `json:"rows,omitempty"`
}

// TextSegment builds a text segment.
func TextSegment(content string) Segment {
	return Segment{Kind: SegmentText, Content: content}
}

// CodeSegment builds a code segment.
func CodeSegment(language, code string) Segment {
	return Segment{Kind: SegmentCode, Language: language, Code: code}
}

// TableSegment builds a table segment.
func TableSegment(headers []string, rows [][]string) Segment {
	return Segment{Kind: SegmentTable, Headers: headers, Rows: rows}
}

// CodeFile is one canvas-eligible fenced block.
type CodeFile struct {
	Language string `json:"language"`
	Content  string `json:"content"`
}

// FileEntry is a CodeFile with a display name for the canvas file list.
type FileEntry struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Bundle is the merged, sandbox-ready component program.
type Bundle struct {
	Code        string   `json:"code"`
	Styles      string   `json:"styles"`
	Imports     []string `json:"imports"`
	Entry       string   `json:"entry"`
	Synthesized bool     `json:"synthesized"`
}

// PreviewMode selects how the canvas shows a message's files.
type PreviewMode string

const (
	PreviewNone      PreviewMode = "none"
	PreviewComponent PreviewMode = "component"
	PreviewMarkup    PreviewMode = "markup"
	PreviewRun       PreviewMode = "run"
)

// RunTarget is the single source offered to the remote executor.
type RunTarget struct {
	Language   string `json:"language"`
	Source     string `json:"source"`
	NeedsInput bool   `json:"needs_input"`
}

// RenderedMessage is everything derived from one message's text.
type RenderedMessage struct {
	Segments      []Segment   `json:"segments"`
	Files         []FileEntry `json:"files"`
	ComponentUI   bool        `json:"component_ui"`
	Mode          PreviewMode `json:"mode"`
	Bundle        *Bundle     `json:"bundle,omitempty"`
	AssemblyError string      `json:"assembly_error,omitempty"`
	Run           *RunTarget  `json:"run,omitempty"`
}

// HasCanvas reports whether the message has canvas-eligible content.
func (r *RenderedMessage) HasCanvas() bool {
	return len(r.Files) > 0
}
