package render

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"canvaschat/internal/domain"
)

// DefaultLanguage tags untagged fences.
const DefaultLanguage = "text"

// Canvas-eligible languages. This set is shared with the execution
// language table; keep them in step.
var (
	markupLanguages = map[string]bool{
		"html": true, "css": true, "javascript": true, "js": true, "typescript": true, "ts": true,
	}
	componentLanguages = map[string]bool{
		"jsx": true, "tsx": true, "react": true, "typescript-react": true,
	}
	generalLanguages = map[string]bool{
		"python": true, "cpp": true, "c": true, "java": true, "php": true, "ruby": true,
		"go": true, "rust": true, "csharp": true, "swift": true, "kotlin": true, "c++": true,
	}
)

// reactImport matches an import statement pulling from the react package.
var reactImport = regexp.MustCompile(`import\s[^;]*?from\s+['"]react['"]|import\s+['"]react['"]`)

// NormalizeLanguage lower-cases a fence tag and defaults it to "text".
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return DefaultLanguage
	}
	return tag
}

// IsCanvasLanguage reports whether a normalized tag is canvas-eligible.
func IsCanvasLanguage(lang string) bool {
	return markupLanguages[lang] || componentLanguages[lang] || generalLanguages[lang]
}

// IsComponentLanguage reports whether lang denotes a component-file variant.
func IsComponentLanguage(lang string) bool {
	return componentLanguages[lang]
}

// IsBrowserLanguage reports whether lang runs in the sandbox document
// rather than on the remote executor.
func IsBrowserLanguage(lang string) bool {
	return markupLanguages[lang] || componentLanguages[lang]
}

// ExtractFiles keeps the fenced blocks whose language is canvas-eligible.
func ExtractFiles(text string) []domain.CodeFile {
	var files []domain.CodeFile
	for _, b := range Blocks(text) {
		lang := NormalizeLanguage(b.Language)
		if !IsCanvasLanguage(lang) {
			continue
		}
		files = append(files, domain.CodeFile{Language: lang, Content: b.Code})
	}
	return files
}

// IsComponentUI is a heuristic: any component-variant tag, or any file
// importing from react, makes the set a component UI program.
func IsComponentUI(files []domain.CodeFile) bool {
	for _, f := range files {
		if IsComponentLanguage(NormalizeLanguage(f.Language)) || reactImport.MatchString(f.Content) {
			return true
		}
	}
	return false
}

var fixedFileNames = map[string]string{
	"html":       "index.html",
	"css":        "styles.css",
	"javascript": "script.js",
	"js":         "script.js",
	"typescript": "script.ts",
	"ts":         "script.ts",
	"python":     "main.py",
	"cpp":        "main.cpp",
	"c++":        "main.cpp",
	"c":          "main.c",
	"java":       "Main.java",
	"php":        "index.php",
	"ruby":       "main.rb",
	"go":         "main.go",
	"rust":       "main.rs",
	"csharp":     "Program.cs",
	"swift":      "main.swift",
	"kotlin":     "Main.kt",
}

// FileEntries names files for the canvas file list. Component files take
// their detected identifier; duplicates get a numeric suffix.
func FileEntries(files []domain.CodeFile) []domain.FileEntry {
	entries := make([]domain.FileEntry, 0, len(files))
	seen := make(map[string]int)
	componentUI := IsComponentUI(files)

	for i, f := range files {
		lang := NormalizeLanguage(f.Language)
		name := fileName(lang, f.Content, i, componentUI)

		seen[name]++
		if n := seen[name]; n > 1 {
			ext := path.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		entries = append(entries, domain.FileEntry{Name: name, Content: f.Content, Language: lang})
	}
	return entries
}

func fileName(lang, content string, index int, componentUI bool) string {
	if IsComponentLanguage(lang) || (componentUI && isScriptLanguage(lang)) {
		ext := ".jsx"
		if lang == "tsx" || lang == "typescript-react" || lang == "ts" || lang == "typescript" {
			ext = ".tsx"
		}
		if id := ComponentName(content); id != "" {
			return id + ext
		}
		return fmt.Sprintf("Component%d%s", index+1, ext)
	}
	if name, ok := fixedFileNames[lang]; ok {
		return name
	}
	return fmt.Sprintf("file%d.txt", index+1)
}

func isScriptLanguage(lang string) bool {
	switch lang {
	case "javascript", "js", "typescript", "ts":
		return true
	}
	return false
}
