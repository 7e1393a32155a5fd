package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"canvaschat/internal/domain"
)

// EntryComponent is the identifier the sandbox mounts.
const EntryComponent = "App"

var bundleLanguages = map[string]bool{
	"jsx": true, "tsx": true, "react": true, "typescript-react": true,
	"js": true, "javascript": true, "ts": true, "typescript": true,
}

// Component identifier heuristics, in priority order.
var (
	funcDeclRe      = regexp.MustCompile(`\bfunction\s+([A-Z][\w$]*)\s*[<(]`)
	constAssignRe   = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Z][\w$]*)\s*(?::[^=\n]+)?=\s*(?:\(|function\b|async\b|React\.|memo\(|forwardRef\(|[\w$]+\s*=>)`)
	defaultExportRe = regexp.MustCompile(`\bexport\s+default\s+(?:function\s+|class\s+)?([A-Z][\w$]*)`)

	entryFuncRe   = regexp.MustCompile(`\bfunction\s+App\s*[<(]`)
	entryConstRe  = regexp.MustCompile(`\b(?:const|let|var)\s+App\s*(?::[^=\n]+)?=`)
	entryExportRe = regexp.MustCompile(`\bexport\s+default\s+(?:function\s+)?App\b`)

	importSpecRe = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:type\s+)?(?:[\w*{}\s,$]+?\s+from\s+)?['"]([^'"\n]+)['"]`)
)

var frameworkPackages = map[string]bool{"react": true, "react-dom": true}

// ComponentName returns the component identifier a file declares: a
// function declaration, else a const assignment, else a default export.
func ComponentName(src string) string {
	for _, re := range []*regexp.Regexp{funcDeclRe, constAssignRe, defaultExportRe} {
		if m := re.FindStringSubmatch(src); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsEntry reports whether src declares the entry component.
func IsEntry(src string) bool {
	return entryFuncRe.MatchString(src) || entryConstRe.MatchString(src) || entryExportRe.MatchString(src)
}

// ImportedPackages returns the non-relative, non-framework packages src
// imports, reduced to their package root (`@scope/name` or `name`).
func ImportedPackages(src string) []string {
	var out []string
	for _, m := range importSpecRe.FindAllStringSubmatch(src, -1) {
		path := m[1]
		if strings.HasPrefix(path, ".") || strings.HasPrefix(path, "/") {
			continue
		}
		pkg := packageRoot(path)
		if frameworkPackages[pkg] {
			continue
		}
		out = append(out, pkg)
	}
	return out
}

func packageRoot(path string) string {
	parts := strings.Split(path, "/")
	if strings.HasPrefix(path, "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// Assemble merges component files into one sandbox script with the entry
// component last. It fails with ErrNoComponent when no script file exists
// and ErrNoValidComponent when no component identifier can be found.
func Assemble(files []domain.CodeFile) (domain.Bundle, error) {
	type unit struct {
		name  string
		body  string
		entry bool
	}

	var (
		units   []unit
		styles  []string
		imports []string
		seen    = make(map[string]bool)
	)
	for _, f := range files {
		lang := NormalizeLanguage(f.Language)
		for _, pkg := range ImportedPackages(f.Content) {
			if !seen[pkg] {
				seen[pkg] = true
				imports = append(imports, pkg)
			}
		}
		switch {
		case lang == "css":
			styles = append(styles, f.Content)
		case bundleLanguages[lang]:
			units = append(units, unit{
				name:  ComponentName(f.Content),
				body:  strings.TrimSpace(Rewrite(f.Content)),
				entry: IsEntry(f.Content),
			})
		}
	}

	if len(units) == 0 {
		return domain.Bundle{}, domain.NewDomainError("Render.Assemble", domain.ErrNoComponent, "")
	}

	sort.SliceStable(units, func(i, j int) bool { return !units[i].entry && units[j].entry })

	var (
		sb       strings.Builder
		first    string
		hasEntry bool
	)
	for i, u := range units {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if u.name != "" {
			fmt.Fprintf(&sb, "// Component: %s\n", u.name)
			if first == "" {
				first = u.name
			}
		}
		sb.WriteString(u.body)
		hasEntry = hasEntry || u.entry
	}

	bundle := domain.Bundle{
		Styles:  strings.Join(styles, "\n\n"),
		Imports: imports,
		Entry:   EntryComponent,
	}
	if imports == nil {
		bundle.Imports = []string{}
	}

	if !hasEntry {
		if first == "" {
			return domain.Bundle{}, domain.NewDomainError("Render.Assemble", domain.ErrNoValidComponent, "")
		}
		fmt.Fprintf(&sb, "\n\n// Component: %s\nfunction %s() {\n  return <%s />;\n}", EntryComponent, EntryComponent, first)
		bundle.Synthesized = true
	}

	bundle.Code = sb.String()
	return bundle, nil
}
