package render

import (
	"regexp"
	"strings"
)

// RewritePass is one named, best-effort source rewrite applied to a
// component file before it is bundled. Passes are syntactic, not a parser.
type RewritePass struct {
	Name  string
	Apply func(src string) string
}

// RewritePasses run in this order on every component file.
var RewritePasses = []RewritePass{
	{Name: "strip-imports", Apply: stripImports},
	{Name: "strip-type-declarations", Apply: stripTypeDeclarations},
	{Name: "strip-typed-signatures", Apply: stripTypedSignatures},
	{Name: "strip-return-types", Apply: stripReturnTypes},
	{Name: "strip-param-types", Apply: stripParamTypes},
	{Name: "strip-exports", Apply: stripExports},
	{Name: "collapse-blank-lines", Apply: collapseBlankLines},
}

// Rewrite applies every pass in order.
func Rewrite(src string) string {
	for _, p := range RewritePasses {
		src = p.Apply(src)
	}
	return src
}

// typeExpr matches a simple type reference: primitives or capitalized
// names, optional generic arguments one level deep, array suffixes and unions.
const typeAtom = `(?:(?:string|number|boolean|any|unknown|void|never|object|null|undefined)\b|[A-Z][\w.]*)(?:\s*<[^<>]*(?:<[^<>]*>[^<>]*)*>)?(?:\[\])*`
const typeExpr = typeAtom + `(?:\s*\|\s*` + typeAtom + `)*`

var (
	importFromRe   = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:type\s+)?[\w*{}\s,$]+?\s+from\s+['"][^'"\n]+['"][ \t]*;?[ \t]*$\n?`)
	importBareRe   = regexp.MustCompile(`(?m)^[ \t]*import\s+['"][^'"\n]+['"][ \t]*;?[ \t]*$\n?`)
	interfaceRe    = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?interface\s+\w+(?:\s*<[^>{]*>)?(?:\s+extends\s+[^{]+)?\s*\{`)
	typeAliasRe    = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?type\s+\w+(?:\s*<[^>=]*>)?\s*=`)
	fcAnnotationRe = regexp.MustCompile(`:\s*(?:React\.)?(?:FC|FunctionComponent|VFC)(?:\s*<[^<>]*(?:<[^<>]*>[^<>]*)*>)?`)
	hookGenericRe  = regexp.MustCompile(`\b(use[A-Z]?\w*)\s*<[^<>()]*(?:<[^<>()]*>[^<>()]*)*>\s*\(`)
	fnGenericRe    = regexp.MustCompile(`\bfunction\s+([\w$]+)\s*<[^<>()]*>\s*\(`)
	asCastRe       = regexp.MustCompile(`([\w)\]])\s+as\s+(?:const\b|` + typeAtom + `)(\s*[);,\]}\n])`)
	nonNullRe      = regexp.MustCompile(`([\w)\]])!\.`)
	returnTypeRe   = regexp.MustCompile(`\)\s*:\s*` + typeExpr + `\s*(\{|=>)`)
	paramListRe    = regexp.MustCompile(`\(([^()]*)\)(\s*(?:=>|\{))`)
	destructTypeRe = regexp.MustCompile(`\}\s*:\s*(?:\{[^{}]*\}|` + typeExpr + `)`)
	paramTypeRe    = regexp.MustCompile(`([\w$]+)\s*\??\s*:\s*` + typeExpr)
	exportBareRe   = regexp.MustCompile(`(?m)^[ \t]*export\s+default\s+[A-Za-z_$][\w$]*\s*;?[ \t]*$\n?`)
	exportListRe   = regexp.MustCompile(`(?m)^[ \t]*export\s*\{[^}]*\}\s*(?:from\s+['"][^'"]+['"])?\s*;?[ \t]*$\n?`)
	exportDeclRe   = regexp.MustCompile(`\bexport\s+(?:default\s+)?(const|let|var|function|class|async|enum)\b`)
	exportDefRe    = regexp.MustCompile(`\bexport\s+default\s+`)
	blankRunRe     = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
)

func stripImports(src string) string {
	src = importFromRe.ReplaceAllString(src, "")
	return importBareRe.ReplaceAllString(src, "")
}

func stripTypeDeclarations(src string) string {
	src = stripMatchedBlocks(src, interfaceRe)
	return stripTypeAliases(src)
}

// stripMatchedBlocks removes each match of re, which must end at an opening
// brace, through its balancing close brace and an optional semicolon.
func stripMatchedBlocks(src string, re *regexp.Regexp) string {
	for {
		loc := re.FindStringIndex(src)
		if loc == nil {
			return src
		}
		end := matchBrace(src, loc[1]-1)
		if end < 0 {
			return src
		}
		end = skipStatementEnd(src, end+1)
		src = src[:loc[0]] + src[end:]
	}
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(src string, open int) int {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipStatementEnd(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i < len(src) && src[i] == ';' {
		i++
	}
	if i < len(src) && src[i] == '\n' {
		i++
	}
	return i
}

// stripTypeAliases removes `type X = ...` declarations, following nested
// brackets and union continuation lines to the end of the statement.
func stripTypeAliases(src string) string {
	for {
		loc := typeAliasRe.FindStringIndex(src)
		if loc == nil {
			return src
		}
		end := aliasEnd(src, loc[1])
		src = src[:loc[0]] + src[end:]
	}
}

func aliasEnd(src string, i int) int {
	depth := 0
	for ; i < len(src); i++ {
		switch src[i] {
		case '{', '(', '[', '<':
			depth++
		case '}', ')', ']', '>':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				return skipStatementEnd(src, i+1)
			}
		case '\n':
			if depth == 0 && !continuesType(src[i+1:]) {
				return i + 1
			}
		}
	}
	return len(src)
}

func continuesType(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	return strings.HasPrefix(rest, "|") || strings.HasPrefix(rest, "&")
}

func stripTypedSignatures(src string) string {
	src = fcAnnotationRe.ReplaceAllString(src, "")
	src = hookGenericRe.ReplaceAllString(src, "$1(")
	src = fnGenericRe.ReplaceAllString(src, "function $1(")
	src = asCastRe.ReplaceAllString(src, "$1$2")
	return nonNullRe.ReplaceAllString(src, "$1.")
}

func stripReturnTypes(src string) string {
	return returnTypeRe.ReplaceAllString(src, ") $1")
}

// stripParamTypes removes colon annotations inside parameter lists that are
// followed by an arrow or a body. Lists that look like ternaries are left alone.
func stripParamTypes(src string) string {
	return paramListRe.ReplaceAllStringFunc(src, func(m string) string {
		sub := paramListRe.FindStringSubmatch(m)
		inner, tail := sub[1], sub[2]
		if !strings.Contains(inner, ":") {
			return m
		}
		if strings.Contains(strings.ReplaceAll(inner, "?:", ""), "?") {
			return m
		}
		inner = destructTypeRe.ReplaceAllString(inner, "}")
		inner = paramTypeRe.ReplaceAllString(inner, "$1")
		return "(" + inner + ")" + tail
	})
}

func stripExports(src string) string {
	src = exportBareRe.ReplaceAllString(src, "")
	src = exportListRe.ReplaceAllString(src, "")
	src = exportDeclRe.ReplaceAllString(src, "$1")
	return exportDefRe.ReplaceAllString(src, "")
}

// collapseBlankLines squeezes any run of blank lines to a single one.
func collapseBlankLines(src string) string {
	return blankRunRe.ReplaceAllString(src, "\n\n")
}
