package render

import "regexp"

// inputPatterns lists known standard-input APIs per language tag.
var inputPatterns = map[string][]*regexp.Regexp{
	"python": {
		regexp.MustCompile(`\binput\s*\(`),
		regexp.MustCompile(`\bsys\.stdin\b`),
	},
	"c": {
		regexp.MustCompile(`\b(?:scanf|getchar|fgets|gets|getline)\s*\(`),
	},
	"cpp": {
		regexp.MustCompile(`\b(?:std::)?cin\s*>>`),
		regexp.MustCompile(`\b(?:std::)?getline\s*\(`),
		regexp.MustCompile(`\b(?:scanf|getchar|fgets)\s*\(`),
	},
	"java": {
		regexp.MustCompile(`new\s+Scanner\s*\(\s*System\.in\s*\)`),
		regexp.MustCompile(`\bSystem\.in\b`),
		regexp.MustCompile(`\bBufferedReader\b`),
	},
	"javascript": {
		regexp.MustCompile(`\bprocess\.stdin\b`),
		regexp.MustCompile(`\breadline\b`),
		regexp.MustCompile(`\bprompt\s*\(`),
	},
	"php": {
		regexp.MustCompile(`\bSTDIN\b`),
		regexp.MustCompile(`\breadline\s*\(`),
		regexp.MustCompile(`php://stdin`),
	},
	"ruby": {
		regexp.MustCompile(`\bgets\b`),
		regexp.MustCompile(`\bSTDIN\b|\$stdin\b`),
	},
	"go": {
		regexp.MustCompile(`\bos\.Stdin\b`),
		regexp.MustCompile(`\bfmt\.Scan(?:f|ln)?\s*\(`),
	},
	"rust": {
		regexp.MustCompile(`\bstdin\s*\(\s*\)`),
		regexp.MustCompile(`\bread_line\s*\(`),
	},
	"csharp": {
		regexp.MustCompile(`\bConsole\.(?:ReadLine|Read|ReadKey)\s*\(`),
	},
	"swift": {
		regexp.MustCompile(`\breadLine\s*\(`),
	},
	"kotlin": {
		regexp.MustCompile(`\breadLine\s*\(`),
		regexp.MustCompile(`\breadln(?:OrNull)?\s*\(`),
		regexp.MustCompile(`Scanner\s*\(\s*System\.` + "`in`" + `\s*\)`),
	},
}

var languageAliases = map[string]string{
	"c++": "cpp", "js": "javascript", "ts": "javascript", "typescript": "javascript",
}

// NeedsInput reports whether source appears to read standard input, so the
// execution panel can show its input box before the first run.
func NeedsInput(language, source string) bool {
	lang := NormalizeLanguage(language)
	if alias, ok := languageAliases[lang]; ok {
		lang = alias
	}
	for _, re := range inputPatterns[lang] {
		if re.MatchString(source) {
			return true
		}
	}
	return false
}
