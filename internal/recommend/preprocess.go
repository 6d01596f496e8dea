package recommend

import (
	"regexp"
	"sort"
	"strings"
)

// Workplace shorthand expanded before vectorization so that queries
// like "hr policy" match documents titled "Human Resources Policy".
var abbreviations = map[string]string{
	"hr":   "human resources",
	"it":   "information technology",
	"dev":  "development",
	"mgmt": "management",
	"eng":  "engineering",
	"pm":   "project management",
	"qa":   "quality assurance",
	"q1":   "quarter one",
	"q2":   "quarter two",
	"q3":   "quarter three",
	"q4":   "quarter four",
}

var (
	strippedChars = regexp.MustCompile(`[^\w\s.-]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)

	abbreviationPatterns = compileAbbreviations()
)

type abbreviationPattern struct {
	pattern     *regexp.Regexp
	replacement string
}

func compileAbbreviations() []abbreviationPattern {
	keys := make([]string, 0, len(abbreviations))
	for k := range abbreviations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patterns := make([]abbreviationPattern, 0, len(keys))
	for _, k := range keys {
		patterns = append(patterns, abbreviationPattern{
			pattern:     regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`),
			replacement: abbreviations[k],
		})
	}
	return patterns
}

// Normalize lowercases, strips characters outside word characters,
// whitespace, hyphen, and period, expands whole-word abbreviations,
// and collapses whitespace runs.
func Normalize(text string) string {
	normalized := strings.ToLower(text)
	normalized = strippedChars.ReplaceAllString(normalized, " ")

	for _, abbr := range abbreviationPatterns {
		normalized = abbr.pattern.ReplaceAllString(normalized, abbr.replacement)
	}

	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// wordSet returns the distinct tokens of normalized text, with
// token-trailing periods removed.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(Normalize(text)) {
		word = strings.Trim(word, ".-")
		if word != "" {
			set[word] = true
		}
	}
	return set
}
