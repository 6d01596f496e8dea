package recommend

import (
	"fmt"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// explain builds the advisory explanation string from the source label
// and score band, naming up to two salient terms from recent queries.
func explain(source string, score float64, recentQueries []string) string {
	terms := salientTerms(recentQueries, 2)

	switch {
	case score > 0.7:
		if len(terms) > 0 {
			return fmt.Sprintf("Highly relevant %s document matching your searches about %s", source, strings.Join(terms, " and "))
		}
		return fmt.Sprintf("Highly relevant %s document matching your recent searches", source)
	case score > 0.4:
		if len(terms) > 0 {
			return fmt.Sprintf("Related %s document, touches on %s", source, strings.Join(terms, " and "))
		}
		return fmt.Sprintf("Related %s document based on your search history", source)
	case score > 0.2:
		return fmt.Sprintf("%s document with some overlap with your interests", source)
	default:
		return fmt.Sprintf("%s document you may want to explore", source)
	}
}

func explainDiversity(source string) string {
	return fmt.Sprintf("Exploring content from %s", source)
}

func explainFallback(source string) string {
	return fmt.Sprintf("Recently added %s document", source)
}

// salientTerms picks up to limit notable words from the recent queries,
// preferring nouns when the tagger succeeds and falling back to a plain
// length filter. Order follows query order, deduplicated.
func salientTerms(recentQueries []string, limit int) []string {
	text := strings.Join(recentQueries, " ")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := map[string]bool{}
	var terms []string

	add := func(word string) bool {
		word = strings.ToLower(strings.Trim(word, ".,?!\"'"))
		if len(word) <= 4 || seen[word] {
			return len(terms) < limit
		}
		seen[word] = true
		terms = append(terms, word)
		return len(terms) < limit
	}

	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithSegmentation(false))
	if err == nil {
		for _, tok := range doc.Tokens() {
			if strings.HasPrefix(tok.Tag, "NN") {
				if !add(tok.Text) {
					return terms
				}
			}
		}
	}

	for _, word := range strings.Fields(text) {
		if !add(word) {
			return terms
		}
	}

	return terms
}
