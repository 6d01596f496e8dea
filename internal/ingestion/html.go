package ingestion

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlWhitespace = regexp.MustCompile(`\s+`)

// CleanHTML strips markup from an uploaded HTML document, returning a
// title and the plain body text suitable for storage and scoring.
func CleanHTML(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	body := doc.Find("body")
	var text string
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}
	text = strings.TrimSpace(htmlWhitespace.ReplaceAllString(text, " "))

	if text == "" {
		return "", "", fmt.Errorf("document has no text content")
	}

	return title, text, nil
}
