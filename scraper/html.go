package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var spaceRegex = regexp.MustCompile(`\s+`)

// CleanDescription strips markup from a listing description and collapses
// whitespace. Plain text passes through unchanged apart from spacing.
func CleanDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		return spaceRegex.ReplaceAllString(raw, " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return spaceRegex.ReplaceAllString(raw, " ")
	}

	doc.Find("script, style").Remove()
	// keep paragraph and line breaks from running words together
	doc.Find("br, p, li, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	text := doc.Text()
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}
