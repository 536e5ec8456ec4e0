package api

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxSummaryLength = 200

// summarize produces a one-line description of an error response body.
// HTML error pages (proxy errors, framework debug pages) are reduced to their title or first heading.
func summarize(res *response) string {
	if strings.Contains(res.contentType, "html") || looksLikeHTML(res.body) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.body)); err == nil {
			if title := htmlSummary(doc); title != "" {
				return title
			}
		}
	}

	text := strings.Join(strings.Fields(string(res.body)), " ")
	if text == "" {
		return http.StatusText(res.status)
	}
	if runes := []rune(text); len(runes) > maxSummaryLength {
		text = string(runes[:maxSummaryLength]) + "..."
	}
	return text
}

func htmlSummary(doc *goquery.Document) string {
	for _, selector := range []string{"title", "h1"} {
		text := strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
		if text != "" {
			return text
		}
	}
	return ""
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.ToLower(bytes.TrimSpace(body))
	return bytes.HasPrefix(trimmed, []byte("<!doctype html")) || bytes.HasPrefix(trimmed, []byte("<html"))
}
