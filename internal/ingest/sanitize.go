// Package ingest normalizes scraped postings and upserts them into the shared
// job pool.
package ingest

import (
	"html"
	"log"
	"strings"

	"github.com/jonathan/job-autopilot/internal/fetch"
)

// maxDescriptionRunes bounds stored descriptions.
const maxDescriptionRunes = 20000

// Sanitize strips markup and entities from free text. Line breaks between
// paragraphs survive; runs of spaces collapse.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	if fetch.LooksLikeHTML(text) {
		plain, err := fetch.HTMLToText(text)
		if err == nil {
			return truncateRunes(plain, maxDescriptionRunes)
		}
		log.Printf("[ingest] failed to parse markup, falling back to entity decoding: %v", err)
	}

	text = html.UnescapeString(text)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var kept []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return truncateRunes(strings.Join(kept, "\n"), maxDescriptionRunes)
}

// SanitizeLine sanitizes text and flattens it to a single line, for titles,
// company names and locations.
func SanitizeLine(text string) string {
	return strings.Join(strings.Fields(Sanitize(text)), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
