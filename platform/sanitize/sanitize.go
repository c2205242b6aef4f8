// Package sanitize provides text sanitization for provider-supplied metadata
// that is stored in clear text next to a sealed body.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// StripHTML removes all HTML tags from a string.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	// entities may have decoded into new tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Line strips markup, collapses whitespace and truncates to max runes.
// Used for email subjects and thread references kept in touch-event meta.
func Line(s string, max int) string {
	result := whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
	if max > 0 && utf8.RuneCountInString(result) > max {
		runes := []rune(result)
		result = strings.TrimSpace(string(runes[:max]))
	}
	return result
}
