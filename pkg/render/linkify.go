package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// trailing punctuation that usually belongs to the sentence, not the link
const trailingPunct = ".,;:!?)]}'"

// Sanitizer turns post text into safe HTML
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer on bluemonday's UGC policy.
// Links get rel=nofollow and target=_blank.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.AllowURLSchemes("http", "https")

	return &Sanitizer{policy: p}
}

// TextToHTML escapes text, turns bare URLs into links and sanitizes the result
func (s *Sanitizer) TextToHTML(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(linkify(text)))
}

func linkify(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		for end > start && strings.ContainsRune(trailingPunct, rune(text[end-1])) {
			end--
		}
		b.WriteString(html.EscapeString(text[last:start]))
		u := html.EscapeString(text[start:end])
		b.WriteString(`<a href="` + u + `">` + u + `</a>`)
		last = end
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}
