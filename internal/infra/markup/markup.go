// Package markup converts rendered message markup to plain text.
package markup

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Stripper removes tags and decodes entities
type Stripper struct {
	policy *bluemonday.Policy
}

// NewStripper creates a stripper that keeps no markup at all
func NewStripper() *Stripper {
	return &Stripper{policy: bluemonday.StrictPolicy()}
}

// Strip returns the visible text of s.
func (s *Stripper) Strip(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.TrimSpace(text)
	}
	// keep paragraph breaks that are only expressed as tags
	text = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "</p>\n").Replace(text)
	out := html.UnescapeString(s.policy.Sanitize(text))
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
