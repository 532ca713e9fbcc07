package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultDirectiveMarker prefixes directive tokens in message text
const DefaultDirectiveMarker = "!"

// Command is a message split into its directives and the remaining text
type Command struct {
	// Directives are lowercased keywords without the marker, in message order
	Directives []string
	// Text is the message with mentions and directive tokens removed
	Text string
}

// Has reports whether the directive was given.
func (c Command) Has(directive string) bool {
	for _, d := range c.Directives {
		if d == directive {
			return true
		}
	}
	return false
}

// CommandParser extracts directives and bot mentions from message text
type CommandParser struct {
	marker  string
	mention *regexp.Regexp
}

// NewCommandParser creates a parser for the given marker. A mention of any
// of the bot names addresses the bot.
func NewCommandParser(marker string, botNames ...string) *CommandParser {
	if marker == "" {
		marker = DefaultDirectiveMarker
	}
	p := &CommandParser{marker: marker}

	var names []string
	seen := make(map[string]bool)
	for _, name := range botNames {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		names = append(names, regexp.QuoteMeta(name))
	}
	if len(names) > 0 {
		// longest first so "GPT Helper" wins over "GPT"
		sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
		q := "(?:" + strings.Join(names, "|") + ")"
		p.mention = regexp.MustCompile(`(?i)(^|\s)(?:@\*\*` + q + `\*\*|@` + q + `|/` + q + `)(\s|[,:;.?，：；。？]|$)`)
	}
	return p
}

// Marker returns the directive marker.
func (p *CommandParser) Marker() string {
	return p.marker
}

// Parse strips mentions and directive tokens from raw.
func (p *CommandParser) Parse(raw string) Command {
	text := p.StripMentions(raw)

	var (
		directives []string
		b          strings.Builder
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			b.WriteRune(r)
			i += size
			continue
		}
		end := i
		for end < len(text) {
			r, size := utf8.DecodeRuneInString(text[end:])
			if unicode.IsSpace(r) {
				break
			}
			end += size
		}
		token := text[i:end]
		if keyword, ok := p.directive(token); ok {
			directives = append(directives, keyword)
			// drop one trailing space with the token
			if end < len(text) {
				_, size := utf8.DecodeRuneInString(text[end:])
				end += size
			}
		} else {
			b.WriteString(token)
		}
		i = end
	}

	return Command{Directives: directives, Text: strings.TrimSpace(b.String())}
}

// After returns the text following the first occurrence of the directive
// keyword, mentions removed but otherwise verbatim, so later tokens that
// look like directives are kept.
func (p *CommandParser) After(raw, keyword string) (string, bool) {
	text := p.StripMentions(raw)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		end := len(text)
		if n := strings.IndexFunc(text[i:], unicode.IsSpace); n >= 0 {
			end = i + n
		}
		if k, ok := p.directive(text[i:end]); ok && k == keyword {
			return strings.TrimSpace(text[end:]), true
		}
		i = end
	}
	return "", false
}

// StartsFresh reports whether text opens with the new-conversation directive.
func (p *CommandParser) StartsFresh(text string) bool {
	fields := strings.Fields(p.StripMentions(text))
	if len(fields) == 0 {
		return false
	}
	keyword, ok := p.directive(fields[0])
	return ok && keyword == DirectiveNew
}

// Mentions reports whether raw addresses the bot by name or slash command.
func (p *CommandParser) Mentions(raw string) bool {
	return p.mention != nil && p.mention.MatchString(raw)
}

// StripMentions removes every bot mention from text.
func (p *CommandParser) StripMentions(text string) string {
	if p.mention == nil {
		return text
	}
	// adjacent mentions share whitespace, so repeat until stable
	for {
		next := p.mention.ReplaceAllString(text, "$1")
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
}

func (p *CommandParser) directive(token string) (string, bool) {
	if !strings.HasPrefix(token, p.marker) || len(token) == len(p.marker) {
		return "", false
	}
	return strings.ToLower(token[len(p.marker):]), true
}
