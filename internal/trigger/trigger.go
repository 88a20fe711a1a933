package trigger

import (
	"regexp"
	"strings"
)

// \s is ASCII-only in RE2; \p{Z} keeps NBSP and other Unicode separators.
var punct = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}\x{85}]+`)

// Matcher decides whether an unsolicited group message addresses the bot.
type Matcher struct {
	triggers []string
}

func New(triggers []string) *Matcher {
	m := &Matcher{}
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			m.triggers = append(m.triggers, t)
		}
	}
	return m
}

// Normalize lowercases text, strips punctuation and returns whitespace-separated tokens.
func Normalize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Fields(punct.ReplaceAllString(strings.ToLower(text), ""))
}

// Matches reports whether any token of the normalized text contains a trigger.
func (m *Matcher) Matches(text string) bool {
	if m == nil || len(m.triggers) == 0 {
		return false
	}
	for _, tok := range Normalize(text) {
		for _, t := range m.triggers {
			if strings.Contains(tok, t) {
				return true
			}
		}
	}
	return false
}

// IsQuestion reports whether the trimmed text ends with a question mark.
func IsQuestion(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), "?")
}

// IsYesNo reports whether text is a question containing one of the yes/no marker phrases.
// Markers are compared against the normalized text, so punctuation inside them is ignored.
func IsYesNo(text string, markers []string) bool {
	if !IsQuestion(text) {
		return false
	}
	padded := " " + strings.Join(Normalize(text), " ") + " "
	for _, mk := range markers {
		norm := strings.Join(Normalize(mk), " ")
		if norm == "" {
			continue
		}
		if strings.Contains(padded, " "+norm+" ") {
			return true
		}
	}
	return false
}
