package telegram

import (
	"net/url"
	"regexp"
	"strings"
)

var inlineMath = regexp.MustCompile(`\$\$?([^$]+)\$\$?`)

// mathFormula finds a formula in an answer. Answers with a backslash or a
// dollar sign count as math; the first $...$ span wins, otherwise the whole
// answer is used.
func mathFormula(answer string) (string, bool) {
	if !strings.ContainsAny(answer, `\$`) {
		return "", false
	}
	if m := inlineMath.FindStringSubmatch(answer); m != nil {
		if f := strings.TrimSpace(m[1]); f != "" {
			return f, true
		}
	}
	f := strings.TrimSpace(strings.ReplaceAll(answer, "$", ""))
	return f, f != ""
}

func renderURL(base, formula string) string {
	return base + url.PathEscape(formula)
}
