// Package search normalises search strings for the host and suggests completions.
package search

import (
	"strconv"
	"strings"
)

// aliases maps shorthand tokens the host does not understand to their canonical form.
var aliases = map[string]string{
	"is:suspend": "is:suspended",
}

// Normalize rewrites known shorthand tokens and collapses whitespace.
// Negated tokens ("-is:suspend") are rewritten too.
func Normalize(q string) string {
	tokens := strings.Fields(q)
	for i, tok := range tokens {
		neg := ""
		body := tok
		if strings.HasPrefix(body, "-") {
			neg, body = "-", body[1:]
		}
		if canon, ok := aliases[strings.ToLower(body)]; ok {
			tokens[i] = neg + canon
		}
	}
	return strings.Join(tokens, " ")
}

// WithFlag appends a flag filter token. A negative flag means no filter.
func WithFlag(q string, flag int) string {
	if flag < 0 {
		return q
	}
	tok := "flag:" + strconv.Itoa(flag)
	if q == "" {
		return tok
	}
	return q + " " + tok
}

// Quote wraps a value in double quotes when it contains whitespace.
func Quote(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
