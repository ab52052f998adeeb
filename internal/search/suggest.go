package search

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
)

// DefaultSuggestLimit caps the number of suggestions returned.
const DefaultSuggestLimit = 8

var stateTokens = []string{"is:new", "is:learn", "is:review", "is:suspended", "is:due"}

// Vocabulary is the set of names suggestions are drawn from.
type Vocabulary struct {
	Decks  []string
	Models []string
	Tags   []string
}

// Tokens expands the vocabulary into complete search tokens.
func (v Vocabulary) Tokens() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tok string) {
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for _, d := range v.Decks {
		add("deck:" + Quote(d))
	}
	for _, m := range v.Models {
		add("note:" + Quote(m))
	}
	tags := append([]string(nil), v.Tags...)
	sort.Strings(tags)
	for _, t := range tags {
		add("tag:" + t)
	}
	for f := 0; f <= 7; f++ {
		add("flag:" + strconv.Itoa(f))
	}
	for _, s := range stateTokens {
		add(s)
	}
	return out
}

// Suggestion is a completed search string.
type Suggestion struct {
	Token string `json:"token"`
	Query string `json:"query"`
}

// Suggest fuzzy-matches the last token of input against the vocabulary and
// returns input with that token replaced, best match first.
func Suggest(input string, vocab Vocabulary, limit int) []Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	prefix, last := splitLast(input)
	if last == "" {
		return nil
	}
	tokens := vocab.Tokens()
	matches := fuzzy.Find(last, tokens)
	out := make([]Suggestion, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		tok := tokens[m.Index]
		if tok == last {
			continue
		}
		out = append(out, Suggestion{Token: tok, Query: prefix + tok})
	}
	return out
}

// splitLast separates the final whitespace-delimited token from the rest.
// A trailing space means the user has not started a new token yet.
func splitLast(input string) (string, string) {
	if input == "" || strings.HasSuffix(input, " ") {
		return input, ""
	}
	i := strings.LastIndexAny(input, " \t")
	if i < 0 {
		return "", input
	}
	return input[:i+1], input[i+1:]
}
