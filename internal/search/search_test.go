package search

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"is:suspend flag:1", "is:suspended flag:1"},
		{"is:suspended", "is:suspended"},
		{"-is:suspend deck:Default", "-is:suspended deck:Default"},
		{"  front:cat   is:suspend ", "front:cat is:suspended"},
		{"is:suspender", "is:suspender"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWithFlag(t *testing.T) {
	if got := WithFlag("", -1); got != "" {
		t.Errorf("no filter = %q", got)
	}
	if got := WithFlag("", 0); got != "flag:0" {
		t.Errorf("empty query = %q", got)
	}
	if got := WithFlag("deck:x", 3); got != "deck:x flag:3" {
		t.Errorf("with query = %q", got)
	}
}

func TestSuggest_ReplacesLastToken(t *testing.T) {
	vocab := Vocabulary{Decks: []string{"Japanese Core", "Default"}, Tags: []string{"verbs"}}
	got := Suggest("flag:1 dejap", vocab, 3)
	if len(got) == 0 {
		t.Fatal("expected suggestions")
	}
	if got[0].Token != `deck:"Japanese Core"` {
		t.Errorf("best token = %q", got[0].Token)
	}
	if !strings.HasPrefix(got[0].Query, "flag:1 ") {
		t.Errorf("query lost prefix: %q", got[0].Query)
	}
}

func TestSuggest_EmptyLastToken(t *testing.T) {
	if got := Suggest("tag:x ", Vocabulary{}, 5); got != nil {
		t.Errorf("expected no suggestions, got %v", got)
	}
	if got := Suggest("", Vocabulary{}, 5); got != nil {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSuggest_Limit(t *testing.T) {
	got := Suggest("flag", Vocabulary{}, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestSuggest_SkipsExactToken(t *testing.T) {
	for _, s := range Suggest("is:due", Vocabulary{}, 10) {
		if s.Token == "is:due" {
			t.Error("exact token should not be suggested back")
		}
	}
}
