package console

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/testutil"
)

func TestEscapeCSV(t *testing.T) {
	cases := map[string]string{
		`a,b"c`:   `"a,b""c"`,
		"plain":   "plain",
		"":        "",
		"line\nx": "\"line\nx\"",
		"cr\r":    "\"cr\r\"",
		`"q"`:     `"""q"""`,
		" space ": " space ",
	}
	for in, want := range cases {
		if got := EscapeCSV(in); got != want {
			t.Errorf("EscapeCSV(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCSV(t *testing.T) {
	res := &hostapi.QueryResult{
		Columns: []string{"id", "front"},
		Rows:    [][]string{{"1", `a,b"c`}, {"2", "plain"}},
	}
	want := "id,front\n1,\"a,b\"\"c\"\n2,plain\n"
	if got := CSV(res); got != want {
		t.Errorf("csv = %q, want %q", got, want)
	}
}

type runnerFunc func(ctx context.Context, q string) (*hostapi.QueryResult, error)

func (f runnerFunc) Query(ctx context.Context, q string) (*hostapi.QueryResult, error) {
	return f(ctx, q)
}

func TestRun_FailureKeepsLastResult(t *testing.T) {
	ok := &hostapi.QueryResult{Columns: []string{"n"}, Rows: [][]string{{"1"}}, RowCount: 1}
	c := New(runnerFunc(func(_ context.Context, q string) (*hostapi.QueryResult, error) {
		if q == "bad" {
			return nil, errors.New("syntax error near bad")
		}
		return ok, nil
	}), 0)

	if err := c.Run(context.Background(), "select 1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(context.Background(), "bad"); err == nil {
		t.Fatal("expected error")
	}
	v := c.View()
	if v.Err != "syntax error near bad" {
		t.Errorf("err = %q", v.Err)
	}
	if !v.HasResult || len(v.Rows) != 1 || v.Rows[0][0] != "1" {
		t.Errorf("previous result lost: %+v", v)
	}
	if v.Query != "bad" {
		t.Errorf("query = %q", v.Query)
	}

	if err := c.Run(context.Background(), "select 1"); err != nil {
		t.Fatal(err)
	}
	if c.View().Err != "" {
		t.Error("success should clear the error")
	}
}

func TestView_CapsDisplayedRows(t *testing.T) {
	rows := make([][]string, 1234)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i)}
	}
	res := &hostapi.QueryResult{Columns: []string{"i"}, Rows: rows, RowCount: len(rows)}
	c := New(runnerFunc(func(context.Context, string) (*hostapi.QueryResult, error) { return res, nil }), 0)
	if err := c.Run(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	v := c.View()
	if len(v.Rows) != DisplayLimit || !v.Truncated || v.Total != 1234 {
		t.Errorf("rows=%d truncated=%v total=%d", len(v.Rows), v.Truncated, v.Total)
	}
	if v.Notice != "showing 200 of 1,234 rows" {
		t.Errorf("notice = %q", v.Notice)
	}
	last, _ := c.Result()
	if got := len(CSV(last)); got == 0 {
		t.Fatal("empty export")
	}
}

func TestNotice(t *testing.T) {
	if got := Notice(1, 1); got != "1 row" {
		t.Errorf("notice = %q", got)
	}
	if got := Notice(0, 0); got != "0 rows" {
		t.Errorf("notice = %q", got)
	}
}

func TestCopyCSV(t *testing.T) {
	var copied string
	orig := clipboardWrite
	clipboardWrite = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { clipboardWrite = orig })

	if err := CopyCSV(&hostapi.QueryResult{Columns: []string{"a"}, Rows: [][]string{{"x,y"}}}); err != nil {
		t.Fatal(err)
	}
	if copied != "a\n\"x,y\"\n" {
		t.Errorf("copied = %q", copied)
	}
}

func TestRunAgainstHost(t *testing.T) {
	fake := testutil.NewFakeHost(t)
	fake.Seed("Basic", "Default", map[string]string{"Front": "Q1"})
	c := New(hostapi.NewClient(fake.URL()), 0)
	if err := c.Run(context.Background(), "select id, model from notes"); err != nil {
		t.Fatal(err)
	}
	v := c.View()
	if len(v.Columns) != 2 || len(v.Rows) != 1 || v.Rows[0][1] != "Basic" {
		t.Errorf("view = %+v", v)
	}
}
