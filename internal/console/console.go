// Package console runs ad-hoc read-only queries against the host and keeps
// the last good result for display and export.
package console

import (
	"context"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"

	"github.com/starford/flashdesk/internal/hostapi"
)

// DisplayLimit caps the rows rendered on screen. Export always includes
// every row.
const DisplayLimit = 200

// Runner executes a query.
type Runner interface {
	Query(ctx context.Context, q string) (*hostapi.QueryResult, error)
}

// View is what the console page renders.
type View struct {
	Query     string
	Columns   []string
	Rows      [][]string
	Total     int
	Truncated bool
	// Notice describes the row count, e.g. "showing 200 of 1,234 rows".
	Notice    string
	ElapsedMS float64
	Err       string
	HasResult bool
}

// Console holds one session's query state.
type Console struct {
	runner Runner
	limit  int

	mu     sync.Mutex
	query  string
	last   *hostapi.QueryResult
	lastQ  string
	errMsg string
}

// New creates a console. limit <= 0 uses DisplayLimit.
func New(r Runner, limit int) *Console {
	if limit <= 0 {
		limit = DisplayLimit
	}
	return &Console{runner: r, limit: limit}
}

// Run executes q. On success the result replaces the previous one; on
// failure the error is recorded and the previous result is kept.
func (c *Console) Run(ctx context.Context, q string) error {
	res, err := c.runner.Query(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	if err != nil {
		c.errMsg = err.Error()
		return err
	}
	c.last = res
	c.lastQ = q
	c.errMsg = ""
	return nil
}

// Result returns the last good result.
func (c *Console) Result() (*hostapi.QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.last != nil
}

// View renders the current state.
func (c *Console) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{Query: c.query, Err: c.errMsg}
	if c.last == nil {
		return v
	}
	v.HasResult = true
	v.Columns = c.last.Columns
	v.ElapsedMS = c.last.ElapsedMS
	v.Total = len(c.last.Rows)
	if c.last.RowCount > v.Total {
		v.Total = c.last.RowCount
	}
	v.Rows = c.last.Rows
	if len(v.Rows) > c.limit {
		v.Rows = v.Rows[:c.limit]
		v.Truncated = true
	}
	v.Notice = Notice(len(v.Rows), v.Total)
	return v
}

// Notice describes how many rows are shown.
func Notice(shown, total int) string {
	if shown >= total {
		return humanize.Comma(int64(total)) + " " + plural(total)
	}
	return "showing " + humanize.Comma(int64(shown)) + " of " + humanize.Comma(int64(total)) + " rows"
}

func plural(n int) string {
	if n == 1 {
		return "row"
	}
	return "rows"
}

// CSV renders a result with a header record. Every row is included.
func CSV(res *hostapi.QueryResult) string {
	var b strings.Builder
	writeRecord(&b, res.Columns)
	for _, row := range res.Rows {
		writeRecord(&b, row)
	}
	return b.String()
}

func writeRecord(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeCSV(cell))
	}
	b.WriteByte('\n')
}

// EscapeCSV quotes a cell containing a comma, quote, CR or LF and doubles
// its internal quotes. Other cells are written verbatim.
func EscapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// clipboardWrite is replaced in tests.
var clipboardWrite = clipboard.WriteAll

// CopyCSV puts the CSV export of res on the system clipboard.
func CopyCSV(res *hostapi.QueryResult) error {
	return clipboardWrite(CSV(res))
}
