// Package table turns fetched items into the rows and columns of one page.
package table

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/flashdesk/internal/models"
)

// CellWidth is the maximum number of display cells in a field column.
const CellWidth = 80

// Column kinds.
const (
	ColField    = "field"
	ColDeck     = "deck"
	ColTags     = "tags"
	ColFlag     = "flag"
	ColStatus   = "status"
	ColInterval = "interval"
)

// Column is one table column.
type Column struct {
	ID      string
	Label   string
	Kind    string
	Visible bool
}

// Row is one rendered row.
type Row struct {
	ID       int64
	Kind     models.Kind
	Cells    []string
	Flag     models.Flag
	Selected bool
}

// Page is one window of rows.
type Page struct {
	Columns  []Column
	Rows     []Row
	Page     int
	Pages    int
	PageSize int
	Total    int
	// First and Last are the 1-based positions of the shown rows.
	First int
	Last  int
}

var (
	strict    = bluemonday.StrictPolicy()
	titleCase = cases.Title(language.English)
)

// StripHTML removes markup, unescapes entities and collapses whitespace.
func StripHTML(s string) string {
	s = strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ", "<div>", " ").Replace(s)
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// CellText renders a field value for display.
func CellText(s string) string {
	return truncate.StringWithTail(StripHTML(s), CellWidth, "…")
}

// Columns returns the column set for the model fields and view mode.
// Visibility comes from vis; columns missing from vis use the default.
func Columns(fields []string, mode models.ViewMode, vis map[string]bool) []Column {
	def := DefaultVisibility(fields)
	cols := make([]Column, 0, len(fields)+5)
	add := func(id, label, kind string) {
		visible, ok := vis[id]
		if !ok {
			visible = def[id]
		}
		cols = append(cols, Column{ID: id, Label: label, Kind: kind, Visible: visible})
	}
	for _, f := range fields {
		add(f, f, ColField)
	}
	add(ColDeck, "Deck", ColDeck)
	add(ColTags, "Tags", ColTags)
	switch mode {
	case models.ModeCards:
		add(ColFlag, "Flag", ColFlag)
		add(ColStatus, "Status", ColStatus)
		add(ColInterval, "Interval", ColInterval)
	case models.ModeNotes:
	}
	return cols
}

// DefaultVisibility shows the first three fields and the deck.
func DefaultVisibility(fields []string) map[string]bool {
	vis := make(map[string]bool, len(fields)+5)
	for i, f := range fields {
		vis[f] = i < 3
	}
	vis[ColDeck] = true
	vis[ColTags] = false
	vis[ColFlag] = false
	vis[ColStatus] = false
	vis[ColInterval] = false
	return vis
}

// Toggle returns the full visibility map with column id flipped. The whole
// map is returned so it can be stored as one preference value.
func Toggle(cols []Column, id string) map[string]bool {
	vis := VisibilityOf(cols)
	if v, ok := vis[id]; ok {
		vis[id] = !v
	}
	return vis
}

// VisibilityOf extracts the visibility map of cols.
func VisibilityOf(cols []Column) map[string]bool {
	vis := make(map[string]bool, len(cols))
	for _, c := range cols {
		vis[c.ID] = c.Visible
	}
	return vis
}

// Interval renders a card interval in days.
func Interval(days int) string {
	if days <= 0 {
		return "-"
	}
	return strconv.Itoa(days) + "d"
}

// Status renders a card queue.
func Status(q models.Queue) string {
	return titleCase.String(q.String())
}

func cell(col Column, it models.Item) string {
	switch col.Kind {
	case ColField:
		return CellText(it.Note.Field(col.ID))
	case ColDeck:
		return it.Deck
	case ColTags:
		return strings.Join(it.Note.Tags, " ")
	}
	switch it.Kind {
	case models.KindCard:
		switch col.Kind {
		case ColFlag:
			if it.Card.Flag == 0 {
				return ""
			}
			return it.Card.Flag.String()
		case ColStatus:
			return Status(it.Card.Queue)
		case ColInterval:
			return Interval(it.Card.Interval)
		}
	case models.KindNote:
	}
	return ""
}

// Paginate returns the [start, end) slice bounds for a 1-based page, the
// clamped page number and the page count. There is always at least one
// page, even with no items.
func Paginate(total, page, size int) (start, end, clamped, pages int) {
	if size <= 0 {
		size = 1
	}
	pages = (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	clamped = min(max(page, 1), pages)
	start = min((clamped-1)*size, total)
	end = min(start+size, total)
	return start, end, clamped, pages
}

// Build renders one page of items. Only visible columns produce cells.
func Build(items []models.Item, cols []Column, page, size int, selected int64) Page {
	start, end, clamped, pages := Paginate(len(items), page, size)
	visible := make([]Column, 0, len(cols))
	for _, c := range cols {
		if c.Visible {
			visible = append(visible, c)
		}
	}

	rows := make([]Row, 0, end-start)
	for _, it := range items[start:end] {
		r := Row{ID: it.ID(), Kind: it.Kind, Selected: selected != 0 && it.ID() == selected}
		if it.Kind == models.KindCard {
			r.Flag = it.Card.Flag
		}
		r.Cells = make([]string, len(visible))
		for i, c := range visible {
			r.Cells[i] = cell(c, it)
		}
		rows = append(rows, r)
	}

	p := Page{
		Columns:  visible,
		Rows:     rows,
		Page:     clamped,
		Pages:    pages,
		PageSize: size,
		Total:    len(items),
	}
	if end > start {
		p.First, p.Last = start+1, end
	}
	return p
}
