// Package viewstate derives the browse view from URL query parameters and
// encodes it back. The URL is the only source of truth for what is shown.
package viewstate

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/search"
)

// PageSizes lists the page sizes offered by the pager.
var PageSizes = []int{10, 25, 50, 100}

// NoFlag means no flag filter is applied.
const NoFlag = -1

// Query parameter names.
const (
	ParamModel    = "model"
	ParamMode     = "mode"
	ParamPage     = "page"
	ParamPageSize = "size"
	ParamSearch   = "q"
	ParamFlag     = "flag"
	// ParamFrom carries the model a submitted toolbar was showing. It is
	// never encoded back into URLs.
	ParamFrom = "from"
)

// Defaults supply the values used when a parameter is absent or invalid.
type Defaults struct {
	Model    string
	PageSize int
}

// State is the browse view. Page is 1-based.
type State struct {
	Model    string
	Mode     models.ViewMode
	Page     int
	PageSize int
	Search   string
	Flag     int

	defaults Defaults
}

func (d Defaults) pageSize() int {
	if slices.Contains(PageSizes, d.PageSize) {
		return d.PageSize
	}
	return PageSizes[1]
}

// Default returns the state shown for an empty query string.
func Default(d Defaults) State {
	return State{
		Model:    d.Model,
		Mode:     models.ModeNotes,
		Page:     1,
		PageSize: d.pageSize(),
		Flag:     NoFlag,
		defaults: d,
	}
}

// Parse reads a State from query values. It never fails; anything invalid
// falls back to its default.
func Parse(v url.Values, d Defaults) State {
	s := Default(d)

	if m := strings.TrimSpace(v.Get(ParamModel)); m != "" {
		s.Model = m
	}
	if mode, err := models.ParseViewMode(v.Get(ParamMode)); err == nil {
		s.Mode = mode
	}
	if p, err := strconv.Atoi(v.Get(ParamPage)); err == nil {
		s.Page = max(p, 1)
	}
	if n, err := strconv.Atoi(v.Get(ParamPageSize)); err == nil && slices.Contains(PageSizes, n) {
		s.PageSize = n
	}
	s.Search = strings.TrimSpace(v.Get(ParamSearch))
	if f, err := strconv.Atoi(v.Get(ParamFlag)); err == nil && models.Flag(f).Valid() {
		s.Flag = f
	}
	return s
}

// Resolve is Parse for a toolbar submission. When the submitted model
// differs from the ParamFrom model the switch goes through WithModel, so the
// page, page size and search of the previous model are dropped. switched
// reports whether that happened.
func Resolve(v url.Values, d Defaults) (st State, switched bool) {
	st = Parse(v, d)
	from := strings.TrimSpace(v.Get(ParamFrom))
	if from == "" || from == st.Model {
		return st, false
	}
	return st.WithModel(st.Model), true
}

// Values encodes only the parameters that differ from their defaults.
func (s State) Values() url.Values {
	v := url.Values{}
	if s.Model != "" && s.Model != s.defaults.Model {
		v.Set(ParamModel, s.Model)
	}
	if s.Mode != models.ModeNotes && s.Mode != "" {
		v.Set(ParamMode, string(s.Mode))
	}
	if s.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(s.Page))
	}
	if s.PageSize != s.defaults.pageSize() {
		v.Set(ParamPageSize, strconv.Itoa(s.PageSize))
	}
	if s.Search != "" {
		v.Set(ParamSearch, s.Search)
	}
	if s.Flag != NoFlag {
		v.Set(ParamFlag, strconv.Itoa(s.Flag))
	}
	return v
}

// Query returns the encoded query string (sorted by key).
func (s State) Query() string {
	return s.Values().Encode()
}

// URL returns path with the state's query string attached.
func (s State) URL(path string) string {
	if q := s.Query(); q != "" {
		return path + "?" + q
	}
	return path
}

// WithModel switches model and resets page, page size and search.
func (s State) WithModel(model string) State {
	s.Model = model
	s.Page = 1
	s.PageSize = s.defaults.pageSize()
	s.Search = ""
	return s
}

// WithMode switches between notes and cards.
func (s State) WithMode(mode models.ViewMode) State {
	s.Mode = mode
	s.Page = 1
	return s
}

// WithSearch replaces the search text.
func (s State) WithSearch(q string) State {
	s.Search = strings.TrimSpace(q)
	s.Page = 1
	return s
}

// WithFlag sets the flag filter; NoFlag clears it.
func (s State) WithFlag(flag int) State {
	if flag != NoFlag && !models.Flag(flag).Valid() {
		flag = NoFlag
	}
	s.Flag = flag
	s.Page = 1
	return s
}

// WithPageSize changes the page size. Unknown sizes are ignored.
func (s State) WithPageSize(n int) State {
	if !slices.Contains(PageSizes, n) {
		return s
	}
	s.PageSize = n
	s.Page = 1
	return s
}

// WithPage moves to page p (at least 1).
func (s State) WithPage(p int) State {
	s.Page = max(p, 1)
	return s
}

// EffectiveSearch is the search string the host receives.
func (s State) EffectiveSearch() string {
	return search.WithFlag(search.Normalize(s.Search), s.Flag)
}

// Key identifies the data this state needs, ignoring pagination.
func (s State) Key() string {
	return s.Model + "|" + string(s.Mode) + "|" + s.EffectiveSearch()
}
