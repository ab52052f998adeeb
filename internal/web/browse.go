package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flashdesk/internal/apperr"
	"github.com/starford/flashdesk/internal/listview"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/panel"
	"github.com/starford/flashdesk/internal/prefs"
	"github.com/starford/flashdesk/internal/search"
	"github.com/starford/flashdesk/internal/table"
	"github.com/starford/flashdesk/internal/viewstate"
)

type browseView struct {
	chrome
	Models    []string
	PageSizes []int
	Flags     []models.Flag
	Table     tableView
	Panel     *panelView
	Width     int
}

type tableView struct {
	State      viewstate.State
	Page       table.Page
	AllColumns []table.Column
	Status     listview.Status
	Pending    bool
	Err        string
	PrevURL    string
	NextURL    string
}

type fieldView struct {
	Name  string
	Value string
}

type panelView struct {
	Item      models.Item
	Fields    []fieldView
	TagDraft  string
	Audio     []panel.AudioTarget
	ShowAudio bool
	Suspended bool
	Flags     []models.Flag
}

type errorView struct {
	chrome
	Message  string
	RetryURL string
}

func (s *Server) chrome(ctx context.Context, title, active string) chrome {
	return chrome{
		Title:   title,
		Active:  active,
		Theme:   prefs.Theme.Get(ctx, s.prefs, Profile(ctx)),
		Notices: s.notices.Recent(time.Now().Add(-10 * time.Second)),
	}
}

func (s *Server) defaults() viewstate.Defaults {
	return viewstate.Defaults{PageSize: s.pageSize}
}

// schemaError renders the whole-page error shown when the schema cannot be
// loaded. The retry link reloads the same URL.
func (s *Server) schemaError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("load schema failed", slog.String("error", err.Error()))
	s.page(w, statusFor(err), "error", errorView{
		chrome:   s.chrome(r.Context(), "Error", ""),
		Message:  "Could not load the collection: " + err.Error(),
		RetryURL: r.URL.RequestURI(),
	})
}

// defaultModel picks the last used model when it still exists, else the
// first model by name.
func (s *Server) defaultModel(ctx context.Context, schema *models.Schema) string {
	names := schema.ModelNames()
	if last := prefs.LastModel.Get(ctx, s.prefs, Profile(ctx)); slices.Contains(names, last) {
		return last
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// Home handles GET /.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	schema, err := s.svc.Schema(r.Context())
	if err != nil {
		s.schemaError(w, r, err)
		return
	}
	st := viewstate.Default(s.defaults()).WithModel(s.defaultModel(r.Context(), schema))
	http.Redirect(w, r, st.URL("/browse"), http.StatusFound)
}

// navigate resolves the view state from the request, starts the transition
// and waits for it up to the configured budget. It returns false when it has
// already written a response.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request) (*Session, *models.Schema, listview.Snapshot, bool) {
	ctx := r.Context()
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		s.schemaError(w, r, err)
		return nil, nil, listview.Snapshot{}, false
	}

	st, switched := viewstate.Resolve(r.URL.Query(), s.defaults())
	if _, ok := schema.Fields(st.Model); !ok {
		model := s.defaultModel(ctx, schema)
		if model == "" {
			s.page(w, http.StatusOK, "error", errorView{
				chrome:  s.chrome(ctx, "Error", ""),
				Message: "The collection has no note types.",
			})
			return nil, nil, listview.Snapshot{}, false
		}
		http.Redirect(w, r, st.WithModel(model).URL(r.URL.Path), http.StatusFound)
		return nil, nil, listview.Snapshot{}, false
	}
	if switched {
		http.Redirect(w, r, st.URL(r.URL.Path), http.StatusFound)
		return nil, nil, listview.Snapshot{}, false
	}

	profile := Profile(ctx)
	if prefs.LastModel.Get(ctx, s.prefs, profile) != st.Model {
		if err := prefs.LastModel.Set(ctx, s.prefs, profile, st.Model); err != nil {
			s.logger.Warn("save last model failed", slog.String("error", err.Error()))
		}
	}

	sess := s.sessions.Get(ctx, profile)
	snap := s.settle(ctx, sess, sess.List.Navigate(st))
	return sess, schema, snap, true
}

// settle waits for generation gen within the wait budget. A transition
// still running afterwards is rendered as pending.
func (s *Server) settle(ctx context.Context, sess *Session, gen uint64) listview.Snapshot {
	wctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()
	snap, _ := sess.List.Wait(wctx, gen)
	return snap
}

func (s *Server) tableView(ctx context.Context, schema *models.Schema, snap listview.Snapshot) tableView {
	st := snap.State
	fields, _ := schema.Fields(st.Model)
	vis := prefs.Columns(st.Model).Get(ctx, s.prefs, Profile(ctx))
	cols := table.Columns(fields, st.Mode, vis)

	var selected int64
	if snap.Selected != nil {
		selected = snap.Selected.ID()
	}
	pg := table.Build(snap.Items, cols, st.Page, st.PageSize, selected)

	tv := tableView{
		State:      st.WithPage(pg.Page),
		Page:       pg,
		AllColumns: cols,
		Status:     snap.Status,
		Pending:    snap.Pending,
	}
	if snap.Err != nil {
		tv.Err = snap.Err.Error()
	}
	if pg.Page > 1 {
		tv.PrevURL = st.WithPage(pg.Page - 1).URL("/browse")
	}
	if pg.Page < pg.Pages {
		tv.NextURL = st.WithPage(pg.Page + 1).URL("/browse")
	}
	return tv
}

func (s *Server) panelView(ctx context.Context, schema *models.Schema, it models.Item) *panelView {
	fields, ok := schema.Fields(it.Note.Model)
	if !ok {
		for name := range it.Note.Fields {
			fields = append(fields, name)
		}
		slices.Sort(fields)
	}
	pv := &panelView{
		Item:     it,
		Fields:   make([]fieldView, 0, len(fields)),
		TagDraft: panel.TagDraft(it.Note.Tags),
		Audio:    panel.AudioTargets(it, fields),
		Flags:    models.Flags(),
	}
	for _, f := range fields {
		pv.Fields = append(pv.Fields, fieldView{Name: f, Value: it.Note.Field(f)})
	}
	if it.Kind == models.KindCard {
		pv.Suspended = it.Card.Suspended()
	}
	enabled, set := prefs.TTSFlags.Get(ctx, s.prefs, Profile(ctx))[it.Note.Model]
	pv.ShowAudio = !set || enabled
	return pv
}

// Browse handles GET /browse.
func (s *Server) Browse(w http.ResponseWriter, r *http.Request) {
	sess, schema, snap, ok := s.navigate(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	v := browseView{
		chrome:    s.chrome(ctx, snap.State.Model, "browse"),
		Models:    schema.ModelNames(),
		PageSizes: viewstate.PageSizes,
		Flags:     models.Flags(),
		Table:     s.tableView(ctx, schema, snap),
		Width:     sess.Resizer.Width(),
	}
	if snap.Selected != nil {
		v.Panel = s.panelView(ctx, schema, *snap.Selected)
	}
	s.page(w, http.StatusOK, "browse", v)
}

// BrowseTable handles GET /browse/table.
func (s *Server) BrowseTable(w http.ResponseWriter, r *http.Request) {
	_, schema, snap, ok := s.navigate(w, r)
	if !ok {
		return
	}
	s.partial(w, http.StatusOK, "table", s.tableView(r.Context(), schema, snap))
}

// BrowseStatus handles GET /browse/status.
func (s *Server) BrowseStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Get(r.Context(), Profile(r.Context())).List.Snapshot()
	resp := map[string]any{
		"status":     snap.Status,
		"pending":    snap.Pending,
		"generation": snap.Generation,
		"count":      len(snap.Items),
	}
	if snap.Err != nil {
		resp["error"] = snap.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// BrowseRefresh handles POST /browse/refresh.
func (s *Server) BrowseRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		s.schemaError(w, r, err)
		return
	}
	sess := s.sessions.Get(ctx, Profile(ctx))
	snap := s.settle(ctx, sess, sess.List.Refresh())
	s.partial(w, http.StatusOK, "table", s.tableView(ctx, schema, snap))
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperr.ErrInvalidInput
	}
	return id, nil
}

// Select handles POST /browse/select/{id}.
func (s *Server) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid id"))
		return
	}
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		writeJSON(w, statusFor(err), errorBody(err.Error()))
		return
	}
	sess := s.sessions.Get(ctx, Profile(ctx))
	it, ok := sess.List.Select(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("item is not listed"))
		return
	}
	s.partial(w, http.StatusOK, "panel", s.panelView(ctx, schema, it))
}

// ToggleColumn handles POST /browse/columns.
func (s *Server) ToggleColumn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	column := r.FormValue("column")
	if column == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("column is required"))
		return
	}
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		s.schemaError(w, r, err)
		return
	}
	sess := s.sessions.Get(ctx, Profile(ctx))
	snap := sess.List.Snapshot()
	st := snap.State
	fields, ok := schema.Fields(st.Model)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown model"))
		return
	}
	key := prefs.Columns(st.Model)
	cols := table.Columns(fields, st.Mode, key.Get(ctx, s.prefs, Profile(ctx)))
	if !slices.ContainsFunc(cols, func(c table.Column) bool { return c.ID == column }) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown column"))
		return
	}
	if err := key.Set(ctx, s.prefs, Profile(ctx), table.Toggle(cols, column)); err != nil {
		s.logger.Error("save columns failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	s.partial(w, http.StatusOK, "table", s.tableView(ctx, schema, snap))
}

// Suggest handles GET /suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		writeJSON(w, statusFor(err), errorBody(err.Error()))
		return
	}
	vocab := search.Vocabulary{Decks: schema.Decks, Models: schema.ModelNames()}
	seen := make(map[string]struct{})
	for _, it := range s.sessions.Get(ctx, Profile(ctx)).List.Snapshot().Items {
		for _, tag := range it.Note.Tags {
			if _, ok := seen[tag]; !ok {
				seen[tag] = struct{}{}
				vocab.Tags = append(vocab.Tags, tag)
			}
		}
	}
	out := search.Suggest(r.URL.Query().Get("q"), vocab, search.DefaultSuggestLimit)
	if out == nil {
		out = []search.Suggestion{}
	}
	writeJSON(w, http.StatusOK, out)
}

// Notifications handles GET /notifications?since=<RFC 3339>.
func (s *Server) Notifications(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be RFC 3339"))
			return
		}
		since = t
	}
	writeJSON(w, http.StatusOK, s.notices.Recent(since))
}

// lookup returns the listed item with id, preferring the selection.
func lookup(sess *Session, id int64) (models.Item, error) {
	if sel, ok := sess.List.Selected(); ok && sel.ID() == id {
		return sel, nil
	}
	snap := sess.List.Snapshot()
	if i := models.IndexByID(snap.Items, id); i >= 0 {
		return snap.Items[i].Clone(), nil
	}
	return models.Item{}, fmt.Errorf("web: item %d: %w", id, apperr.ErrNotFound)
}
