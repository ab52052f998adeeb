package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flashdesk/internal/models"
)

// FakeHost is an in-memory stand-in for the host automation API.
type FakeHost struct {
	mu sync.Mutex

	models map[string][]string
	decks  []string
	notes  map[int64]*models.Note
	cards  map[int64]*models.Card
	nextID int64

	calls    map[string]int
	searches []string
	failures map[string]failure

	// TTS builds the reference returned by /api/tts.
	TTS func(text string) string
	// QueryFunc answers /api/query with raw JSON cells. The default lists
	// note ids (as numbers) and models.
	QueryFunc func(q string) (columns []string, rows [][]any, err error)

	srv *httptest.Server
}

type failure struct {
	status int
	msg    string
}

// NewFakeHost starts a fake host with a single "Basic" model (Front, Back)
// and a "Default" deck. The server is closed when the test ends.
func NewFakeHost(t *testing.T) *FakeHost {
	t.Helper()
	f := &FakeHost{
		models:   map[string][]string{"Basic": {"Front", "Back"}},
		decks:    []string{"Default"},
		notes:    make(map[int64]*models.Note),
		cards:    make(map[int64]*models.Card),
		nextID:   1000,
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		TTS:      func(text string) string { return "[sound:tts-" + strconv.Itoa(len(text)) + ".mp3]" },
	}
	f.srv = httptest.NewServer(f.router())
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the fake host's base URL.
func (f *FakeHost) URL() string {
	return f.srv.URL
}

// SetModel defines or replaces a model.
func (f *FakeHost) SetModel(name string, fields ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[name] = fields
}

// AddDeck registers a deck name.
func (f *FakeHost) AddDeck(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decks = append(f.decks, name)
}

// Seed adds a note with one card and returns the note and card ids.
func (f *FakeHost) Seed(model, deck string, fields map[string]string, tags ...string) (int64, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(model, deck, fields, tags)
}

func (f *FakeHost) addLocked(model, deck string, fields map[string]string, tags []string) (int64, int64) {
	f.nextID++
	noteID := f.nextID
	f.nextID++
	cardID := f.nextID

	n := &models.Note{ID: noteID, Model: model, Fields: map[string]string{}, Tags: append([]string{}, tags...)}
	for _, name := range f.models[model] {
		n.Fields[name] = fields[name]
	}
	f.notes[noteID] = n
	f.cards[cardID] = &models.Card{ID: cardID, NoteID: noteID, Deck: deck, Queue: models.QueueNew, Type: models.QueueNew}
	return noteID, cardID
}

// Note returns a copy of the stored note.
func (f *FakeHost) Note(id int64) models.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notes[id]; ok {
		return n.Clone()
	}
	return models.Note{}
}

// Card returns a copy of the stored card.
func (f *FakeHost) Card(id int64) models.Card {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cards[id]; ok {
		return *c
	}
	return models.Card{}
}

// SetCard overwrites scheduling state on a stored card.
func (f *FakeHost) SetCard(id int64, fn func(*models.Card)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cards[id]; ok {
		fn(c)
	}
}

// NoteCount returns the number of stored notes.
func (f *FakeHost) NoteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

// Fail makes every request whose path starts with prefix fail with status and msg.
func (f *FakeHost) Fail(prefix string, status int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[prefix] = failure{status: status, msg: msg}
}

// Recover removes a failure installed with Fail.
func (f *FakeHost) Recover(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, prefix)
}

// Calls returns how many requests hit "METHOD /path".
func (f *FakeHost) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Searches returns every search string received by /api/items.
func (f *FakeHost) Searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func (f *FakeHost) router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.track)
	r.Get("/api/schema", f.schema)
	r.Get("/api/items", f.items)
	r.Post("/api/cards/flag", f.flag)
	r.Post("/api/cards/suspend", f.suspend)
	r.Patch("/api/notes/{id}/fields", f.updateFields)
	r.Put("/api/notes/{id}/tags", f.setTags)
	r.Post("/api/notes", f.addNote)
	r.Post("/api/notes/batch", f.addNotes)
	r.Post("/api/tts", f.tts)
	r.Post("/api/query", f.query)
	return r
}

func (f *FakeHost) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.Method+" "+r.URL.Path]++
		var fail *failure
		for prefix, fl := range f.failures {
			if strings.HasPrefix(r.URL.Path, prefix) {
				fl := fl
				fail = &fl
				break
			}
		}
		f.mu.Unlock()
		if fail != nil {
			writeEnvelope(w, fail.status, nil, fail.msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"data": data}
	if errMsg != "" {
		body = map[string]any{"error": errMsg}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *FakeHost) schema(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, models.Schema{Models: f.models, Decks: f.decks}, "")
}

func (f *FakeHost) items(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	model := q.Get("model")
	mode := q.Get("mode")
	query := q.Get("search")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)

	match, err := compileSearch(query)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, err.Error())
		return
	}

	cardIDs := make([]int64, 0, len(f.cards))
	for id := range f.cards {
		cardIDs = append(cardIDs, id)
	}
	sort.Slice(cardIDs, func(i, j int) bool { return cardIDs[i] < cardIDs[j] })

	out := []models.Item{}
	seenNotes := make(map[int64]bool)
	for _, id := range cardIDs {
		c := f.cards[id]
		n := f.notes[c.NoteID]
		if n == nil || (model != "" && n.Model != model) || !match(n, c) {
			continue
		}
		if mode == string(models.ModeCards) {
			out = append(out, models.CardItem(n.Clone(), *c))
			continue
		}
		if seenNotes[n.ID] {
			continue
		}
		seenNotes[n.ID] = true
		out = append(out, models.NoteItem(n.Clone(), c.Deck))
	}
	writeEnvelope(w, http.StatusOK, out, "")
}

// compileSearch understands a small subset of the host search syntax.
func compileSearch(query string) (func(*models.Note, *models.Card) bool, error) {
	var preds []func(*models.Note, *models.Card) bool
	for _, tok := range strings.Fields(query) {
		neg := strings.HasPrefix(tok, "-")
		tok = strings.TrimPrefix(tok, "-")
		var p func(*models.Note, *models.Card) bool
		switch {
		case tok == "is:suspended":
			p = func(_ *models.Note, c *models.Card) bool { return c.Suspended() }
		case strings.HasPrefix(tok, "is:"):
			return nil, fmt.Errorf("invalid search: unknown state %q", tok)
		case strings.HasPrefix(tok, "flag:"):
			n, err := strconv.Atoi(strings.TrimPrefix(tok, "flag:"))
			if err != nil {
				return nil, fmt.Errorf("invalid search: %q", tok)
			}
			p = func(_ *models.Note, c *models.Card) bool { return int(c.Flag) == n }
		case strings.HasPrefix(tok, "tag:"):
			tag := strings.TrimPrefix(tok, "tag:")
			p = func(n *models.Note, _ *models.Card) bool {
				for _, t := range n.Tags {
					if strings.EqualFold(t, tag) {
						return true
					}
				}
				return false
			}
		case strings.HasPrefix(tok, "deck:"):
			deck := strings.Trim(strings.TrimPrefix(tok, "deck:"), `"`)
			p = func(_ *models.Note, c *models.Card) bool { return strings.EqualFold(c.Deck, deck) }
		default:
			text := strings.ToLower(tok)
			p = func(n *models.Note, _ *models.Card) bool {
				for _, v := range n.Fields {
					if strings.Contains(strings.ToLower(v), text) {
						return true
					}
				}
				return false
			}
		}
		if neg {
			inner := p
			p = func(n *models.Note, c *models.Card) bool { return !inner(n, c) }
		}
		preds = append(preds, p)
	}
	return func(n *models.Note, c *models.Card) bool {
		for _, p := range preds {
			if !p(n, c) {
				return false
			}
		}
		return true
	}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, "invalid id")
		return 0, false
	}
	return id, true
}

func (f *FakeHost) flag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cards []int64 `json:"cards"`
		Flag  int     `json:"flag"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range req.Cards {
		c, ok := f.cards[id]
		if !ok {
			writeEnvelope(w, http.StatusNotFound, nil, fmt.Sprintf("card %d not found", id))
			return
		}
		c.Flag = models.Flag(req.Flag)
	}
	writeEnvelope(w, http.StatusOK, true, "")
}

func (f *FakeHost) suspend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cards     []int64 `json:"cards"`
		Suspended bool    `json:"suspended"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range req.Cards {
		c, ok := f.cards[id]
		if !ok {
			writeEnvelope(w, http.StatusNotFound, nil, fmt.Sprintf("card %d not found", id))
			return
		}
		if req.Suspended {
			c.Queue = models.QueueSuspended
		} else if c.Suspended() {
			c.Queue = c.Type
		}
	}
	writeEnvelope(w, http.StatusOK, true, "")
}

func (f *FakeHost) updateFields(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, nil, "note not found")
		return
	}
	for k, v := range req.Fields {
		if _, known := n.Fields[k]; !known {
			writeEnvelope(w, http.StatusBadRequest, nil, fmt.Sprintf("unknown field %q", k))
			return
		}
		n.Fields[k] = v
	}
	writeEnvelope(w, http.StatusOK, true, "")
}

func (f *FakeHost) setTags(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Tags []string `json:"tags"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, nil, "note not found")
		return
	}
	n.Tags = append([]string{}, req.Tags...)
	writeEnvelope(w, http.StatusOK, true, "")
}

type newNote struct {
	Model  string            `json:"model"`
	Deck   string            `json:"deck"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
}

func (f *FakeHost) addNote(w http.ResponseWriter, r *http.Request) {
	var req newNote
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.models[req.Model]; !ok {
		writeEnvelope(w, http.StatusBadRequest, nil, "unknown model")
		return
	}
	id, _ := f.addLocked(req.Model, req.Deck, req.Fields, req.Tags)
	writeEnvelope(w, http.StatusOK, map[string]int64{"id": id}, "")
}

func (f *FakeHost) addNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes []newNote `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(req.Notes))
	for _, n := range req.Notes {
		if _, ok := f.models[n.Model]; !ok {
			writeEnvelope(w, http.StatusBadRequest, nil, "unknown model")
			return
		}
		id, _ := f.addLocked(n.Model, n.Deck, n.Fields, n.Tags)
		ids = append(ids, id)
	}
	writeEnvelope(w, http.StatusOK, map[string][]int64{"ids": ids}, "")
}

func (f *FakeHost) tts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	writeEnvelope(w, http.StatusOK, map[string]string{"reference": f.TTS(req.Text)}, "")
}

func (f *FakeHost) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f.mu.Lock()
	qf := f.QueryFunc
	var cols []string
	var rows [][]any
	var err error
	if qf == nil {
		cols = []string{"id", "model"}
		ids := make([]int64, 0, len(f.notes))
		for id := range f.notes {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			rows = append(rows, []any{id, f.notes[id].Model})
		}
	}
	f.mu.Unlock()
	if qf != nil {
		cols, rows, err = qf(req.Query)
	}
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, err.Error())
		return
	}
	if rows == nil {
		rows = [][]any{}
	}
	writeEnvelope(w, http.StatusOK, map[string]any{
		"columns":    cols,
		"rows":       rows,
		"row_count":  len(rows),
		"elapsed_ms": 1.5,
	}, "")
}
