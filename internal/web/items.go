package web

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"

	"github.com/starford/flashdesk/internal/apperr"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/panel"
	"github.com/starford/flashdesk/internal/prefs"
)

// edit is one panel write against a listed item.
type edit func(ctx context.Context, ed *panel.Editor, sess *Session, it models.Item) (models.Item, error)

// applyEdit runs fn on the item named by the {id} route parameter and
// answers with the panel fragment. A failed write leaves every local state
// untouched, raises an error notification and re-renders the unchanged item.
func (s *Server) applyEdit(w http.ResponseWriter, r *http.Request, action string, fn edit) {
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
	it, err := lookup(sess, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("item is not listed"))
		return
	}

	updated, err := fn(ctx, panel.NewEditor(s.svc), sess, it)
	if err != nil {
		s.logger.Warn("edit failed",
			slog.String("action", action),
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		s.notices.Error(fmt.Sprintf("%s failed: %v", action, err))
		s.partial(w, statusFor(err), "panel", s.panelView(ctx, schema, it))
		return
	}
	s.partial(w, http.StatusOK, "panel", s.panelView(ctx, schema, updated))
}

// SaveField handles POST /items/{id}/fields.
func (s *Server) SaveField(w http.ResponseWriter, r *http.Request) {
	field, value := r.FormValue("field"), r.FormValue("value")
	s.applyEdit(w, r, "Save "+field, func(ctx context.Context, ed *panel.Editor, sess *Session, it models.Item) (models.Item, error) {
		return ed.SaveField(ctx, sess.List, it, field, value)
	})
}

// SaveTags handles POST /items/{id}/tags.
func (s *Server) SaveTags(w http.ResponseWriter, r *http.Request) {
	draft := r.FormValue("tags")
	s.applyEdit(w, r, "Save tags", func(ctx context.Context, ed *panel.Editor, sess *Session, it models.Item) (models.Item, error) {
		return ed.SaveTags(ctx, sess.List, it, draft)
	})
}

// GenerateAudio handles POST /items/{id}/audio.
func (s *Server) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	field := r.FormValue("field")
	s.applyEdit(w, r, "Generate audio", func(ctx context.Context, ed *panel.Editor, sess *Session, it models.Item) (models.Item, error) {
		return ed.GenerateAudio(ctx, sess.List, it, field)
	})
}

// SetFlag handles POST /cards/{id}/flag.
func (s *Server) SetFlag(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("flag")
	s.applyEdit(w, r, "Set flag", func(ctx context.Context, ed *panel.Editor, sess *Session, it models.Item) (models.Item, error) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return it, fmt.Errorf("web: flag %q: %w", raw, apperr.ErrInvalidInput)
		}
		return ed.SetFlag(ctx, sess.List, it, models.Flag(n))
	})
}

// SetSuspended handles POST /cards/{id}/suspend.
func (s *Server) SetSuspended(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("suspended")
	s.applyEdit(w, r, "Suspend", func(ctx context.Context, ed *panel.Editor, sess *Session, it models.Item) (models.Item, error) {
		suspended, err := strconv.ParseBool(raw)
		if err != nil {
			return it, fmt.Errorf("web: suspended %q: %w", raw, apperr.ErrInvalidInput)
		}
		return ed.SetSuspended(ctx, sess.List, it, suspended)
	})
}

type dragResponse struct {
	Width    int  `json:"width"`
	Dragging bool `json:"dragging"`
}

// Drag handles POST /panel/drag with phase=down|move|up and x in pixels.
func (s *Server) Drag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rz := s.sessions.Get(ctx, Profile(ctx)).Resizer
	phase := r.FormValue("phase")
	x, err := strconv.Atoi(r.FormValue("x"))
	if err != nil && phase != "up" {
		writeJSON(w, http.StatusBadRequest, errorBody("x must be an integer"))
		return
	}
	switch phase {
	case "down":
		rz.Down(x)
	case "move":
		rz.Move(x)
	case "up":
		rz.Up()
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("phase must be down, move or up"))
		return
	}
	writeJSON(w, http.StatusOK, dragResponse{Width: rz.Width(), Dragging: rz.Dragging()})
}

// SetTheme handles POST /prefs/theme.
func (s *Server) SetTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	theme := r.FormValue("theme")
	if !slices.Contains(prefs.Themes, theme) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown theme"))
		return
	}
	if err := prefs.Theme.Set(ctx, s.prefs, Profile(ctx), theme); err != nil {
		s.logger.Error("save theme failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

// SetTTS handles POST /prefs/tts, showing or hiding the generate-audio
// action for one model.
func (s *Server) SetTTS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	model := r.FormValue("model")
	enabled, err := strconv.ParseBool(r.FormValue("enabled"))
	if model == "" || err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("model and enabled are required"))
		return
	}
	profile := Profile(ctx)
	flags := maps.Clone(prefs.TTSFlags.Get(ctx, s.prefs, profile))
	if flags == nil {
		flags = make(map[string]bool)
	}
	flags[model] = enabled
	if err := prefs.TTSFlags.Set(ctx, s.prefs, profile, flags); err != nil {
		s.logger.Error("save tts flags failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, flags)
}
