// Package web serves the browser UI: server-rendered pages and partials
// over chi, plus the event stream and a few JSON endpoints for the script.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/notify"
	"github.com/starford/flashdesk/internal/prefs"
	"github.com/starford/flashdesk/internal/viewstate"
)

// DefaultWait is how long a page render waits for a list transition before
// rendering it as pending.
const DefaultWait = 3 * time.Second

// Options configure the web surface.
type Options struct {
	Service *noteservice.Service
	Prefs   prefs.Store
	Notices *notify.Center
	// Events serves GET /events when set.
	Events http.Handler

	AuthEnabled bool
	AuthToken   string

	DefaultPageSize int
	QueryRowLimit   int
	MaxSessions     int
	Wait            time.Duration
	Logger          *slog.Logger
}

// Server holds the handlers and per-profile sessions.
type Server struct {
	svc      *noteservice.Service
	prefs    prefs.Store
	notices  *notify.Center
	sessions *Sessions
	pages    *pages
	pageSize int
	wait     time.Duration
	logger   *slog.Logger
}

// NewServer creates the web server state.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = DefaultWait
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.NewCenter(0, nil)
	}
	tmpl, err := loadPages()
	if err != nil {
		return nil, err
	}
	defaults := viewstate.Defaults{PageSize: opts.DefaultPageSize}
	sessions, err := NewSessions(opts.Service, opts.Prefs, defaults, opts.QueryRowLimit, opts.MaxSessions, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		svc:      opts.Service,
		prefs:    opts.Prefs,
		notices:  notices,
		sessions: sessions,
		pages:    tmpl,
		pageSize: opts.DefaultPageSize,
		wait:     wait,
		logger:   logger,
	}, nil
}

// Close releases every session.
func (s *Server) Close() {
	s.sessions.Close()
}

// NewRouter creates a chi router with all routes mounted. Health checks
// are not behind auth.
func NewRouter(s *Server, opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", s.Ready)
	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.AuthEnabled, opts.AuthToken))
		r.Use(ProfileMiddleware)

		r.Get("/", s.Home)

		r.Get("/browse", s.Browse)
		r.Get("/browse/table", s.BrowseTable)
		r.Get("/browse/status", s.BrowseStatus)
		r.Post("/browse/refresh", s.BrowseRefresh)
		r.Post("/browse/select/{id}", s.Select)
		r.Post("/browse/columns", s.ToggleColumn)

		r.Post("/items/{id}/fields", s.SaveField)
		r.Post("/items/{id}/tags", s.SaveTags)
		r.Post("/items/{id}/audio", s.GenerateAudio)
		r.Post("/cards/{id}/flag", s.SetFlag)
		r.Post("/cards/{id}/suspend", s.SetSuspended)

		r.Post("/panel/drag", s.Drag)
		r.Post("/prefs/theme", s.SetTheme)
		r.Post("/prefs/tts", s.SetTTS)

		r.Get("/suggest", s.Suggest)
		r.Get("/notifications", s.Notifications)

		r.Get("/import", s.ImportForm)
		r.Post("/import/preview", s.ImportPreview)
		r.Post("/import", s.Import)

		r.Get("/console", s.ConsolePage)
		r.Post("/console", s.RunQuery)
		r.Get("/console/export.csv", s.ExportCSV)

		if opts.Events != nil {
			r.Get("/events", opts.Events.ServeHTTP)
		}
	})

	return r
}

// Ready handles GET /health/ready by pinging the host.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Host().Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
