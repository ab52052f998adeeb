package web

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/flashdesk/internal/console"
	"github.com/starford/flashdesk/internal/listview"
	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/panel"
	"github.com/starford/flashdesk/internal/prefs"
	"github.com/starford/flashdesk/internal/viewstate"
)

// DefaultMaxSessions bounds the number of live browser sessions.
const DefaultMaxSessions = 64

// Session is the in-memory state of one browser profile.
type Session struct {
	Profile string
	List    *listview.Controller
	Console *console.Console
	Resizer *panel.Resizer
}

func (s *Session) close() {
	s.List.Close()
}

// Sessions creates sessions on first use and closes the least recently
// used one when the bound is reached.
type Sessions struct {
	svc      *noteservice.Service
	store    prefs.Store
	defaults viewstate.Defaults
	rowLimit int
	logger   *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, *Session]
}

// NewSessions creates a session registry.
func NewSessions(svc *noteservice.Service, store prefs.Store, defaults viewstate.Defaults, rowLimit, size int, logger *slog.Logger) (*Sessions, error) {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	c, err := lru.NewWithEvict(size, func(_ string, s *Session) { s.close() })
	if err != nil {
		return nil, err
	}
	return &Sessions{
		svc:      svc,
		store:    store,
		defaults: defaults,
		rowLimit: rowLimit,
		logger:   logger,
		cache:    c,
	}, nil
}

// Get returns the session of profile, creating it when needed.
func (s *Sessions) Get(ctx context.Context, profile string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.cache.Get(profile); ok {
		return sess
	}

	width := prefs.PanelWidth.Get(ctx, s.store, profile)
	sess := &Session{
		Profile: profile,
		List:    listview.New(s.svc, viewstate.Default(s.defaults), s.logger.With(slog.String("profile", profile))),
		Console: console.New(s.svc, s.rowLimit),
		Resizer: panel.NewResizer(width, func(w int) {
			if err := prefs.PanelWidth.Set(context.Background(), s.store, profile, w); err != nil {
				s.logger.Warn("persist panel width failed", slog.String("error", err.Error()))
			}
		}),
	}
	s.cache.Add(profile, sess)
	return sess
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.cache.Len()
}

// Close closes every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}
