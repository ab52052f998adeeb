package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/notify"
	"github.com/starford/flashdesk/internal/prefs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageNames are the templates rendered inside the layout.
var pageNames = []string{"browse", "import", "console", "error"}

type pages struct {
	base  *template.Template
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"flagName": func(f models.Flag) string { return f.String() },
	"int":      func(f models.Flag) int { return int(f) },
	"join":     strings.Join,
	"themes":   func() []string { return prefs.Themes },
}

func loadPages() (*pages, error) {
	base, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	p := &pages{base: base, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.Must(base.Clone()).ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		p.pages[name] = t
	}
	return p, nil
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// chrome is the data every full page shares.
type chrome struct {
	Title   string
	Active  string
	Theme   string
	Notices []notify.Notification
}

// page renders a full page inside the layout.
func (s *Server) page(w http.ResponseWriter, status int, name string, data any) {
	t, ok := s.pages.pages[name]
	if !ok {
		s.logger.Error("unknown page", slog.String("page", name))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.execute(w, status, t, "layout", data)
}

// partial renders a fragment the script swaps into the page.
func (s *Server) partial(w http.ResponseWriter, status int, name string, data any) {
	s.execute(w, status, s.pages.base, name, data)
}

func (s *Server) execute(w http.ResponseWriter, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render failed", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
