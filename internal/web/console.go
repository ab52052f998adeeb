package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/flashdesk/internal/console"
)

type consoleView struct {
	chrome
	console.View
}

// ConsolePage handles GET /console.
func (s *Server) ConsolePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessions.Get(ctx, Profile(ctx))
	s.page(w, http.StatusOK, "console", consoleView{
		chrome: s.chrome(ctx, "Query", "console"),
		View:   sess.Console.View(),
	})
}

// RunQuery handles POST /console. Failures are shown inline next to the
// last good result.
func (s *Server) RunQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.sessions.Get(ctx, Profile(ctx))
	status := http.StatusOK
	if err := sess.Console.Run(ctx, r.FormValue("q")); err != nil {
		s.logger.Warn("query failed", slog.String("error", err.Error()))
		status = statusFor(err)
	}
	s.partial(w, status, "console_result", sess.Console.View())
}

// ExportCSV handles GET /console/export.csv with every row of the last
// result.
func (s *Server) ExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, ok := s.sessions.Get(ctx, Profile(ctx)).Console.Result()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no query result to export"))
		return
	}
	name := "query-" + time.Now().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(console.CSV(res)))
}
