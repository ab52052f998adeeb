package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/starford/flashdesk/internal/bulkimport"
	"github.com/starford/flashdesk/internal/models"
)

type importView struct {
	chrome
	Models  []string
	Decks   []string
	Request bulkimport.Request
	Preview *previewView
}

type previewView struct {
	bulkimport.Preview
	Request bulkimport.Request
	// Fields are the model fields in order; nil for an unknown model.
	Fields []string
	Result string
	Err    string
	// Cleared tells the page to empty the paste box.
	Cleared bool
}

func importRequest(r *http.Request) bulkimport.Request {
	return bulkimport.Request{
		Text:  r.FormValue("text"),
		Model: r.FormValue("model"),
		Deck:  r.FormValue("deck"),
		Tags:  r.FormValue("tags"),
	}
}

// prepare builds the preview. An unknown model never becomes ready.
func prepare(schema *models.Schema, req bulkimport.Request) *previewView {
	fields, known := schema.Fields(req.Model)
	pv := &previewView{Preview: bulkimport.Prepare(req, fields), Request: req, Fields: fields}
	if !known {
		pv.Ready = false
	}
	return pv
}

// ImportForm handles GET /import.
func (s *Server) ImportForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		s.schemaError(w, r, err)
		return
	}
	req := bulkimport.Request{Model: s.defaultModel(ctx, schema)}
	if len(schema.Decks) > 0 {
		req.Deck = schema.Decks[0]
	}
	s.page(w, http.StatusOK, "import", importView{
		chrome:  s.chrome(ctx, "Import", "import"),
		Models:  schema.ModelNames(),
		Decks:   schema.Decks,
		Request: req,
		Preview: prepare(schema, req),
	})
}

// ImportPreview handles POST /import/preview.
func (s *Server) ImportPreview(w http.ResponseWriter, r *http.Request) {
	schema, err := s.svc.Schema(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), errorBody(err.Error()))
		return
	}
	s.partial(w, http.StatusOK, "import_preview", prepare(schema, importRequest(r)))
}

// Import handles POST /import. Submission is refused with the preview when
// the form is not ready.
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		writeJSON(w, statusFor(err), errorBody(err.Error()))
		return
	}
	req := importRequest(r)
	pv := prepare(schema, req)
	if !pv.Ready {
		s.partial(w, http.StatusBadRequest, "import_preview", pv)
		return
	}

	ids, err := bulkimport.Submit(ctx, s.svc, req, pv.Fields)
	if err != nil {
		s.logger.Warn("import failed",
			slog.String("model", req.Model),
			slog.Int("records", len(pv.Parsed.Records)),
			slog.String("error", err.Error()))
		pv.Err = err.Error()
		s.notices.Error("Import failed: " + err.Error())
		s.partial(w, statusFor(err), "import_preview", pv)
		return
	}
	result := fmt.Sprintf("Imported %s %s into %s", humanize.Comma(int64(len(ids))), noun(len(ids), "note"), req.Deck)
	s.notices.Info(result)

	// The pasted rows are spent; the form keeps model, deck and tags.
	req.Text = ""
	done := prepare(schema, req)
	done.Result = result
	done.Cleared = true
	s.partial(w, http.StatusOK, "import_preview", done)
}

func noun(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
