package hostapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/search"
)

// ItemsQuery selects the items listed by the host.
type ItemsQuery struct {
	Model  string
	Search string
	Mode   models.ViewMode
}

// NewNote is a note to be created by the host.
type NewNote struct {
	Model  string            `json:"model"`
	Deck   string            `json:"deck"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
}

// QueryResult is the tabular result of an ad-hoc read-only query. Cells
// arrive as any JSON scalar and are kept as display text: NULL becomes "",
// numbers keep their literal form.
type QueryResult struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"row_count"`
	ElapsedMS float64    `json:"elapsed_ms"`
}

// UnmarshalJSON decodes rows of mixed cell types.
func (r *QueryResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Columns   []string            `json:"columns"`
		Rows      [][]json.RawMessage `json:"rows"`
		RowCount  int                 `json:"row_count"`
		ElapsedMS float64             `json:"elapsed_ms"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	rows := make([][]string, len(wire.Rows))
	for i, raw := range wire.Rows {
		row := make([]string, len(raw))
		for j, cell := range raw {
			text, err := cellText(cell)
			if err != nil {
				return fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			row[j] = text
		}
		rows[i] = row
	}
	*r = QueryResult{Columns: wire.Columns, Rows: rows, RowCount: wire.RowCount, ElapsedMS: wire.ElapsedMS}
	return nil
}

func cellText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	// Numbers, booleans and nested values keep their JSON text.
	return string(raw), nil
}

// Schema fetches every model with its fields, plus the deck names.
func (c *Client) Schema(ctx context.Context) (*models.Schema, error) {
	s, err := call[models.Schema](ctx, c, http.MethodGet, "/api/schema", nil)
	if err != nil {
		return nil, err
	}
	if s.Models == nil {
		s.Models = map[string][]string{}
	}
	return &s, nil
}

// Items lists the notes or cards matching q. The search string is
// normalised before it is sent.
func (c *Client) Items(ctx context.Context, q ItemsQuery) ([]models.Item, error) {
	mode := q.Mode
	if mode == "" {
		mode = models.ModeNotes
	}
	path := buildQuery("/api/items", map[string]string{
		"model":  q.Model,
		"search": search.Normalize(q.Search),
		"mode":   string(mode),
	})
	items, err := call[[]models.Item](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Item{}
	}
	return items, nil
}

// SetFlag sets the flag on every given card.
func (c *Client) SetFlag(ctx context.Context, cardIDs []int64, flag models.Flag) error {
	if !flag.Valid() {
		return fmt.Errorf("hostapi: invalid flag %d", flag)
	}
	_, err := call[any](ctx, c, http.MethodPost, "/api/cards/flag", map[string]any{
		"cards": cardIDs,
		"flag":  flag,
	})
	return err
}

// SetSuspended suspends or unsuspends every given card.
func (c *Client) SetSuspended(ctx context.Context, cardIDs []int64, suspended bool) error {
	_, err := call[any](ctx, c, http.MethodPost, "/api/cards/suspend", map[string]any{
		"cards":     cardIDs,
		"suspended": suspended,
	})
	return err
}

// UpdateFields applies a partial field update to a note.
func (c *Client) UpdateFields(ctx context.Context, noteID int64, fields map[string]string) error {
	_, err := call[any](ctx, c, http.MethodPatch, fmt.Sprintf("/api/notes/%d/fields", noteID), map[string]any{
		"fields": fields,
	})
	return err
}

// SetTags replaces a note's tags.
func (c *Client) SetTags(ctx context.Context, noteID int64, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	_, err := call[any](ctx, c, http.MethodPut, fmt.Sprintf("/api/notes/%d/tags", noteID), map[string]any{
		"tags": tags,
	})
	return err
}

// AddNote creates a single note and returns its id.
func (c *Client) AddNote(ctx context.Context, n NewNote) (int64, error) {
	out, err := call[struct {
		ID int64 `json:"id"`
	}](ctx, c, http.MethodPost, "/api/notes", n)
	if err != nil {
		return 0, err
	}
	return out.ID, nil
}

// AddNotes creates notes in one batch and returns their ids in order.
func (c *Client) AddNotes(ctx context.Context, notes []NewNote) ([]int64, error) {
	out, err := call[struct {
		IDs []int64 `json:"ids"`
	}](ctx, c, http.MethodPost, "/api/notes/batch", map[string]any{"notes": notes})
	if err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// GenerateAudio asks the host to synthesise speech for text and returns a
// reference that can be stored in a note field.
func (c *Client) GenerateAudio(ctx context.Context, text string) (string, error) {
	out, err := call[struct {
		Reference string `json:"reference"`
	}](ctx, c, http.MethodPost, "/api/tts", map[string]string{"text": text})
	if err != nil {
		return "", err
	}
	if out.Reference == "" {
		return "", fmt.Errorf("hostapi: tts returned an empty reference")
	}
	return out.Reference, nil
}

// Query runs a read-only query against the collection.
func (c *Client) Query(ctx context.Context, query string) (*QueryResult, error) {
	out, err := call[QueryResult](ctx, c, http.MethodPost, "/api/query", map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the host answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/schema", nil)
	return err
}
