package hostapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flashdesk/internal/apperr"
	"github.com/starford/flashdesk/internal/models"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithAPIKey("hostkey"))
}

func jsonResponse(data any) []byte {
	b, _ := json.Marshal(map[string]any{"data": data})
	return b
}

func TestSchema(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/schema", r.URL.Path)
		assert.Equal(t, "Bearer hostkey", r.Header.Get("Authorization"))
		w.Write(jsonResponse(map[string]any{
			"models": map[string][]string{"Basic": {"Front", "Back"}},
			"decks":  []string{"Default"},
		}))
	})

	s, err := client.Schema(context.Background())
	require.NoError(t, err)
	fields, ok := s.Fields("Basic")
	require.True(t, ok)
	assert.Equal(t, []string{"Front", "Back"}, fields)
	assert.Equal(t, []string{"Default"}, s.Decks)
}

func TestItems_NormalizesSearch(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "is:suspended flag:1", q.Get("search"))
		assert.Equal(t, "Basic", q.Get("model"))
		assert.Equal(t, "cards", q.Get("mode"))
		w.Write(jsonResponse([]map[string]any{
			{"type": "card", "id": 2, "note_id": 1, "model": "Basic", "fields": map[string]string{"Front": "Q"}, "deck": "Default", "flag": 1, "queue": -1},
		}))
	})

	items, err := client.Items(context.Background(), ItemsQuery{Model: "Basic", Search: "is:suspend flag:1", Mode: models.ModeCards})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.KindCard, items[0].Kind)
	assert.Equal(t, int64(2), items[0].ID())
}

func TestItems_DefaultsToNotesMode(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "notes", r.URL.Query().Get("mode"))
		assert.False(t, r.URL.Query().Has("search"))
		w.Write(jsonResponse(nil))
	})

	items, err := client.Items(context.Background(), ItemsQuery{Model: "Basic"})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestUpdateFields_SendsPartialMap(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/notes/42/fields", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"fields":{"Front":"Q2"}}`, string(body))
		w.Write(jsonResponse(true))
	})

	require.NoError(t, client.UpdateFields(context.Background(), 42, map[string]string{"Front": "Q2"}))
}

func TestSetTags_NilBecomesEmptyList(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"tags":[]}`, string(body))
		w.Write(jsonResponse(true))
	})

	require.NoError(t, client.SetTags(context.Background(), 1, nil))
}

func TestSetFlag_RejectsInvalidFlag(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	assert.Error(t, client.SetFlag(context.Background(), []int64{1}, 9))
}

func TestAddNotes(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notes/batch", r.URL.Path)
		var req struct {
			Notes []NewNote `json:"notes"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Notes, 2)
		w.Write(jsonResponse(map[string]any{"ids": []int64{10, 11}}))
	})

	ids, err := client.AddNotes(context.Background(), []NewNote{{Model: "Basic"}, {Model: "Basic"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
}

func TestGenerateAudio_EmptyReference(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(jsonResponse(map[string]string{"reference": ""}))
	})
	_, err := client.GenerateAudio(context.Background(), "hello")
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(jsonResponse(map[string]any{
			"columns":    []string{"id"},
			"rows":       [][]string{{"1"}, {"2"}},
			"row_count":  2,
			"elapsed_ms": 3.2,
		}))
	})
	res, err := client.Query(context.Background(), "select id from notes")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, []string{"id"}, res.Columns)
}

func TestQuery_MixedCellTypes(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"columns":["id","model","ease","due","flagged"],` +
			`"rows":[[1700000000123,"Basic",2.5,null,true],[7,"a\tb",0,-1,false]],` +
			`"row_count":2,"elapsed_ms":0.4}}`))
	})
	res, err := client.Query(context.Background(), "select id, model, ease, due, flagged from cards")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1700000000123", "Basic", "2.5", "", "true"},
		{"7", "a\tb", "0", "-1", "false"},
	}, res.Rows)
	assert.Equal(t, 2, res.RowCount)
	assert.InDelta(t, 0.4, res.ElapsedMS, 1e-9)
}

func TestErrorEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"string error", `{"error":"no such model"}`, "no such model"},
		{"object error", `{"error":{"code":"BAD_QUERY","message":"syntax"}}`, "BAD_QUERY: syntax"},
		{"detail", `{"detail":"read only"}`, "read only"},
		{"raw", `oops`, "HTTP 500: oops"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tc.body))
			})
			_, err := client.Schema(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.True(t, errors.Is(err, apperr.ErrHost))
		})
	}
}

func TestTransportErrorIsHostError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url).Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrHost))
}
