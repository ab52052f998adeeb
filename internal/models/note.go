// Package models defines the domain types for flashdesk.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Note is a content record owned by the host collection.
type Note struct {
	ID     int64             `json:"id"`
	Model  string            `json:"model"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
}

// Field returns the value of the named field, or "" when absent.
func (n Note) Field(name string) string {
	return n.Fields[name]
}

// Clone returns a deep copy so optimistic patches never alias cached data.
func (n Note) Clone() Note {
	out := n
	out.Fields = make(map[string]string, len(n.Fields))
	for k, v := range n.Fields {
		out.Fields[k] = v
	}
	out.Tags = append([]string(nil), n.Tags...)
	return out
}

// Model is a note type: a name plus its ordered field names.
type Model struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Schema lists every model and deck known to the host collection.
type Schema struct {
	Models map[string][]string `json:"models"`
	Decks  []string            `json:"decks"`
}

// ModelNames returns model names in a stable order.
func (s *Schema) ModelNames() []string {
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns the ordered field list for a model.
func (s *Schema) Fields(model string) ([]string, bool) {
	f, ok := s.Models[model]
	return f, ok
}

// Model returns the named model.
func (s *Schema) Model(name string) (Model, bool) {
	f, ok := s.Models[name]
	if !ok {
		return Model{}, false
	}
	return Model{Name: name, Fields: f}, true
}

// ViewMode selects whether the table lists notes or cards.
type ViewMode string

// View modes.
const (
	ModeNotes ViewMode = "notes"
	ModeCards ViewMode = "cards"
)

// ParseViewMode returns the mode named by s.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ModeNotes, ModeCards:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("models: unknown view mode %q", s)
}

// UnmarshalJSON rejects unknown modes.
func (m *ViewMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseViewMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
