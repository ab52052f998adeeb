package models

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the Item variant.
type Kind string

// Item kinds.
const (
	KindNote Kind = "note"
	KindCard Kind = "card"
)

// Item is one table row: a note, or a card together with its note.
// Card is meaningful only when Kind is KindCard.
type Item struct {
	Kind Kind
	Note Note
	Deck string
	Card Card
}

// NoteItem builds a note-kind item.
func NoteItem(n Note, deck string) Item {
	return Item{Kind: KindNote, Note: n, Deck: deck}
}

// CardItem builds a card-kind item.
func CardItem(n Note, c Card) Item {
	c.NoteID = n.ID
	return Item{Kind: KindCard, Note: n, Deck: c.Deck, Card: c}
}

// ID returns the note id for notes and the card id for cards.
func (it Item) ID() int64 {
	switch it.Kind {
	case KindNote:
		return it.Note.ID
	case KindCard:
		return it.Card.ID
	}
	panic(fmt.Sprintf("models: item with unknown kind %q", it.Kind))
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	out.Note = it.Note.Clone()
	return out
}

// IndexByID returns the position of the item with the given id, or -1.
func IndexByID(items []Item, id int64) int {
	for i := range items {
		if items[i].ID() == id {
			return i
		}
	}
	return -1
}

// wireItem is the host API representation of an item.
type wireItem struct {
	Type   Kind              `json:"type"`
	ID     int64             `json:"id"`
	NoteID int64             `json:"note_id,omitempty"`
	Model  string            `json:"model"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags"`
	Deck   string            `json:"deck"`

	Flag     Flag  `json:"flag,omitempty"`
	Queue    Queue `json:"queue,omitempty"`
	CardType Queue `json:"card_type,omitempty"`
	Interval int   `json:"interval,omitempty"`
	Due      int64 `json:"due,omitempty"`
}

// MarshalJSON encodes the item in the host API shape.
func (it Item) MarshalJSON() ([]byte, error) {
	w := wireItem{
		Type:   it.Kind,
		Model:  it.Note.Model,
		Fields: it.Note.Fields,
		Tags:   it.Note.Tags,
		Deck:   it.Deck,
	}
	switch it.Kind {
	case KindNote:
		w.ID = it.Note.ID
	case KindCard:
		w.ID = it.Card.ID
		w.NoteID = it.Note.ID
		w.Flag = it.Card.Flag
		w.Queue = it.Card.Queue
		w.CardType = it.Card.Type
		w.Interval = it.Card.Interval
		w.Due = it.Card.Due
	default:
		return nil, fmt.Errorf("models: cannot encode item kind %q", it.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the host API shape, rejecting unknown kinds.
func (it *Item) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Fields == nil {
		w.Fields = map[string]string{}
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	switch w.Type {
	case KindNote:
		*it = NoteItem(Note{ID: w.ID, Model: w.Model, Fields: w.Fields, Tags: w.Tags}, w.Deck)
	case KindCard:
		n := Note{ID: w.NoteID, Model: w.Model, Fields: w.Fields, Tags: w.Tags}
		*it = CardItem(n, Card{
			ID:       w.ID,
			Deck:     w.Deck,
			Flag:     w.Flag,
			Queue:    w.Queue,
			Type:     w.CardType,
			Interval: w.Interval,
			Due:      w.Due,
		})
	default:
		return fmt.Errorf("models: unknown item type %q", w.Type)
	}
	return nil
}
