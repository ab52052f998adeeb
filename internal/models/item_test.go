package models

import (
	"encoding/json"
	"testing"
)

func TestItemUnmarshal_Card(t *testing.T) {
	raw := `{"type":"card","id":11,"note_id":7,"model":"Basic","fields":{"Front":"Q"},"tags":["a"],"deck":"Default","flag":3,"queue":-1,"card_type":2,"interval":4}`
	var it Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.Kind != KindCard {
		t.Fatalf("kind = %q", it.Kind)
	}
	if it.ID() != 11 || it.Note.ID != 7 || it.Card.NoteID != 7 {
		t.Errorf("ids = %d/%d/%d", it.ID(), it.Note.ID, it.Card.NoteID)
	}
	if !it.Card.Suspended() || it.Card.Type != QueueReview {
		t.Errorf("card = %+v", it.Card)
	}
	if it.Deck != "Default" || it.Card.Flag != 3 {
		t.Errorf("deck/flag = %q/%d", it.Deck, it.Card.Flag)
	}
}

func TestItemUnmarshal_NoteDefaults(t *testing.T) {
	var it Item
	if err := json.Unmarshal([]byte(`{"type":"note","id":5,"model":"Basic"}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.ID() != 5 {
		t.Errorf("id = %d", it.ID())
	}
	if it.Note.Fields == nil || it.Note.Tags == nil {
		t.Error("fields and tags should be non-nil")
	}
}

func TestItemUnmarshal_UnknownKind(t *testing.T) {
	var it Item
	if err := json.Unmarshal([]byte(`{"type":"deck","id":1}`), &it); err == nil {
		t.Fatal("expected error for unknown item type")
	}
}

func TestItemRoundTrip(t *testing.T) {
	in := CardItem(Note{ID: 1, Model: "Basic", Fields: map[string]string{"Front": "x"}, Tags: []string{}},
		Card{ID: 2, Deck: "D", Flag: 1, Queue: QueueReview, Type: QueueReview, Interval: 3})
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID() != 2 || out.Note.ID != 1 || out.Card.Interval != 3 || out.Deck != "D" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestNoteCloneDoesNotAlias(t *testing.T) {
	n := Note{Fields: map[string]string{"Front": "a"}, Tags: []string{"x"}}
	c := n.Clone()
	c.Fields["Front"] = "b"
	c.Tags[0] = "y"
	if n.Fields["Front"] != "a" || n.Tags[0] != "x" {
		t.Error("clone aliases the original")
	}
}

func TestFlagNames(t *testing.T) {
	if Flag(0).String() != "none" || Flag(7).String() != "purple" {
		t.Errorf("names = %s/%s", Flag(0), Flag(7))
	}
	if Flag(8).Valid() || Flag(-1).Valid() {
		t.Error("out-of-range flags must be invalid")
	}
	if len(Flags()) != 8 {
		t.Errorf("Flags() len = %d", len(Flags()))
	}
}
