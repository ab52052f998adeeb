// Package panel implements the detail panel edits for the selected item.
package panel

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/flashdesk/internal/apperr"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/table"
)

// AudioSuffix marks a field that holds generated audio for its source field.
const AudioSuffix = "_audio"

// Service is the subset of the note service the panel writes through.
type Service interface {
	UpdateField(ctx context.Context, noteID int64, field, value string) error
	SetTags(ctx context.Context, noteID int64, tags []string) error
	SetFlag(ctx context.Context, cardIDs []int64, flag models.Flag) error
	SetSuspended(ctx context.Context, cardIDs []int64, suspended bool) error
	GenerateAudio(ctx context.Context, text string) (string, error)
}

var _ Service = (*noteservice.Service)(nil)

// Selection is patched in place after a successful write.
type Selection interface {
	Patch(fn func(*models.Item)) bool
}

// Editor applies panel edits. Every method writes to the host first and
// patches the selection only when the write succeeded; on failure nothing
// local changes.
type Editor struct {
	svc Service
}

// NewEditor creates an editor.
func NewEditor(svc Service) *Editor {
	return &Editor{svc: svc}
}

func patch(sel Selection, it *models.Item, fn func(*models.Item)) {
	fn(it)
	if sel == nil {
		return
	}
	kind, id := it.Kind, it.ID()
	sel.Patch(func(p *models.Item) {
		if p.Kind == kind && p.ID() == id {
			fn(p)
		}
	})
}

// SaveField writes a single field.
func (e *Editor) SaveField(ctx context.Context, sel Selection, it models.Item, field, value string) (models.Item, error) {
	if _, ok := it.Note.Fields[field]; !ok {
		return it, fmt.Errorf("panel: unknown field %q: %w", field, apperr.ErrInvalidInput)
	}
	if err := e.svc.UpdateField(ctx, it.Note.ID, field, value); err != nil {
		return it, err
	}
	it = it.Clone()
	patch(sel, &it, func(p *models.Item) { p.Note.Fields[field] = value })
	return it, nil
}

// ParseTags splits a whitespace-separated draft into distinct tags, keeping
// first-occurrence order.
func ParseTags(draft string) []string {
	tags := []string{}
	for _, t := range strings.Fields(draft) {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// TagDraft renders tags as the editable draft text.
func TagDraft(tags []string) string {
	return strings.Join(tags, " ")
}

// SaveTags replaces the note's tags with the parsed draft.
func (e *Editor) SaveTags(ctx context.Context, sel Selection, it models.Item, draft string) (models.Item, error) {
	tags := ParseTags(draft)
	if err := e.svc.SetTags(ctx, it.Note.ID, tags); err != nil {
		return it, err
	}
	it = it.Clone()
	patch(sel, &it, func(p *models.Item) { p.Note.Tags = slices.Clone(tags) })
	return it, nil
}

func cardOf(it models.Item) (models.Card, error) {
	switch it.Kind {
	case models.KindCard:
		return it.Card, nil
	case models.KindNote:
		return models.Card{}, fmt.Errorf("panel: note %d has no card state: %w", it.Note.ID, apperr.ErrInvalidInput)
	}
	return models.Card{}, fmt.Errorf("panel: unknown item kind %q: %w", it.Kind, apperr.ErrInvalidInput)
}

// SetFlag sets the card's flag. Setting the current flag again is a no-op on
// the host side and leaves the item unchanged.
func (e *Editor) SetFlag(ctx context.Context, sel Selection, it models.Item, flag models.Flag) (models.Item, error) {
	card, err := cardOf(it)
	if err != nil {
		return it, err
	}
	if !flag.Valid() {
		return it, fmt.Errorf("panel: flag %d: %w", flag, apperr.ErrInvalidInput)
	}
	if err := e.svc.SetFlag(ctx, []int64{card.ID}, flag); err != nil {
		return it, err
	}
	it = it.Clone()
	patch(sel, &it, func(p *models.Item) { p.Card.Flag = flag })
	return it, nil
}

// SetSuspended suspends the card, or restores it to the queue recorded in
// its type.
func (e *Editor) SetSuspended(ctx context.Context, sel Selection, it models.Item, suspended bool) (models.Item, error) {
	card, err := cardOf(it)
	if err != nil {
		return it, err
	}
	if err := e.svc.SetSuspended(ctx, []int64{card.ID}, suspended); err != nil {
		return it, err
	}
	it = it.Clone()
	patch(sel, &it, func(p *models.Item) {
		switch {
		case suspended:
			p.Card.Queue = models.QueueSuspended
		case p.Card.Suspended():
			p.Card.Queue = p.Card.Type
		}
	})
	return it, nil
}

// AudioTarget is an empty audio field whose source has text.
type AudioTarget struct {
	Field  string
	Source string
}

// AudioTargets lists the fields that can receive generated audio, in model
// field order when fields is given.
func AudioTargets(it models.Item, fields []string) []AudioTarget {
	if len(fields) == 0 {
		for f := range it.Note.Fields {
			fields = append(fields, f)
		}
		slices.Sort(fields)
	}
	var out []AudioTarget
	for _, f := range fields {
		src, ok := strings.CutSuffix(f, AudioSuffix)
		if !ok || src == "" {
			continue
		}
		srcVal, exists := it.Note.Fields[src]
		if !exists || strings.TrimSpace(srcVal) == "" {
			continue
		}
		if strings.TrimSpace(it.Note.Fields[f]) != "" {
			continue
		}
		out = append(out, AudioTarget{Field: f, Source: src})
	}
	return out
}

// GenerateAudio synthesises the source text of audioField and stores the
// returned reference in audioField.
func (e *Editor) GenerateAudio(ctx context.Context, sel Selection, it models.Item, audioField string) (models.Item, error) {
	var target *AudioTarget
	for _, t := range AudioTargets(it, nil) {
		if t.Field == audioField {
			target = &t
			break
		}
	}
	if target == nil {
		return it, fmt.Errorf("panel: %q is not an empty audio field with source text: %w", audioField, apperr.ErrInvalidInput)
	}
	ref, err := e.svc.GenerateAudio(ctx, table.StripHTML(it.Note.Fields[target.Source]))
	if err != nil {
		return it, err
	}
	return e.SaveField(ctx, sel, it, audioField, ref)
}
