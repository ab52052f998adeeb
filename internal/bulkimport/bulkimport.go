// Package bulkimport turns pasted tab-separated text into note drafts.
package bulkimport

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/flashdesk/internal/apperr"
	"github.com/starford/flashdesk/internal/hostapi"
)

// Parsed is pasted TSV split into headers and records. Every record has
// exactly len(Headers) values.
type Parsed struct {
	Headers []string
	Records [][]string
}

// ParseTSV reads the first line as headers and every following non-empty
// line as a record. Missing trailing columns become "" and extra columns are
// dropped.
func ParseTSV(text string) Parsed {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var p Parsed
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, h := range strings.Split(strings.TrimSuffix(line, "\r"), "\t") {
			p.Headers = append(p.Headers, strings.TrimSpace(h))
		}
		start = i + 1
		break
	}
	if start < 0 {
		return p
	}

	for _, line := range lines[start:] {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		rec := make([]string, len(p.Headers))
		copy(rec, cols)
		p.Records = append(p.Records, rec)
	}
	return p
}

// Partition compares pasted headers with the model fields.
type Partition struct {
	// Imported headers are model fields present in the paste.
	Imported []string
	// Ignored headers are not model fields.
	Ignored []string
	// Missing model fields are imported as empty.
	Missing []string
}

// PartitionHeaders computes the three disjoint header sets.
func PartitionHeaders(headers, modelFields []string) Partition {
	var p Partition
	for _, h := range headers {
		if h == "" {
			continue
		}
		switch {
		case slices.Contains(modelFields, h):
			if !slices.Contains(p.Imported, h) {
				p.Imported = append(p.Imported, h)
			}
		case !slices.Contains(p.Ignored, h):
			p.Ignored = append(p.Ignored, h)
		}
	}
	for _, f := range modelFields {
		if !slices.Contains(headers, f) {
			p.Missing = append(p.Missing, f)
		}
	}
	return p
}

// ParseTagList splits a comma-separated tag list, trimming each entry and
// dropping empty ones.
func ParseTagList(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// Drafts builds one note per record. Every model field is present; fields
// not in the paste are empty. When a header repeats, its first column wins.
func Drafts(p Parsed, model string, modelFields []string, deck string, tags []string) []hostapi.NewNote {
	pos := make(map[string]int, len(p.Headers))
	for i, h := range p.Headers {
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}
	notes := make([]hostapi.NewNote, 0, len(p.Records))
	for _, rec := range p.Records {
		fields := make(map[string]string, len(modelFields))
		for _, f := range modelFields {
			if i, ok := pos[f]; ok {
				fields[f] = rec[i]
			} else {
				fields[f] = ""
			}
		}
		notes = append(notes, hostapi.NewNote{
			Model:  model,
			Deck:   deck,
			Fields: fields,
			Tags:   slices.Clone(tags),
		})
	}
	return notes
}

// Ready reports whether the import can be submitted.
func Ready(model, deck string, p Parsed) bool {
	return strings.TrimSpace(model) != "" && strings.TrimSpace(deck) != "" && len(p.Records) > 0
}

// Adder creates notes in a batch.
type Adder interface {
	AddNotes(ctx context.Context, notes []hostapi.NewNote) ([]int64, error)
}

// Request is a submitted import form.
type Request struct {
	Text  string
	Model string
	Deck  string
	Tags  string
}

// Preview is everything the form shows before submission.
type Preview struct {
	Parsed    Parsed
	Partition Partition
	Tags      []string
	Ready     bool
}

// Prepare parses req against the model fields.
func Prepare(req Request, modelFields []string) Preview {
	p := ParseTSV(req.Text)
	return Preview{
		Parsed:    p,
		Partition: PartitionHeaders(p.Headers, modelFields),
		Tags:      ParseTagList(req.Tags),
		Ready:     Ready(req.Model, req.Deck, p),
	}
}

// Submit sends all drafts as one batch. The adder is expected to invalidate
// item lists on success.
func Submit(ctx context.Context, a Adder, req Request, modelFields []string) ([]int64, error) {
	pv := Prepare(req, modelFields)
	if !pv.Ready {
		return nil, fmt.Errorf("bulkimport: model, deck and at least one record required: %w", apperr.ErrInvalidInput)
	}
	notes := Drafts(pv.Parsed, req.Model, modelFields, req.Deck, pv.Tags)
	ids, err := a.AddNotes(ctx, notes)
	if err != nil {
		return nil, fmt.Errorf("bulkimport: submit %d notes: %w", len(notes), err)
	}
	return ids, nil
}
