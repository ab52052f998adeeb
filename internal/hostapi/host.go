package hostapi

import (
	"context"

	"github.com/starford/flashdesk/internal/models"
)

// Host defines the operations flashdesk needs from the host application.
// Consumers should depend on this interface rather than *Client so tests
// can substitute fakes.
type Host interface {
	Schema(ctx context.Context) (*models.Schema, error)
	Items(ctx context.Context, q ItemsQuery) ([]models.Item, error)
	SetFlag(ctx context.Context, cardIDs []int64, flag models.Flag) error
	SetSuspended(ctx context.Context, cardIDs []int64, suspended bool) error
	UpdateFields(ctx context.Context, noteID int64, fields map[string]string) error
	SetTags(ctx context.Context, noteID int64, tags []string) error
	AddNote(ctx context.Context, n NewNote) (int64, error)
	AddNotes(ctx context.Context, notes []NewNote) ([]int64, error)
	GenerateAudio(ctx context.Context, text string) (string, error)
	Query(ctx context.Context, query string) (*QueryResult, error)
	Ping(ctx context.Context) error
}

// Verify *Client satisfies Host at compile time.
var _ Host = (*Client)(nil)
