// Package noteservice coordinates host API calls with the request cache.
// Every read goes through the cache; every successful write invalidates the
// item lists it affects.
package noteservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/flashdesk/internal/apperr"
	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/querycache"
)

// itemLists is the invalidation set for any collection write.
var itemLists = []string{querycache.ItemsPrefix}

// Service is shared by the web, MCP and CLI surfaces.
type Service struct {
	host  hostapi.Host
	cache *querycache.Cache
}

// NewService creates a new note service.
func NewService(host hostapi.Host, cache *querycache.Cache) *Service {
	return &Service{host: host, cache: cache}
}

// Cache exposes the request cache for subscribers.
func (s *Service) Cache() *querycache.Cache { return s.cache }

// Host exposes the underlying host client.
func (s *Service) Host() hostapi.Host { return s.host }

// Schema returns the collection schema. It is fetched once and kept until
// explicitly invalidated; a failed fetch is retried only on the next call.
func (s *Service) Schema(ctx context.Context) (*models.Schema, error) {
	return querycache.Fetch(ctx, s.cache, querycache.SchemaKey, s.host.Schema, querycache.Permanent())
}

// ItemsKey returns the cache key for q. q.Search must be the effective search.
func ItemsKey(q hostapi.ItemsQuery) string {
	mode := q.Mode
	if mode == "" {
		mode = models.ModeNotes
	}
	return querycache.ItemsKey(q.Model, mode, q.Search)
}

// Items lists the items matching q. force skips the freshness check.
func (s *Service) Items(ctx context.Context, q hostapi.ItemsQuery, force bool) ([]models.Item, error) {
	if strings.TrimSpace(q.Model) == "" {
		return nil, fmt.Errorf("noteservice: items: model required: %w", apperr.ErrInvalidInput)
	}
	var opts []querycache.FetchOption
	if force {
		opts = append(opts, querycache.Force())
	}
	return querycache.Fetch(ctx, s.cache, ItemsKey(q), func(ctx context.Context) ([]models.Item, error) {
		return s.host.Items(ctx, q)
	}, opts...)
}

// UpdateField writes a single field of a note.
func (s *Service) UpdateField(ctx context.Context, noteID int64, field, value string) error {
	if field == "" {
		return fmt.Errorf("noteservice: update field: empty field name: %w", apperr.ErrInvalidInput)
	}
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.host.UpdateFields(ctx, noteID, map[string]string{field: value})
	})
}

// SetTags replaces a note's tags.
func (s *Service) SetTags(ctx context.Context, noteID int64, tags []string) error {
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.host.SetTags(ctx, noteID, tags)
	})
}

// SetFlag sets the flag of the given cards.
func (s *Service) SetFlag(ctx context.Context, cardIDs []int64, flag models.Flag) error {
	if !flag.Valid() {
		return fmt.Errorf("noteservice: flag %d: %w", flag, apperr.ErrInvalidInput)
	}
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.host.SetFlag(ctx, cardIDs, flag)
	})
}

// SetSuspended suspends or restores the given cards.
func (s *Service) SetSuspended(ctx context.Context, cardIDs []int64, suspended bool) error {
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.host.SetSuspended(ctx, cardIDs, suspended)
	})
}

// AddNotes creates notes in one batch.
func (s *Service) AddNotes(ctx context.Context, notes []hostapi.NewNote) ([]int64, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("noteservice: add notes: nothing to add: %w", apperr.ErrInvalidInput)
	}
	return querycache.Mutate(ctx, s.cache, itemLists, func(ctx context.Context) ([]int64, error) {
		return s.host.AddNotes(ctx, notes)
	})
}

// GenerateAudio asks the host to synthesise text. Nothing is written.
func (s *Service) GenerateAudio(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("noteservice: tts: empty text: %w", apperr.ErrInvalidInput)
	}
	return s.host.GenerateAudio(ctx, text)
}

// Query runs a read-only query. Results are never cached.
func (s *Service) Query(ctx context.Context, q string) (*hostapi.QueryResult, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("noteservice: query: empty: %w", apperr.ErrInvalidInput)
	}
	return s.host.Query(ctx, q)
}

// InvalidateItems marks every cached item list stale.
func (s *Service) InvalidateItems() []string {
	return s.cache.Invalidate(querycache.ItemsPrefix)
}

func (s *Service) mutate(ctx context.Context, fn func(context.Context) error) error {
	_, err := querycache.Mutate(ctx, s.cache, itemLists, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
