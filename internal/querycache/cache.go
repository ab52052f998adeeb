// Package querycache caches host reads by key, deduplicates concurrent
// identical reads, and invalidates entries after successful mutations.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle state of a cache entry.
type Status string

// Entry states. An entry moves idle → fetching → ready|error, ready → stale
// on invalidation, and stale → fetching on the next read.
const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusReady    Status = "ready"
	StatusStale    Status = "stale"
	StatusError    Status = "error"
)

// Event is delivered to subscribers whenever an entry changes state.
type Event struct {
	Key    string
	Status Status
}

// Snapshot is a read-only view of an entry.
type Snapshot struct {
	Status    Status
	Value     any
	Err       error
	FetchedAt time.Time
}

type entry struct {
	status    Status
	value     any
	hasValue  bool
	err       error
	fetchedAt time.Time
	// permanent entries never expire by age.
	permanent bool
	// invalidated is set when a mutation lands while a fetch is in flight;
	// that fetch's result is stored as stale.
	invalidated bool
}

// Options configure a Cache.
type Options struct {
	// Size bounds the number of cached keys.
	Size int
	// FreshFor is how long a ready entry is served without refetching.
	// Zero means entries stay fresh until invalidated.
	FreshFor time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Cache is a keyed request cache. It is safe for concurrent use and is
// meant to be constructed once per application and passed down.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *entry]
	group    singleflight.Group
	freshFor time.Duration
	now      func() time.Time

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// New creates a cache.
func New(opts Options) (*Cache, error) {
	size := opts.Size
	if size <= 0 {
		size = 256
	}
	entries, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, fmt.Errorf("querycache: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:  entries,
		freshFor: opts.FreshFor,
		now:      now,
		subs:     make(map[int]func(Event)),
	}, nil
}

// Subscribe registers fn for every entry state change and returns a function
// that removes the subscription. fn must not block.
func (c *Cache) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) notify(key string, status Status) {
	c.subMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(Event{Key: key, Status: status})
	}
}

// Peek returns the entry for key without fetching.
func (c *Cache) Peek(key string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(key)
	if !ok {
		return Snapshot{Status: StatusIdle}, false
	}
	return Snapshot{Status: e.status, Value: e.value, Err: e.err, FetchedAt: e.fetchedAt}, true
}

// fresh reports whether e can be served without a fetch. Caller holds c.mu.
func (c *Cache) fresh(e *entry) bool {
	if e.status != StatusReady || !e.hasValue {
		return false
	}
	if e.permanent || c.freshFor <= 0 {
		return true
	}
	return c.now().Sub(e.fetchedAt) < c.freshFor
}

// Invalidate marks every entry whose key starts with prefix as stale. The
// data is kept for display; the next read refetches. An entry being fetched
// turns stale when its fetch completes, since the host may have answered
// before the mutation.
func (c *Cache) Invalidate(prefix string) []string {
	c.mu.Lock()
	var touched []string
	for _, key := range c.entries.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		switch e.status {
		case StatusReady:
			e.status = StatusStale
			touched = append(touched, key)
		case StatusFetching:
			e.invalidated = true
		}
	}
	c.mu.Unlock()
	for _, key := range touched {
		c.notify(key, StatusStale)
	}
	return touched
}

// Remove drops an entry entirely.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	c.entries.Remove(key)
	c.mu.Unlock()
	c.notify(key, StatusIdle)
}

type fetchOpts struct {
	force     bool
	permanent bool
}

// FetchOption tunes a single Fetch call.
type FetchOption func(*fetchOpts)

// Force bypasses freshness and always reaches the fetcher (still deduplicated
// with any identical read already in flight).
func Force() FetchOption {
	return func(o *fetchOpts) { o.force = true }
}

// Permanent keeps the entry fresh regardless of age until invalidated.
func Permanent() FetchOption {
	return func(o *fetchOpts) { o.permanent = true }
}

// Fetch returns the cached value for key when fresh, otherwise calls fn once
// for all concurrent callers and stores the result. A failed fetch leaves the
// entry in the error state and is not retried.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error), opts ...FetchOption) (T, error) {
	var o fetchOpts
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	c.mu.Lock()
	if e, ok := c.entries.Get(key); ok && !o.force && c.fresh(e) {
		v, _ := e.value.(T)
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		c.markFetching(key, o.permanent)
		// The shared fetch outlives any single caller.
		v, err := fn(context.WithoutCancel(ctx))
		c.store(key, v, err)
		return v, err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("querycache: key %q holds %T", key, res.Val)
		}
		return v, nil
	}
}

func (c *Cache) markFetching(key string, permanent bool) {
	c.mu.Lock()
	e, ok := c.entries.Peek(key)
	if !ok {
		e = &entry{}
		c.entries.Add(key, e)
	}
	e.status = StatusFetching
	e.permanent = permanent
	e.invalidated = false
	c.mu.Unlock()
	c.notify(key, StatusFetching)
}

func (c *Cache) store(key string, v any, err error) {
	c.mu.Lock()
	e, ok := c.entries.Peek(key)
	if !ok {
		e = &entry{}
		c.entries.Add(key, e)
	}
	status := StatusReady
	if err != nil {
		status = StatusError
		e.err = err
	} else {
		e.value = v
		e.hasValue = true
		e.err = nil
		e.fetchedAt = c.now()
		if e.invalidated {
			status = StatusStale
		}
	}
	e.invalidated = false
	e.status = status
	c.mu.Unlock()
	c.notify(key, status)
}

// Mutate runs fn and, only when it succeeds, invalidates every key under the
// given prefixes. Errors are returned untouched so callers can report them.
func Mutate[T any](ctx context.Context, c *Cache, invalidate []string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	for _, prefix := range invalidate {
		c.Invalidate(prefix)
	}
	return v, nil
}
