// Package listview holds the per-session list state: the committed items,
// the transition in flight, the load status and the selected item.
package listview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/querycache"
	"github.com/starford/flashdesk/internal/viewstate"
)

// Status of the list. Stale keeps showing the committed items but flags
// them as outdated until the next commit.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusReady    Status = "ready"
	StatusStale    Status = "stale"
	StatusError    Status = "error"
)

// Loader fetches the items for a view state.
type Loader interface {
	Items(ctx context.Context, q hostapi.ItemsQuery, force bool) ([]models.Item, error)
	Cache() *querycache.Cache
}

var _ Loader = (*noteservice.Service)(nil)

// Snapshot is a consistent copy of the controller state for rendering.
type Snapshot struct {
	State    viewstate.State
	Items    []models.Item
	Status   Status
	Pending  bool
	Err      error
	Selected *models.Item
	// Generation of the last committed transition.
	Generation uint64
}

// Controller is safe for concurrent use. Create one per browser session.
type Controller struct {
	loader Loader
	logger *slog.Logger
	unsub  func()

	mu        sync.Mutex
	state     viewstate.State
	items     []models.Item
	status    Status
	err       error
	gen       uint64
	committed uint64
	key       string
	selected  *models.Item
	settled   chan struct{}
	closed    bool
	cancel    context.CancelFunc
	onChange  func(Snapshot)
}

// New creates a controller showing st. Nothing is fetched until Navigate.
func New(loader Loader, st viewstate.State, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		loader:  loader,
		logger:  logger,
		state:   st,
		status:  StatusIdle,
		settled: make(chan struct{}),
	}
	c.unsub = loader.Cache().Subscribe(c.onCacheEvent)
	return c
}

// OnChange registers fn to be called after every status change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Close detaches the controller from the cache.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.unsub()
}

func itemsQuery(st viewstate.State) hostapi.ItemsQuery {
	return hostapi.ItemsQuery{Model: st.Model, Search: st.EffectiveSearch(), Mode: st.Mode}
}

// Navigate starts a transition to st and returns its generation. The
// previously committed items stay visible while it runs. Only the latest
// transition commits; earlier ones are discarded when they finish.
func (c *Controller) Navigate(st viewstate.State) uint64 {
	return c.start(st, false)
}

// Refresh re-runs the current state, bypassing cache freshness.
func (c *Controller) Refresh() uint64 {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	return c.start(st, true)
}

func (c *Controller) start(st viewstate.State, force bool) uint64 {
	c.mu.Lock()
	if c.closed {
		gen := c.gen
		c.mu.Unlock()
		return gen
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.state = st
	c.status = StatusFetching
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	snap := c.snapshotLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	go c.load(ctx, gen, st, force)
	return gen
}

// load runs one transition. Cancelling ctx abandons the wait but the shared
// cache fetch itself keeps running for other readers.
func (c *Controller) load(ctx context.Context, gen uint64, st viewstate.State, force bool) {
	q := itemsQuery(st)
	items, err := c.loader.Items(ctx, q, force)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.committed = gen
	if err != nil {
		c.status = StatusError
		c.err = err
		c.logger.Warn("listview: load failed",
			slog.String("model", st.Model),
			slog.String("search", q.Search),
			slog.String("error", err.Error()))
	} else {
		c.items = items
		c.key = noteservice.ItemsKey(q)
		c.status = StatusReady
		c.err = nil
		c.reselectLocked()
	}
	close(c.settled)
	c.settled = make(chan struct{})
	snap := c.snapshotLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// reselectLocked replaces the selection with its fresh copy, or clears it
// when the item is no longer listed.
func (c *Controller) reselectLocked() {
	if c.selected == nil {
		return
	}
	i := models.IndexByID(c.items, c.selected.ID())
	if i < 0 || c.items[i].Kind != c.selected.Kind {
		c.selected = nil
		return
	}
	fresh := c.items[i].Clone()
	c.selected = &fresh
}

func (c *Controller) onCacheEvent(ev querycache.Event) {
	if ev.Status != querycache.StatusStale {
		return
	}
	c.mu.Lock()
	if ev.Key != c.key || c.status != StatusReady {
		c.mu.Unlock()
		return
	}
	c.status = StatusStale
	snap := c.snapshotLocked()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// Wait blocks until generation gen, or a newer one, has committed.
func (c *Controller) Wait(ctx context.Context, gen uint64) (Snapshot, error) {
	for {
		c.mu.Lock()
		if c.committed >= gen || c.closed {
			snap := c.snapshotLocked()
			c.mu.Unlock()
			return snap, nil
		}
		ch := c.settled
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case <-ch:
		}
	}
}

// Pending reports whether a transition is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed < c.gen
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      c.state,
		Items:      c.items,
		Status:     c.status,
		Pending:    c.committed < c.gen,
		Err:        c.err,
		Generation: c.committed,
	}
	if c.selected != nil {
		sel := c.selected.Clone()
		s.Selected = &sel
	}
	return s
}

// Select makes the listed item with id the only selection. It returns false
// when no such item is listed.
func (c *Controller) Select(id int64) (models.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := models.IndexByID(c.items, id)
	if i < 0 {
		return models.Item{}, false
	}
	sel := c.items[i].Clone()
	c.selected = &sel
	return sel.Clone(), true
}

// ClearSelection drops the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

// Selected returns the selected item.
func (c *Controller) Selected() (models.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return models.Item{}, false
	}
	return c.selected.Clone(), true
}

// Patch applies fn to the selected item in place so the panel shows the
// edited value before the next refetch lands. The listed copy is patched
// too. It returns false when nothing is selected.
func (c *Controller) Patch(fn func(*models.Item)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return false
	}
	fn(c.selected)
	if i := models.IndexByID(c.items, c.selected.ID()); i >= 0 {
		items := make([]models.Item, len(c.items))
		copy(items, c.items)
		items[i] = c.selected.Clone()
		c.items = items
	}
	return true
}
