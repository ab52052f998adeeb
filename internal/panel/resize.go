package panel

import "sync"

// Panel width bounds in pixels.
const (
	MinWidth = 200
	MaxWidth = 700
)

// Resizer tracks one pointer drag on the panel handle.
type Resizer struct {
	mu         sync.Mutex
	dragging   bool
	startX     int
	startWidth int
	width      int
	persist    func(int)
}

// NewResizer starts at width; persist is called with every new width.
func NewResizer(width int, persist func(int)) *Resizer {
	return &Resizer{width: clamp(width), persist: persist}
}

func clamp(w int) int {
	return min(max(w, MinWidth), MaxWidth)
}

// Down begins a drag at x. It is ignored while a drag is active.
func (r *Resizer) Down(x int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dragging {
		return false
	}
	r.dragging = true
	r.startX = x
	r.startWidth = r.width
	return true
}

// Move updates the width from the horizontal delta. Moves outside a drag
// are ignored.
func (r *Resizer) Move(x int) (int, bool) {
	r.mu.Lock()
	if !r.dragging {
		w := r.width
		r.mu.Unlock()
		return w, false
	}
	r.width = clamp(r.startWidth + (x - r.startX))
	w := r.width
	persist := r.persist
	r.mu.Unlock()

	if persist != nil {
		persist(w)
	}
	return w, true
}

// Up ends the drag.
func (r *Resizer) Up() {
	r.mu.Lock()
	r.dragging = false
	r.mu.Unlock()
}

// Dragging reports whether a drag is active.
func (r *Resizer) Dragging() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dragging
}

// Width returns the current width.
func (r *Resizer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}
