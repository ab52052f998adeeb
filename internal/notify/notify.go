// Package notify records transient user notifications and pushes them to
// connected browsers.
package notify

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Level of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is one toast.
type Notification struct {
	ID      string    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Ago renders the notification age, e.g. "3 seconds ago".
func (n Notification) Ago() string {
	return humanize.Time(n.At)
}

// Publisher receives every new notification.
type Publisher interface {
	PublishNotification(n Notification)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Notification)

func (f PublisherFunc) PublishNotification(n Notification) { f(n) }

// Center keeps the most recent notifications in a ring.
type Center struct {
	mu   sync.Mutex
	ring []Notification
	next int
	full bool
	pub  Publisher
	now  func() time.Time
}

// NewCenter keeps up to size notifications. pub may be nil.
func NewCenter(size int, pub Publisher) *Center {
	if size <= 0 {
		size = 50
	}
	return &Center{ring: make([]Notification, size), pub: pub, now: time.Now}
}

// Info records an informational notification.
func (c *Center) Info(msg string) Notification { return c.push(LevelInfo, msg) }

// Error records a failure notification.
func (c *Center) Error(msg string) Notification { return c.push(LevelError, msg) }

func (c *Center) push(level Level, msg string) Notification {
	n := Notification{ID: uuid.NewString(), Level: level, Message: msg, At: c.now()}
	c.mu.Lock()
	c.ring[c.next] = n
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}
	pub := c.pub
	c.mu.Unlock()

	if pub != nil {
		pub.PublishNotification(n)
	}
	return n
}

// Recent returns notifications newer than since, oldest first.
func (c *Center) Recent(since time.Time) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ordered []Notification
	if c.full {
		ordered = append(ordered, c.ring[c.next:]...)
	}
	ordered = append(ordered, c.ring[:c.next]...)

	out := make([]Notification, 0, len(ordered))
	for _, n := range ordered {
		if n.At.After(since) {
			out = append(out, n)
		}
	}
	return out
}
