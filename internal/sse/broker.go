// Package sse pushes list-staleness, notifications and collection changes to
// open browser tabs as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeItemsStale        = "items.stale"
	TypeNotify            = "notify"
	TypeCollectionChanged = "collection.changed"
)

// keepAlive is how often an idle stream gets a comment line so proxies keep
// the connection open.
const keepAlive = 25 * time.Second

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// outgoing is an event on its way into the loop. Coalesced events carry a
// key; repeats of the same type and key inside one window are merged into a
// single trailing delivery.
type outgoing struct {
	Event
	key       string
	coalesced bool
}

func (o outgoing) slot() string { return o.Type + "|" + o.key }

// membership asks the loop to add or remove a stream. The loop closes ack
// once the stream count reflects the change.
type membership struct {
	ch  chan []byte
	ack chan struct{}
}

// Broker fans events out to connected streams.
//
// One loop goroutine owns the stream set, the sequence counter and the
// coalescing state. Public methods talk to it over channels.
type Broker struct {
	window time.Duration

	join  chan membership
	leave chan membership
	in    chan outgoing

	streams atomic.Int64
	closed  atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewBroker creates a broker that delivers at most one items.stale event per
// list key, and one collection.changed event, per window. Suppressed repeats
// are held and flushed together when the earliest open window ends.
func NewBroker(window time.Duration) *Broker {
	if window <= 0 {
		window = 2 * time.Second
	}

	b := &Broker{
		window: window,
		join:   make(chan membership),
		leave:  make(chan membership),
		in:     make(chan outgoing, 256),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)

	streams := make(map[chan []byte]struct{})
	sent := make(map[string]time.Time)
	held := make(map[string]outgoing)
	var seq uint64

	flush := time.NewTimer(b.window)
	flush.Stop()
	defer flush.Stop()
	armed := false

	deliver := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))
		for ch := range streams {
			select {
			case ch <- frame:
			default:
				// Slow stream; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stop:
			for ch := range streams {
				close(ch)
			}
			b.streams.Store(0)
			return

		case m := <-b.join:
			streams[m.ch] = struct{}{}
			b.streams.Store(int64(len(streams)))
			close(m.ack)

		case m := <-b.leave:
			if _, ok := streams[m.ch]; ok {
				delete(streams, m.ch)
				close(m.ch)
				b.streams.Store(int64(len(streams)))
			}
			close(m.ack)

		case out := <-b.in:
			if !out.coalesced {
				deliver(out.Event)
				continue
			}
			now := time.Now()
			if last, ok := sent[out.slot()]; ok && now.Sub(last) < b.window {
				held[out.slot()] = out
				if !armed {
					flush.Reset(b.window - now.Sub(last))
					armed = true
				}
				continue
			}
			sent[out.slot()] = now
			deliver(out.Event)

		case now := <-flush.C:
			armed = false
			for slot, out := range held {
				sent[slot] = now
				deliver(out.Event)
			}
			clear(held)
			for slot, at := range sent {
				if now.Sub(at) >= b.window {
					delete(sent, slot)
				}
			}
		}
	}
}

// Close stops the loop and closes every stream channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.done
}

// Subscribe registers a stream and returns its channel of encoded frames.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	m := membership{ch: ch, ack: make(chan struct{})}
	select {
	case b.join <- m:
		<-m.ack
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	m := membership{ch: ch, ack: make(chan struct{})}
	select {
	case b.leave <- m:
		<-m.ack
	case <-b.done:
	}
}

// ClientCount returns the number of connected streams.
func (b *Broker) ClientCount() int {
	return int(b.streams.Load())
}

func (b *Broker) send(out outgoing) {
	if b.closed.Load() {
		return
	}
	select {
	case b.in <- out:
	case <-b.done:
	}
}

// Publish sends an event to every stream immediately.
func (b *Broker) Publish(event Event) {
	b.send(outgoing{Event: event})
}

// PublishStale tells clients that the item list under key is stale.
func (b *Broker) PublishStale(key string) {
	b.send(outgoing{
		Event:     Event{Type: TypeItemsStale, Data: map[string]string{"key": key}},
		key:       key,
		coalesced: true,
	})
}

// PublishCollectionChanged reports an external write to the collection file.
func (b *Broker) PublishCollectionChanged(path string) {
	b.send(outgoing{
		Event:     Event{Type: TypeCollectionChanged, Data: map[string]string{"path": path}},
		coalesced: true,
	})
}

// ServeHTTP streams events to one browser tab (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	// Clients reconnect after this many milliseconds when the stream drops.
	_, _ = fmt.Fprint(w, "retry: 3000\n\n")
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
