package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// drain collects every frame already queued on ch.
func drain(ch chan []byte) []string {
	var frames []string
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, string(f))
		default:
			return frames
		}
	}
}

func count(frames []string, eventType string) int {
	n := 0
	for _, f := range frames {
		if strings.Contains(f, "event: "+eventType+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after unsubscribe = %d, want 0", n)
	}
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestPublishStaleDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishStale("items|Basic|notes|")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\n") {
			t.Errorf("missing sequence id in %q", s)
		}
		if !strings.Contains(s, "event: items.stale") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"key":"items|Basic|notes|"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestStaleCoalescedPerKey(t *testing.T) {
	b := NewBroker(300 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishStale("items|Basic|notes|")
	b.PublishStale("items|Basic|notes|")
	b.PublishStale("items|Basic|notes|")
	b.PublishStale("items|Cloze|notes|")

	time.Sleep(50 * time.Millisecond)
	if n := count(drain(ch), TypeItemsStale); n != 2 {
		t.Fatalf("leading stale events = %d, want one per key", n)
	}

	// The repeats of the first key collapse into one trailing event.
	time.Sleep(400 * time.Millisecond)
	frames := drain(ch)
	if n := count(frames, TypeItemsStale); n != 1 {
		t.Fatalf("trailing stale events = %d, want 1: %q", n, frames)
	}
	if !strings.Contains(frames[0], "items|Basic|notes|") {
		t.Errorf("trailing event for wrong key: %q", frames[0])
	}
}

func TestCollectionChangedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishCollectionChanged("collection.anki2")
	b.PublishCollectionChanged("collection.anki2-wal")
	b.Publish(Event{Type: TypeNotify, Data: map[string]string{"message": "saved"}})

	time.Sleep(50 * time.Millisecond)
	frames := drain(ch)
	if n := count(frames, TypeCollectionChanged); n != 1 {
		t.Errorf("collection.changed events = %d, want 1 (throttled)", n)
	}
	if n := count(frames, TypeNotify); n != 1 {
		t.Errorf("notify events = %d, want 1", n)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1 from handler", n)
	}

	b.Publish(Event{Type: TypeNotify, Data: map[string]string{"message": "hi"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: ") {
		t.Errorf("stream should open with a retry hint: %q", body)
	}
	if !strings.Contains(body, "event: notify") || !strings.Contains(body, `"message":"hi"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Stream buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: TypeNotify, Data: i})
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(drain(ch)); n != 64 {
		t.Errorf("buffered frames = %d, want 64", n)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after close = %d", n)
	}
	b.PublishStale("k")
	b.PublishCollectionChanged("x")
	b.Close()
}
