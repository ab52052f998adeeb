package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flashdesk/internal/models"
)

func newCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestFetch_CachesWhileFresh(t *testing.T) {
	c := newCache(t, Options{FreshFor: time.Minute})
	var calls atomic.Int32
	fn := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	v1, err := Fetch(context.Background(), c, "k", fn)
	require.NoError(t, err)
	v2, err := Fetch(context.Background(), c, "k", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 1, v2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ExpiresAfterFreshWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newCache(t, Options{FreshFor: 30 * time.Second, Now: func() time.Time { return now }})
	var calls atomic.Int32
	fn := func(context.Context) (int, error) { return int(calls.Add(1)), nil }

	_, _ = Fetch(context.Background(), c, "k", fn)
	now = now.Add(31 * time.Second)
	v, err := Fetch(context.Background(), c, "k", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestFetch_PermanentNeverExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newCache(t, Options{FreshFor: time.Second, Now: func() time.Time { return now }})
	var calls atomic.Int32
	fn := func(context.Context) (int, error) { return int(calls.Add(1)), nil }

	_, _ = Fetch(context.Background(), c, SchemaKey, fn, Permanent())
	now = now.Add(time.Hour)
	v, _ := Fetch(context.Background(), c, SchemaKey, fn, Permanent())
	assert.Equal(t, 1, v)
}

func TestFetch_DeduplicatesConcurrentReads(t *testing.T) {
	c := newCache(t, Options{FreshFor: time.Minute})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "items", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, "k", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Let the other callers join the in-flight request.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "items", r)
	}
}

func TestFetch_CallerCancelDoesNotCancelSharedRequest(t *testing.T) {
	c := newCache(t, Options{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (int, error) {
		<-release
		return 7, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, "k", fn)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		s, _ := c.Peek("k")
		return s.Status == StatusFetching
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		s, _ := c.Peek("k")
		return s.Status == StatusReady
	}, time.Second, 5*time.Millisecond)
	s, _ := c.Peek("k")
	assert.Equal(t, 7, s.Value)
}

func TestFetch_ErrorStateNoRetry(t *testing.T) {
	c := newCache(t, Options{})
	boom := errors.New("boom")
	_, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	s, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, StatusError, s.Status)
	assert.ErrorIs(t, s.Err, boom)
}

func TestInvalidate_MarksStaleAndKeepsData(t *testing.T) {
	c := newCache(t, Options{})
	itemsKey := ItemsKey("Basic", models.ModeNotes, "")
	_, _ = Fetch(context.Background(), c, itemsKey, func(context.Context) (int, error) { return 1, nil })
	_, _ = Fetch(context.Background(), c, SchemaKey, func(context.Context) (int, error) { return 2, nil })

	var events []Event
	unsub := c.Subscribe(func(e Event) { events = append(events, e) })
	defer unsub()

	touched := c.Invalidate(ItemsPrefix)
	assert.Equal(t, []string{itemsKey}, touched)

	s, _ := c.Peek(itemsKey)
	assert.Equal(t, StatusStale, s.Status)
	assert.Equal(t, 1, s.Value)
	schema, _ := c.Peek(SchemaKey)
	assert.Equal(t, StatusReady, schema.Status)
	assert.Equal(t, []Event{{Key: itemsKey, Status: StatusStale}}, events)

	var calls int
	v, err := Fetch(context.Background(), c, itemsKey, func(context.Context) (int, error) {
		calls++
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, calls)
}

func TestInvalidate_DuringFetchStoresStale(t *testing.T) {
	c := newCache(t, Options{})
	key := ItemsKey("Basic", models.ModeNotes, "")
	started := make(chan struct{})
	release := make(chan struct{})

	var events []Event
	var mu sync.Mutex
	unsub := c.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	defer unsub()

	done := make(chan int)
	go func() {
		v, _ := Fetch(context.Background(), c, key, func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-started
	assert.Empty(t, c.Invalidate(ItemsPrefix))
	close(release)
	assert.Equal(t, 1, <-done)

	s, _ := c.Peek(key)
	assert.Equal(t, StatusStale, s.Status)
	assert.Equal(t, 1, s.Value)
	mu.Lock()
	assert.Equal(t, Event{Key: key, Status: StatusStale}, events[len(events)-1])
	mu.Unlock()

	v, err := Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	s, _ = c.Peek(key)
	assert.Equal(t, StatusReady, s.Status)
}

func TestMutate_InvalidatesOnlyOnSuccess(t *testing.T) {
	c := newCache(t, Options{})
	key := ItemsKey("Basic", models.ModeCards, "flag:1")
	_, _ = Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 1, nil })

	_, err := Mutate(context.Background(), c, []string{ItemsPrefix}, func(context.Context) (struct{}, error) {
		return struct{}{}, errors.New("denied")
	})
	require.Error(t, err)
	s, _ := c.Peek(key)
	assert.Equal(t, StatusReady, s.Status)

	_, err = Mutate(context.Background(), c, []string{ItemsPrefix}, func(context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	require.NoError(t, err)
	s, _ = c.Peek(key)
	assert.Equal(t, StatusStale, s.Status)
}

func TestSubscribe_SeesLifecycle(t *testing.T) {
	c := newCache(t, Options{})
	var mu sync.Mutex
	var statuses []Status
	unsub := c.Subscribe(func(e Event) {
		mu.Lock()
		statuses = append(statuses, e.Status)
		mu.Unlock()
	})

	_, _ = Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 1, nil })
	unsub()
	_, _ = Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 1, nil }, Force())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusFetching, StatusReady}, statuses)
}

func TestLRUBound(t *testing.T) {
	c := newCache(t, Options{Size: 2})
	for _, k := range []string{"a", "b", "c"} {
		_, _ = Fetch(context.Background(), c, k, func(context.Context) (string, error) { return k, nil })
	}
	_, ok := c.Peek("a")
	assert.False(t, ok)
	_, ok = c.Peek("c")
	assert.True(t, ok)
}
