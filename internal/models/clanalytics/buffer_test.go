package clanalytics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDestination enregistre chaque appel d'insertion
type countingDestination struct {
	name string

	mu    sync.Mutex
	calls [][]Event
}

func (d *countingDestination) Name() string { return d.name }

func (d *countingDestination) InsertEvents(_ context.Context, events []Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := make([]Event, len(events))
	copy(batch, events)
	d.calls = append(d.calls, batch)
	return nil
}

func (d *countingDestination) Calls() [][]Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *countingDestination) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var all []Event
	for _, c := range d.calls {
		all = append(all, c...)
	}
	return all
}

func namedEntry(dest Destination, name string) Entry {
	return Entry{Destination: dest, Event: Event{EventType: EventClick, EventName: name}}
}

func newTestBuffer(size int) (*BatchBuffer, *ManualScheduler) {
	sched := NewManualScheduler()
	buf := NewBatchBuffer(NewBatchWriter(), sched, BufferOptions{Size: size, Interval: time.Second})
	return buf, sched
}

func TestBufferFIFOWithinFlush(t *testing.T) {
	buf, _ := newTestBuffer(100)
	dest := &countingDestination{name: "club-1"}

	for i := 0; i < 10; i++ {
		buf.Enqueue(context.Background(), namedEntry(dest, fmt.Sprintf("e%d", i)))
	}
	require.Equal(t, 10, buf.Flush(context.Background()))

	calls := dest.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 10)
	for i, ev := range calls[0] {
		assert.Equal(t, fmt.Sprintf("e%d", i), ev.EventName)
	}
}

func TestBufferSizeTriggerBoundary(t *testing.T) {
	const n = 5
	buf, _ := newTestBuffer(n)
	dest := &countingDestination{name: "club-1"}

	for i := 0; i < n-1; i++ {
		buf.Enqueue(context.Background(), namedEntry(dest, fmt.Sprintf("e%d", i)))
	}
	assert.Empty(t, dest.Calls())
	assert.Equal(t, n-1, buf.Len())

	buf.Enqueue(context.Background(), namedEntry(dest, "last"))
	calls := dest.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], n)
	assert.Equal(t, 0, buf.Len())
}

func TestBufferTimerFlush(t *testing.T) {
	buf, sched := newTestBuffer(100)
	dest := &countingDestination{name: "club-1"}

	buf.Start()
	assert.Equal(t, 1, sched.Active())

	// file vide, pas d'écriture
	sched.Tick()
	assert.Empty(t, dest.Calls())

	buf.Enqueue(context.Background(), namedEntry(dest, "a"))
	buf.Enqueue(context.Background(), namedEntry(dest, "b"))
	sched.Tick()

	calls := dest.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 2)

	buf.Stop()
	assert.Equal(t, 0, sched.Active())
}

func TestBufferTimerFlushTakesAtMostN(t *testing.T) {
	buf, sched := newTestBuffer(3)
	dest := &countingDestination{name: "club-1"}
	buf.Start()
	defer buf.Stop()

	// deux entrées sous le seuil, la minuterie écrit les deux
	buf.Enqueue(context.Background(), namedEntry(dest, "a"))
	buf.Enqueue(context.Background(), namedEntry(dest, "b"))
	sched.Tick()
	require.Len(t, dest.Calls(), 1)
	assert.Equal(t, 0, buf.Len())
}

func TestBufferConcurrentTriggersNoDoubleFlush(t *testing.T) {
	const (
		workers   = 8
		perWorker = 250
	)
	buf, sched := newTestBuffer(7)
	dest := &countingDestination{name: "club-1"}
	buf.Start()

	var wg sync.WaitGroup
	done := make(chan struct{})
	ticker := make(chan struct{})
	go func() {
		defer close(ticker)
		for {
			select {
			case <-done:
				return
			default:
				sched.Tick()
			}
		}
	}()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				buf.Enqueue(context.Background(), namedEntry(dest, fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()
	close(done)
	<-ticker
	require.NoError(t, buf.Close(context.Background()))

	events := dest.Events()
	require.Len(t, events, workers*perWorker)
	seen := make(map[string]int, len(events))
	for _, ev := range events {
		seen[ev.EventName]++
	}
	assert.Len(t, seen, workers*perWorker)
	for name, count := range seen {
		assert.Equal(t, 1, count, name)
	}
	for _, call := range dest.Calls() {
		assert.LessOrEqual(t, len(call), 7)
	}
}

func TestBufferCloseDrains(t *testing.T) {
	buf, sched := newTestBuffer(4)
	dest := &countingDestination{name: "club-1"}
	buf.Start()

	for i := 0; i < 3; i++ {
		buf.Enqueue(context.Background(), namedEntry(dest, fmt.Sprintf("e%d", i)))
	}
	require.NoError(t, buf.Close(context.Background()))
	assert.Equal(t, 0, sched.Active())
	assert.Len(t, dest.Events(), 3)
	assert.Equal(t, 0, buf.Len())
}

func TestBufferDrainInBatches(t *testing.T) {
	buf, _ := newTestBuffer(4)
	dest := &countingDestination{name: "club-1"}

	// Enqueue déclenche à 4, on remplit directement la file
	buf.mu.Lock()
	for i := 0; i < 10; i++ {
		buf.queue = append(buf.queue, namedEntry(dest, fmt.Sprintf("e%d", i)))
	}
	buf.mu.Unlock()

	assert.Equal(t, 10, buf.Drain(context.Background()))
	calls := dest.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[0], 4)
	assert.Len(t, calls[1], 4)
	assert.Len(t, calls[2], 2)
}

func TestBufferInlineFlushIgnoresCancellation(t *testing.T) {
	buf, _ := newTestBuffer(2)
	dest := &ctxDestination{name: "club-1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf.Enqueue(ctx, namedEntry(dest, "a"))
	buf.Enqueue(ctx, namedEntry(dest, "b"))

	require.Len(t, dest.errs, 1)
	assert.NoError(t, dest.errs[0])
}

type ctxDestination struct {
	name string
	errs []error
}

func (d *ctxDestination) Name() string { return d.name }

func (d *ctxDestination) InsertEvents(ctx context.Context, _ []Event) error {
	d.errs = append(d.errs, ctx.Err())
	return nil
}

func TestCronSchedulerStop(t *testing.T) {
	stop := NewCronScheduler().Every(time.Second, func() {})
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
