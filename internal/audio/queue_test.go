package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu     sync.Mutex
	played []string
	fail   map[string]bool
	block  chan struct{}
}

func (s *recordingSink) Play(ctx context.Context, item Item) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.played = append(s.played, item.ID)
	s.mu.Unlock()
	if s.fail[item.ID] {
		return errors.New("decode failed")
	}
	return nil
}

func (s *recordingSink) playedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.played))
	copy(out, s.played)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueuePlaysInOrder(t *testing.T) {
	sink := &recordingSink{}
	var mu sync.Mutex
	var revealed []string
	drained := make(chan struct{}, 1)

	q := NewQueue(sink, func(item Item) {
		mu.Lock()
		revealed = append(revealed, item.ID)
		mu.Unlock()
	}, func() { drained <- struct{}{} }, zaptest.NewLogger(t))
	q.Unlock()

	q.Enqueue(Item{ID: "b1", Text: "eerste"})
	q.Enqueue(Item{ID: "b2", Text: "tweede"})
	q.Enqueue(Item{ID: "b3", Text: "derde"})

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("queue never drained")
	}

	want := []string{"b1", "b2", "b3"}
	got := sink.playedIDs()
	if len(got) != len(want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("played %v, want %v", got, want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if revealed[i] != want[i] {
			t.Fatalf("revealed %v, want %v", revealed, want)
		}
	}
}

func TestQueueAdvancesOnPlaybackError(t *testing.T) {
	sink := &recordingSink{fail: map[string]bool{"b2": true}}
	drained := make(chan struct{}, 1)

	q := NewQueue(sink, nil, func() { drained <- struct{}{} }, zaptest.NewLogger(t))
	q.Unlock()

	q.Enqueue(Item{ID: "b1"})
	q.Enqueue(Item{ID: "b2"})
	q.Enqueue(Item{ID: "b3"})

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled on playback error")
	}

	got := sink.playedIDs()
	if len(got) != 3 || got[2] != "b3" {
		t.Fatalf("expected all items attempted, got %v", got)
	}
}

func TestQueueDrainSignalFiresOncePerBatch(t *testing.T) {
	sink := &recordingSink{}
	var mu sync.Mutex
	drains := 0

	q := NewQueue(sink, nil, func() {
		mu.Lock()
		drains++
		mu.Unlock()
	}, zaptest.NewLogger(t))
	q.Unlock()

	q.Enqueue(Item{ID: "b1"})
	q.Enqueue(Item{ID: "b2"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return drains > 0
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if drains != 1 {
		t.Errorf("expected exactly one drain signal, got %d", drains)
	}
}

func TestQueueHoldsDrainUntilBatchFinishes(t *testing.T) {
	sink := &recordingSink{}
	var mu sync.Mutex
	drains := 0

	q := NewQueue(sink, nil, func() {
		mu.Lock()
		drains++
		mu.Unlock()
	}, zaptest.NewLogger(t))
	q.Unlock()

	// The first item plays out while the second is still rendering. The open
	// batch keeps the momentarily empty queue from signalling a drain.
	q.Begin()
	q.Enqueue(Item{ID: "b1"})
	waitFor(t, func() bool { return len(sink.playedIDs()) == 1 })
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	if drains != 0 {
		mu.Unlock()
		t.Fatalf("drain signalled before the batch finished, got %d signals", drains)
	}
	mu.Unlock()

	q.Enqueue(Item{ID: "b2"})
	q.Finish()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return drains == 1
	})
	got := sink.playedIDs()
	if len(got) != 2 || got[0] != "b1" || got[1] != "b2" {
		t.Errorf("expected both items to play in order, got %v", got)
	}
}

func TestQueueFinishAfterLastItemSignalsOnce(t *testing.T) {
	sink := &recordingSink{}
	var mu sync.Mutex
	drains := 0

	q := NewQueue(sink, nil, func() {
		mu.Lock()
		drains++
		mu.Unlock()
	}, zaptest.NewLogger(t))
	q.Unlock()

	q.Begin()
	q.Enqueue(Item{ID: "b1"})
	waitFor(t, func() bool { return len(sink.playedIDs()) == 1 })
	time.Sleep(20 * time.Millisecond)
	q.Finish()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return drains > 0
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if drains != 1 {
		t.Errorf("expected exactly one drain signal, got %d", drains)
	}
}

func TestQueueBuffersUntilUnlocked(t *testing.T) {
	sink := &recordingSink{}
	drained := make(chan struct{}, 1)

	q := NewQueue(sink, nil, func() { drained <- struct{}{} }, zaptest.NewLogger(t))

	q.Enqueue(Item{ID: "b1"})
	time.Sleep(50 * time.Millisecond)
	if len(sink.playedIDs()) != 0 {
		t.Fatal("queue played before unlock")
	}

	q.Unlock()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("queue never drained after unlock")
	}
	if got := sink.playedIDs(); len(got) != 1 || got[0] != "b1" {
		t.Errorf("expected buffered item to play after unlock, got %v", got)
	}
}

func TestQueueStopSuppressesDrainSignal(t *testing.T) {
	block := make(chan struct{})
	sink := &recordingSink{block: block}
	var mu sync.Mutex
	drains := 0

	q := NewQueue(sink, nil, func() {
		mu.Lock()
		drains++
		mu.Unlock()
	}, zaptest.NewLogger(t))
	q.Unlock()

	q.Enqueue(Item{ID: "b1"})
	q.Enqueue(Item{ID: "b2"})
	time.Sleep(20 * time.Millisecond)

	q.Stop()
	close(block)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if drains != 0 {
		t.Errorf("stopped batch must not signal drain, got %d signals", drains)
	}
}
