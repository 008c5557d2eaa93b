package audio

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Item is one playable burst. Text is revealed in the transcript before its
// clip starts, so a broken clip never hides the words.
type Item struct {
	ID       string
	Text     string
	URL      string
	ImageURL string
}

// Sink plays one clip and blocks until playback finished or failed. The
// kiosk client implements this over the websocket; tests use stubs.
type Sink interface {
	Play(ctx context.Context, item Item) error
}

// Queue plays items strictly in enqueue order, regardless of the order their
// clips were synthesized. It stays silent until Unlock, which the kiosk calls
// on the first user gesture.
type Queue struct {
	sink   Sink
	logger *zap.Logger

	onReveal  func(Item)
	onDrained func()

	mu       sync.Mutex
	items    []Item
	playing  bool
	unlocked bool
	pending  bool
	gen      int
	cancel   context.CancelFunc
}

// NewQueue creates a playback queue. onReveal runs before each item plays;
// onDrained runs exactly once when a batch finishes.
func NewQueue(sink Sink, onReveal func(Item), onDrained func(), logger *zap.Logger) *Queue {
	return &Queue{
		sink:      sink,
		logger:    logger,
		onReveal:  onReveal,
		onDrained: onDrained,
	}
}

// Begin marks the start of a batch whose items arrive one by one. While the
// batch is open the queue running dry is not a drain: later items may still be
// rendering. Finish or Stop closes the batch.
func (q *Queue) Begin() {
	q.mu.Lock()
	q.pending = true
	q.mu.Unlock()
}

// Finish closes the open batch. If everything already played, the drain
// signal fires now; otherwise it fires when the last item finishes.
func (q *Queue) Finish() {
	q.mu.Lock()
	q.pending = false
	fire := q.unlocked && !q.playing && len(q.items) == 0
	q.mu.Unlock()
	if fire && q.onDrained != nil {
		q.onDrained()
	}
}

// Enqueue appends an item and starts draining if idle
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.maybeDrain()
}

// ReplaceQueue drops everything pending and enqueues the given items. The
// currently playing clip is interrupted.
func (q *Queue) ReplaceQueue(items []Item) {
	q.mu.Lock()
	q.items = append([]Item(nil), items...)
	q.gen++
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()
	q.maybeDrain()
}

// Stop clears the queue and interrupts the current clip. No drain signal
// fires for a stopped batch.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.items = nil
	q.pending = false
	q.gen++
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()
}

// Unlock opens the autoplay gate and drains anything buffered
func (q *Queue) Unlock() {
	q.mu.Lock()
	q.unlocked = true
	q.mu.Unlock()
	q.maybeDrain()
}

// Unlocked reports whether playback is allowed yet
func (q *Queue) Unlocked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unlocked
}

func (q *Queue) maybeDrain() {
	q.mu.Lock()
	if !q.unlocked || q.playing || len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	q.playing = true
	gen := q.gen
	q.mu.Unlock()

	go q.drain(gen)
}

// drain plays items until the queue empties, then signals once. A Stop or
// ReplaceQueue during the batch bumps the generation and silences the signal.
func (q *Queue) drain(gen int) {
	for {
		q.mu.Lock()
		if q.gen != gen {
			q.playing = false
			q.mu.Unlock()
			q.maybeDrain()
			return
		}
		if len(q.items) == 0 {
			q.playing = false
			q.cancel = nil
			pending := q.pending
			q.mu.Unlock()
			// An open batch means more items are still rendering; Finish will
			// signal the drain instead.
			if !pending && q.onDrained != nil {
				q.onDrained()
			}
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.mu.Unlock()

		if q.onReveal != nil {
			q.onReveal(item)
		}
		if err := q.sink.Play(ctx, item); err != nil {
			q.logger.Warn("Clip playback failed, advancing",
				zap.String("item_id", item.ID),
				zap.Error(err))
		}
		cancel()
	}
}
