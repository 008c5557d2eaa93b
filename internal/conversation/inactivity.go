package conversation

import (
	"sync"
	"time"
)

// InactivityTimer is a single-shot timer armed after the audio queue drains.
// Arming it again replaces the previous deadline.
type InactivityTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	fire  func()
}

// NewInactivityTimer creates a timer that calls fire on expiry
func NewInactivityTimer(fire func()) *InactivityTimer {
	return &InactivityTimer{fire: fire}
}

// Start arms the timer, replacing any pending deadline
func (t *InactivityTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, t.fire)
}

// Cancel disarms the timer if armed
func (t *InactivityTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
