package stt

import (
	"context"
	"sync"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

// MockSpeechRecognizer replays a script of recognition events. Each Start
// consumes the next script; the capture layer tests drive timing by reading
// the event channel.
type MockSpeechRecognizer struct {
	mu      sync.Mutex
	scripts [][]repositories.RecognitionEvent
	started int

	// PermissionErr, when set, is returned from RequestPermission.
	PermissionErr error
	// StartErr, when set, fails Start outright.
	StartErr error
}

// NewMockSpeechRecognizer creates a recognizer that replays the given scripts
// in order, one per Start call.
func NewMockSpeechRecognizer(scripts ...[]repositories.RecognitionEvent) *MockSpeechRecognizer {
	return &MockSpeechRecognizer{scripts: scripts}
}

// RequestPermission implements repositories.SpeechRecognizer
func (m *MockSpeechRecognizer) RequestPermission(ctx context.Context) error {
	return m.PermissionErr
}

// StartCount returns how many streams were opened
func (m *MockSpeechRecognizer) StartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Start implements repositories.SpeechRecognizer
func (m *MockSpeechRecognizer) Start(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	m.mu.Lock()
	var script []repositories.RecognitionEvent
	if m.started < len(m.scripts) {
		script = m.scripts[m.started]
	}
	m.started++
	m.mu.Unlock()

	s := &mockRecognitionStream{events: make(chan repositories.RecognitionEvent, len(script)+1)}
	for _, ev := range script {
		s.events <- ev
	}
	if len(script) > 0 && isTerminal(script[len(script)-1]) {
		close(s.events)
		s.closed = true
	}
	return s, nil
}

func isTerminal(ev repositories.RecognitionEvent) bool {
	return ev.Kind == repositories.EventFinal || ev.Kind == repositories.EventError
}

type mockRecognitionStream struct {
	mu     sync.Mutex
	events chan repositories.RecognitionEvent
	closed bool
}

func (s *mockRecognitionStream) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

func (s *mockRecognitionStream) Write(data []byte) error {
	return nil
}

func (s *mockRecognitionStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
