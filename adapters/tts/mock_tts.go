package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

// MockSynthesizer fabricates clip URLs without any network calls. Tests can
// hold back individual texts via GateTexts to reorder completion, and fail
// specific texts via FailTexts.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []string

	// GateTexts maps exact input text to a channel the synthesis blocks on
	// until it is closed.
	GateTexts map[string]chan struct{}
	// FailTexts maps exact input text to a forced failure.
	FailTexts map[string]bool
}

// NewMockSynthesizer creates a mock synthesizer
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// Synthesize implements repositories.SpeechSynthesizer
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (repositories.Clip, error) {
	if gate, ok := m.GateTexts[text]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return repositories.Clip{}, ctx.Err()
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, text)
	n := len(m.calls)
	m.mu.Unlock()

	if m.FailTexts[text] {
		return repositories.Clip{}, fmt.Errorf("%w: scripted failure", ErrSynthesisFailed)
	}

	return repositories.Clip{
		URL:  fmt.Sprintf("https://cdn.example.com/clips/%d.mp3", n),
		MIME: "audio/mpeg",
	}, nil
}

// Calls returns the texts synthesized so far
func (m *MockSynthesizer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
