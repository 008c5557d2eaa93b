package llm

import (
	"context"
	"sync"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

// MockGeminiClient is a scripted stand-in for the Gemini adapter. It records
// every call so tests can assert whether the model was consulted at all.
type MockGeminiClient struct {
	mu    sync.Mutex
	calls []MockCompletionCall

	// Response is returned for every call unless Err is set.
	Response string
	Err      error
}

// MockCompletionCall captures the arguments of one Complete invocation
type MockCompletionCall struct {
	Messages    []repositories.ChatMessage
	Temperature float32
}

// NewMockGeminiClient creates a mock with a canned reply
func NewMockGeminiClient(response string) *MockGeminiClient {
	return &MockGeminiClient{Response: response}
}

// Complete implements repositories.LargeLanguageModel
func (g *MockGeminiClient) Complete(ctx context.Context, messages []repositories.ChatMessage, temperature float32) (repositories.Completion, error) {
	g.mu.Lock()
	g.calls = append(g.calls, MockCompletionCall{Messages: messages, Temperature: temperature})
	g.mu.Unlock()

	if g.Err != nil {
		return repositories.Completion{}, g.Err
	}
	return repositories.Completion{Text: g.Response}, nil
}

// CallCount returns how many completions were requested
func (g *MockGeminiClient) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Calls returns a copy of the recorded invocations
func (g *MockGeminiClient) Calls() []MockCompletionCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]MockCompletionCall, len(g.calls))
	copy(out, g.calls)
	return out
}
