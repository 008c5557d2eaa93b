package retrieval

import (
	"context"
	"sync"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

// MockRetriever returns a fixed result set, recording every query
type MockRetriever struct {
	mu      sync.Mutex
	queries []string

	Result repositories.SearchResult
	Err    error
	// Gate, when set, blocks every search until the channel is closed.
	Gate chan struct{}
}

// NewMockRetriever creates a mock returning the given result
func NewMockRetriever(result repositories.SearchResult) *MockRetriever {
	return &MockRetriever{Result: result}
}

// Search implements repositories.Retriever
func (m *MockRetriever) Search(ctx context.Context, query string, topK int, minSimilarity float64, projectID string) (repositories.SearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return repositories.SearchResult{}, ctx.Err()
		}
	}

	if m.Err != nil {
		return repositories.SearchResult{}, m.Err
	}
	return m.Result, nil
}

// Queries returns the recorded search queries
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}
