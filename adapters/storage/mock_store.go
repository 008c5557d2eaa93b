package storage

import (
	"context"
	"sync"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
)

// MockConversationStore records writes in memory
type MockConversationStore struct {
	mu       sync.Mutex
	Messages map[string][]entities.Message
	Err      error
}

// NewMockConversationStore creates an in-memory store
func NewMockConversationStore() *MockConversationStore {
	return &MockConversationStore{Messages: make(map[string][]entities.Message)}
}

// CreateConversation implements repositories.ConversationStore
func (m *MockConversationStore) CreateConversation(ctx context.Context, sessionID string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "conv-" + sessionID, nil
}

// AppendMessage implements repositories.ConversationStore
func (m *MockConversationStore) AppendMessage(ctx context.Context, conversationID string, message entities.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[conversationID] = append(m.Messages[conversationID], message)
	return nil
}
