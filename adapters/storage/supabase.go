package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
)

// SupabaseConversationStore persists transcripts in the conversations and
// messages tables. All writes are best effort; the caller logs and moves on.
type SupabaseConversationStore struct {
	client *supabase.Client
	logger *zap.Logger
}

// NewSupabaseConversationStore creates a conversation store
func NewSupabaseConversationStore(url, serviceRoleKey string, logger *zap.Logger) (*SupabaseConversationStore, error) {
	if url == "" || serviceRoleKey == "" {
		return nil, fmt.Errorf("Supabase URL and service role key are required")
	}
	client, err := supabase.NewClient(url, serviceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &SupabaseConversationStore{client: client, logger: logger}, nil
}

type conversationRow struct {
	ID string `json:"id"`
}

// CreateConversation registers a new kiosk session
func (s *SupabaseConversationStore) CreateConversation(ctx context.Context, sessionID string) (string, error) {
	row := map[string]interface{}{
		"session_id": sessionID,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, _, err := s.client.From("conversations").Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	var rows []conversationRow
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return "", fmt.Errorf("conversation insert returned no id")
	}

	s.logger.Info("Conversation created",
		zap.String("conversation_id", rows[0].ID),
		zap.String("session_id", sessionID))
	return rows[0].ID, nil
}

// AppendMessage stores one committed transcript message
func (s *SupabaseConversationStore) AppendMessage(ctx context.Context, conversationID string, message entities.Message) error {
	row := map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      message.ID,
		"role":            string(message.Role),
		"content":         message.Text,
		"created_at":      time.Now().UTC().Format(time.RFC3339),
	}
	if message.ImageURL != "" {
		row["image_url"] = message.ImageURL
	}
	if _, _, err := s.client.From("messages").Insert(row, false, "", "", "").Execute(); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}
