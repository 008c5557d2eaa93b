package repositories

import (
	"context"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
)

// ConversationStore persists transcripts. Implementations are best-effort:
// the conversation never fails because persistence did.
type ConversationStore interface {
	// CreateConversation registers a new kiosk session and returns its id.
	CreateConversation(ctx context.Context, sessionID string) (string, error)
	// AppendMessage stores one committed transcript message.
	AppendMessage(ctx context.Context, conversationID string, message entities.Message) error
}
