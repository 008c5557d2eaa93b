package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Complete runs a single chat completion over the given messages.
	// Temperature is passed through verbatim; the answer pipeline pins it to 0.
	Complete(ctx context.Context, messages []ChatMessage, temperature float32) (Completion, error)
}

// Completion is the provider's reply to a chat completion request
type Completion struct {
	Text       string `json:"text"`
	TokensUsed int32  `json:"tokens_used"`
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	UserRole   Role = "user"
	ModelRole  Role = "model"
	SystemRole Role = "system"
)
