package entities

import (
	"errors"
	"strings"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Status distinguishes committed history from provisional interim speech.
type Status string

const (
	// StatusFinal marks committed transcript history.
	StatusFinal Status = "final"
	// StatusStream marks a provisional interim-recognition bubble. At most one
	// stream message exists at a time and it is always superseded or removed,
	// never persisted.
	StatusStream Status = "stream"
)

// Message is a single transcript entry.
type Message struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Status   Status `json:"status"`
	ImageURL string `json:"image_url,omitempty"`
}

// Seed message ids survive a reset.
const (
	SeedMessageID1 = "initial-1"
	SeedMessageID2 = "initial-2"
)

// SeedMessages returns the fixed opening story of the persona. RESET truncates
// the transcript to exactly these.
func SeedMessages() []Message {
	return []Message{
		{
			ID:     SeedMessageID1,
			Role:   RoleAI,
			Text:   "Tijdens de protesten in Hongkong in 2019 stond ik op straat om te vechten voor mijn vrijheid De politie zag me als een bedreiging en begon actief naar me te zoeken, dus vluchtte ik naar Taiwan",
			Status: StatusFinal,
		},
		{
			ID:     SeedMessageID2,
			Role:   RoleAI,
			Text:   "Ik moest alles achterlaten, zelfs de laatste herinneringen aan mijn ouders Nu probeer ik hier een nieuw leven op te bouwen Maar zelfs van een afstand voel ik me nooit helemaal veilig",
			Status: StatusFinal,
		},
	}
}

// IsSeed reports whether the message is part of the fixed opening story.
func (m Message) IsSeed() bool {
	return m.Role == RoleAI && (m.ID == SeedMessageID1 || m.ID == SeedMessageID2)
}

// Validate validates the message data.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("message id is required")
	}
	if m.Role != RoleUser && m.Role != RoleAI {
		return errors.New("invalid message role")
	}
	if m.Status != StatusFinal && m.Status != StatusStream {
		return errors.New("invalid message status")
	}
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("message text is required")
	}
	return nil
}
