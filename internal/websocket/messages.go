package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types (kiosk to server)
const (
	MessageTypeMicTap        MessageType = "mic_tap"
	MessageTypeMicStop       MessageType = "mic_stop"
	MessageTypeUserText      MessageType = "user_text"
	MessageTypeAudioUnlock   MessageType = "audio_unlock"
	MessageTypePlaybackEnded MessageType = "playback_ended"
	MessageTypePlaybackError MessageType = "playback_error"
	MessageTypeSetAudio      MessageType = "set_audio"
	MessageTypeReset         MessageType = "reset"
	MessageTypePing          MessageType = "ping"
)

// Outbound message types (server to kiosk)
const (
	MessageTypeTranscript MessageType = "transcript"
	MessageTypePlay       MessageType = "play"
	MessageTypeToast      MessageType = "toast"
	MessageTypePong       MessageType = "pong"
	MessageTypeError      MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// UserTextMessage carries typed input or a tapped suggested prompt
type UserTextMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// PlaybackEndedMessage acknowledges that a clip finished playing
type PlaybackEndedMessage struct {
	BaseMessage
	ItemID string `json:"item_id"`
}

// PlaybackErrorMessage reports that a clip could not be played
type PlaybackErrorMessage struct {
	BaseMessage
	ItemID string `json:"item_id"`
	Reason string `json:"reason,omitempty"`
}

// SetAudioMessage toggles spoken answers
type SetAudioMessage struct {
	BaseMessage
	Enabled bool `json:"enabled"`
}

// TranscriptMessage pushes the full conversation state to the kiosk
type TranscriptMessage struct {
	BaseMessage
	State    entities.TurnState `json:"state"`
	Messages []entities.Message `json:"messages"`
}

// PlayMessage asks the kiosk to play one clip
type PlayMessage struct {
	BaseMessage
	ItemID   string `json:"item_id"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// ToastMessage shows a transient notice on the kiosk
type ToastMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ErrorMessage reports a protocol error back to the kiosk
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeMicTap, MessageTypeMicStop, MessageTypeAudioUnlock,
		MessageTypeReset, MessageTypePing:
		return &base, nil

	case MessageTypeUserText:
		var msg UserTextMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid user text message: %w", err)
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypePlaybackEnded:
		var msg PlaybackEndedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid playback ended message: %w", err)
		}
		if msg.ItemID == "" {
			return nil, fmt.Errorf("item_id is required")
		}
		return &msg, nil

	case MessageTypePlaybackError:
		var msg PlaybackErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid playback error message: %w", err)
		}
		if msg.ItemID == "" {
			return nil, fmt.Errorf("item_id is required")
		}
		return &msg, nil

	case MessageTypeSetAudio:
		var msg SetAudioMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid set audio message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage() *BaseMessage {
	return &BaseMessage{
		Type:      MessageTypePong,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
