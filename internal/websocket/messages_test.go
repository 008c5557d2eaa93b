package websocket

import (
	"testing"
	"time"
)

func TestMessageValidator_ValidateUserText(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "valid user text",
			message: `{"type": "user_text", "text": "Waarom ben je gevlucht?"}`,
			wantErr: false,
		},
		{
			name:    "missing text",
			message: `{"type": "user_text"}`,
			wantErr: true,
		},
		{
			name:    "whitespace only text",
			message: `{"type": "user_text", "text": "   "}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ValidatePlaybackAcks(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "valid playback ended",
			message: `{"type": "playback_ended", "item_id": "clip-1"}`,
			wantErr: false,
		},
		{
			name:    "playback ended without item_id",
			message: `{"type": "playback_ended"}`,
			wantErr: true,
		},
		{
			name:    "valid playback error",
			message: `{"type": "playback_error", "item_id": "clip-1", "reason": "decode failed"}`,
			wantErr: false,
		},
		{
			name:    "playback error without item_id",
			message: `{"type": "playback_error", "reason": "decode failed"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_BareControlMessages(t *testing.T) {
	validator := NewMessageValidator()

	for _, msgType := range []string{"mic_tap", "mic_stop", "audio_unlock", "reset", "ping"} {
		result, err := validator.ValidateMessage([]byte(`{"type": "` + msgType + `"}`))
		if err != nil {
			t.Errorf("ValidateMessage(%s) error = %v", msgType, err)
			continue
		}
		base, ok := result.(*BaseMessage)
		if !ok {
			t.Errorf("Expected *BaseMessage for %s, got %T", msgType, result)
			continue
		}
		if string(base.Type) != msgType {
			t.Errorf("Expected type %s, got %s", msgType, base.Type)
		}
	}
}

func TestMessageValidator_ValidateSetAudio(t *testing.T) {
	validator := NewMessageValidator()

	result, err := validator.ValidateMessage([]byte(`{"type": "set_audio", "enabled": false}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	msg, ok := result.(*SetAudioMessage)
	if !ok {
		t.Fatalf("Expected *SetAudioMessage, got %T", result)
	}
	if msg.Enabled {
		t.Error("Expected enabled=false")
	}
}

func TestMessageValidator_UnsupportedType(t *testing.T) {
	validator := NewMessageValidator()

	if _, err := validator.ValidateMessage([]byte(`{"type": "audio_chunk"}`)); err == nil {
		t.Error("Expected error for unsupported message type")
	}
	if _, err := validator.ValidateMessage([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestCreateErrorMessage(t *testing.T) {
	code := "invalid_message"
	message := "text is required"

	errorMsg := CreateErrorMessage(code, message)

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != code {
		t.Errorf("Expected code %s, got %s", code, errorMsg.Code)
	}
	if errorMsg.Message != message {
		t.Errorf("Expected message %s, got %s", message, errorMsg.Message)
	}

	// Verify timestamp is recent
	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestCreatePongMessage(t *testing.T) {
	pongMsg := CreatePongMessage()

	if pongMsg.Type != MessageTypePong {
		t.Errorf("Expected type %s, got %s", MessageTypePong, pongMsg.Type)
	}
	if _, err := time.Parse(time.RFC3339, pongMsg.Timestamp); err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
}
