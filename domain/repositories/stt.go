package repositories

import "context"

// SpeechRecognizer abstracts streaming speech recognition services
type SpeechRecognizer interface {
	// RequestPermission verifies once that audio input is available. Callers
	// cache a success; a failure is reported as ErrCodePermissionDenied.
	RequestPermission(ctx context.Context) error
	// Start opens a recognition stream for one utterance.
	Start(ctx context.Context, config AudioConfig) (RecognitionStream, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionStream delivers interim and final hypotheses for one utterance
type RecognitionStream interface {
	// Events yields recognition events until the stream ends. The channel is
	// closed after the terminal event.
	Events() <-chan RecognitionEvent
	// Write feeds captured audio into the stream.
	Write(data []byte) error
	// Stop tears the stream down. Safe to call more than once.
	Stop()
}

// RecognitionEventKind tags a recognition event
type RecognitionEventKind string

const (
	EventInterim RecognitionEventKind = "interim"
	EventFinal   RecognitionEventKind = "final"
	EventError   RecognitionEventKind = "error"
)

// Recognition error codes surfaced to the conversation layer
const (
	ErrCodeUnsupported      = "unsupported"
	ErrCodePermissionDenied = "permission-denied"
	ErrCodeNotAllowed       = "not-allowed"
	ErrCodeNoSpeech         = "no-speech"
	ErrCodeNetwork          = "network"
	ErrCodeSpeechError      = "speech-error"
)

// RecognitionEvent is one hypothesis or a terminal error
type RecognitionEvent struct {
	Kind RecognitionEventKind `json:"kind"`
	Text string               `json:"text,omitempty"`
	Code string               `json:"code,omitempty"`
}
