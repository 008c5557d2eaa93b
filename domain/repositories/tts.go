package repositories

import "context"

// SpeechSynthesizer turns answer text into a playable clip
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// Clip is a synthesized audio asset addressable by URL
type Clip struct {
	URL  string `json:"url"`
	MIME string `json:"mime"`
}
