package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

// GoogleSpeechRecognizer implements SpeechRecognizer for Google Cloud
type GoogleSpeechRecognizer struct {
	logger *zap.Logger
}

// NewGoogleSpeechRecognizer creates a new Google Cloud recognizer
func NewGoogleSpeechRecognizer(logger *zap.Logger) *GoogleSpeechRecognizer {
	return &GoogleSpeechRecognizer{logger: logger}
}

// RequestPermission verifies that a speech client can be constructed with the
// ambient credentials. The capture layer caches a success.
func (g *GoogleSpeechRecognizer) RequestPermission(ctx context.Context) error {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("speech service unavailable: %w", err)
	}
	return client.Close()
}

// Start opens a streaming recognition session for one utterance
func (g *GoogleSpeechRecognizer) Start(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:        encoding,
		SampleRateHertz: int32(config.SampleRate),
		LanguageCode:    config.Language,
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          recognitionConfig,
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &googleRecognitionStream{
		client: client,
		stream: stream,
		logger: g.logger,
		events: make(chan repositories.RecognitionEvent, 8),
	}
	go s.receiveResults()

	return s, nil
}

type googleRecognitionStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	logger *zap.Logger
	events chan repositories.RecognitionEvent

	stopOnce sync.Once
}

func (s *googleRecognitionStream) Events() <-chan repositories.RecognitionEvent {
	return s.events
}

func (s *googleRecognitionStream) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (s *googleRecognitionStream) Stop() {
	s.stopOnce.Do(func() {
		s.stream.CloseSend()
	})
}

// receiveResults pumps recognition responses into the event channel. One
// final event XOR one error event terminates the stream.
func (s *googleRecognitionStream) receiveResults() {
	defer close(s.events)
	defer s.client.Close()

	var finalText string

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			if finalText == "" {
				s.events <- repositories.RecognitionEvent{
					Kind: repositories.EventError,
					Code: repositories.ErrCodeNoSpeech,
				}
				return
			}
			s.events <- repositories.RecognitionEvent{
				Kind: repositories.EventFinal,
				Text: finalText,
			}
			return
		}
		if err != nil {
			s.logger.Warn("Recognition stream failed", zap.Error(err))
			s.events <- repositories.RecognitionEvent{
				Kind: repositories.EventError,
				Code: classifyRecognitionError(err),
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := result.Alternatives[0].Transcript
			if result.IsFinal {
				finalText = transcript
				continue
			}
			s.events <- repositories.RecognitionEvent{
				Kind: repositories.EventInterim,
				Text: transcript,
			}
		}
	}
}

// classifyRecognitionError maps transport failures onto the recognition error
// taxonomy the conversation layer understands.
func classifyRecognitionError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "unauthenticated"):
		return repositories.ErrCodePermissionDenied
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "deadline"),
		strings.Contains(msg, "connection"):
		return repositories.ErrCodeNetwork
	default:
		return repositories.ErrCodeSpeechError
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
