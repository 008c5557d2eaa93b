package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

// DefaultSilenceTimeout ends an utterance after this much time without any
// recognition activity.
const DefaultSilenceTimeout = 5 * time.Second

// garbagePatterns are recognizer hallucinations that must never reach the
// transcript. Matching is case insensitive on substrings.
var garbagePatterns = []string{
	"ondertitels ingediend",
	"amara.org",
	"subtitles submitted",
	"gemeenschap",
	"community",
	"... ... ...",
}

// IsGarbage reports whether recognized text is a known hallucination.
func IsGarbage(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range garbagePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Event is one capture outcome. A session emits any number of interim events
// followed by at most one terminal event. A session that heard speech but
// never got a finalized result closes without a terminal event.
type Event struct {
	Kind repositories.RecognitionEventKind
	Text string
	Code string
}

// Capture owns microphone sessions. A granted permission is cached for the
// process lifetime; starting a new session aborts the previous one without
// emitting anything from it.
type Capture struct {
	recognizer     repositories.SpeechRecognizer
	logger         *zap.Logger
	audioConfig    repositories.AudioConfig
	silenceTimeout time.Duration

	permissionMu      sync.Mutex
	permissionGranted bool

	mu      sync.Mutex
	current *Session
}

// NewCapture creates a capture layer around a recognizer
func NewCapture(recognizer repositories.SpeechRecognizer, audioConfig repositories.AudioConfig, silenceTimeout time.Duration, logger *zap.Logger) *Capture {
	if silenceTimeout <= 0 {
		silenceTimeout = DefaultSilenceTimeout
	}
	return &Capture{
		recognizer:     recognizer,
		logger:         logger,
		audioConfig:    audioConfig,
		silenceTimeout: silenceTimeout,
	}
}

// Session is one utterance in progress
type Session struct {
	events chan Event
	stream repositories.RecognitionStream
	cancel context.CancelFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Events yields interim updates and, when the recognizer finalized speech or
// nothing was heard, a terminal event. The channel always closes at the end.
func (s *Session) Events() <-chan Event { return s.events }

// Write forwards captured audio into the recognizer
func (s *Session) Write(data []byte) error {
	if s.stream == nil {
		return nil
	}
	return s.stream.Write(data)
}

// Stop ends the utterance on user request. Only finalized recognizer results
// survive; unconfirmed interim text is discarded and the session closes
// silently.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Abort tears the session down without emitting anything
func (s *Session) Abort() {
	s.cancel()
	if s.stream != nil {
		s.stream.Stop()
	}
}

// Start begins a new utterance. A previous session still running is aborted
// first. Startup failures arrive through the event channel so callers handle
// exactly one code path.
func (c *Capture) Start(ctx context.Context) *Session {
	c.mu.Lock()
	if c.current != nil {
		c.current.Abort()
	}
	ctx, cancel := context.WithCancel(ctx)
	session := &Session{
		events: make(chan Event, 8),
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
	c.current = session
	c.mu.Unlock()

	// A grant is cached for the process lifetime; a denial is retried on the
	// next tap so the user can change their mind.
	c.permissionMu.Lock()
	granted := c.permissionGranted
	if !granted {
		if err := c.recognizer.RequestPermission(ctx); err != nil {
			c.permissionMu.Unlock()
			c.logger.Warn("Microphone permission denied", zap.Error(err))
			session.events <- Event{Kind: repositories.EventError, Code: repositories.ErrCodePermissionDenied}
			close(session.events)
			return session
		}
		c.permissionGranted = true
	}
	c.permissionMu.Unlock()

	stream, err := c.recognizer.Start(ctx, c.audioConfig)
	if err != nil {
		c.logger.Warn("Failed to start recognition", zap.Error(err))
		session.events <- Event{Kind: repositories.EventError, Code: repositories.ErrCodeUnsupported}
		close(session.events)
		return session
	}
	session.stream = stream

	go c.run(ctx, session)
	return session
}

// run pumps recognizer events, re-accumulating finalized segments with the
// live interim so the caller always sees the full utterance so far.
func (c *Capture) run(ctx context.Context, s *Session) {
	defer close(s.events)
	defer s.stream.Stop()

	timer := time.NewTimer(c.silenceTimeout)
	defer timer.Stop()

	var segments []string
	var interim string
	var lastEmitted string
	heardSpeech := false

	accumulated := func() string {
		parts := append([]string(nil), segments...)
		if interim != "" {
			parts = append(parts, interim)
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}

	// Only finalized segments become a final result. Interim text the
	// recognizer never confirmed is discarded: the session closes without a
	// terminal event. A no-speech error is reserved for utterances where
	// nothing was heard at all.
	finish := func() {
		text := strings.TrimSpace(strings.Join(segments, " "))
		if text != "" && !IsGarbage(text) {
			s.events <- Event{Kind: repositories.EventFinal, Text: text}
			return
		}
		if !heardSpeech {
			s.events <- Event{Kind: repositories.EventError, Code: repositories.ErrCodeNoSpeech}
		}
	}

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.silenceTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.stopCh:
			finish()
			return

		case <-timer.C:
			c.logger.Info("Silence timeout, ending utterance")
			finish()
			return

		case ev, ok := <-s.stream.Events():
			if !ok {
				finish()
				return
			}
			switch ev.Kind {
			case repositories.EventInterim:
				if IsGarbage(ev.Text) {
					continue
				}
				interim = ev.Text
				resetTimer()
				if text := accumulated(); text != "" && text != lastEmitted {
					heardSpeech = true
					lastEmitted = text
					s.events <- Event{Kind: repositories.EventInterim, Text: text}
				}

			case repositories.EventFinal:
				if !IsGarbage(ev.Text) && strings.TrimSpace(ev.Text) != "" {
					segments = append(segments, strings.TrimSpace(ev.Text))
					heardSpeech = true
				}
				interim = ""
				finish()
				return

			case repositories.EventError:
				// Keep finalized segments when the recognizer gives up mid-way.
				if ev.Code == repositories.ErrCodeNoSpeech && heardSpeech {
					finish()
					return
				}
				s.events <- Event{Kind: repositories.EventError, Code: ev.Code}
				return
			}
		}
	}
}
