package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/audio"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/speech"
	"github.com/LHYEjoo/POC-JASON-IMG/usecase"
)

// Recognition error toasts shown on the kiosk
const (
	toastUnsupported      = "Spraakherkenning wordt niet ondersteund in deze browser. Gebruik Chrome op desktop of typ je vraag met het toetsenbord."
	toastPermissionDenied = "Microfoontoegang geweigerd. Controleer de site-instellingen en probeer het opnieuw."
	toastNoSpeech         = "Geen spraak gedetecteerd. Spreek dichter bij de microfoon en probeer het opnieuw."
	toastNetwork          = "Netwerkfout tijdens spraakherkenning. Probeer het opnieuw."
	toastSpeechError      = "Er is een fout opgetreden bij de spraakherkenning. Probeer het opnieuw of gebruik het toetsenbord."
	toastAnswerError      = "Network error"
)

// View receives everything the kiosk needs to render
type View interface {
	TranscriptChanged(state entities.TurnState, messages []entities.Message)
	Toast(text string)
}

// Config tunes the controller timings
type Config struct {
	DedupWindow       time.Duration
	InactivityTimeout time.Duration
}

// Controller is the single authoritative owner of the conversation. All
// inputs funnel through Dispatch under one mutex; the pure transition decides
// the next state and the event decides which side effects run.
type Controller struct {
	answers *usecase.AnswerService
	capture *speech.Capture
	queue   *audio.Queue
	store   repositories.ConversationStore
	view    View
	config  Config
	logger  *zap.Logger

	inactivity *InactivityTimer

	mu       sync.Mutex
	state    entities.TurnState
	context  entities.Context
	turn     int
	session  *speech.Session
	speechID string

	audioEnabled   bool
	pendingImage   string
	pendingCite    string
	lastRequest    string
	lastRequestAt  time.Time
	conversationID string
}

// NewController wires the controller and its playback queue
func NewController(
	answers *usecase.AnswerService,
	capture *speech.Capture,
	sink audio.Sink,
	store repositories.ConversationStore,
	view View,
	config Config,
	logger *zap.Logger,
) *Controller {
	if config.DedupWindow <= 0 {
		config.DedupWindow = 2 * time.Second
	}
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = entities.DefaultInactivityTimeout
	}

	c := &Controller{
		answers:      answers,
		capture:      capture,
		store:        store,
		view:         view,
		config:       config,
		logger:       logger,
		state:        entities.TurnIdle,
		context:      entities.NewContext(),
		audioEnabled: true,
	}
	c.inactivity = NewInactivityTimer(func() {
		c.Dispatch(entities.InactivityTimeout{})
	})
	c.queue = audio.NewQueue(sink, c.onReveal, c.onDrained, logger)

	if store != nil {
		go c.openConversation()
	}
	return c
}

func (c *Controller) openConversation() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := c.store.CreateConversation(ctx, uuid.New().String())
	if err != nil {
		c.logger.Warn("Conversation persistence unavailable", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.conversationID = id
	c.mu.Unlock()
}

// Snapshot returns the current state and transcript for a joining client
func (c *Controller) Snapshot() (entities.TurnState, []entities.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]entities.Message, len(c.context.Messages))
	copy(msgs, c.context.Messages)
	return c.state, msgs
}

// Dispatch applies one event and runs its side effects. It is the only way
// state changes.
func (c *Controller) Dispatch(ev entities.Event) {
	c.mu.Lock()
	prev := c.state
	c.state, c.context = entities.Transition(c.state, c.context, ev)
	state := c.state
	messages := make([]entities.Message, len(c.context.Messages))
	copy(messages, c.context.Messages)
	c.mu.Unlock()

	c.logger.Debug("Event dispatched",
		zap.String("from", string(prev)),
		zap.String("to", string(state)))

	c.view.TranscriptChanged(state, messages)
	c.persist(ev)

	switch ev.(type) {
	case entities.AudioEnded:
		c.inactivity.Start(c.config.InactivityTimeout)
	case entities.Reset:
		c.queue.Stop()
		c.inactivity.Cancel()
	}
}

// persist writes committed messages to the store, best effort
func (c *Controller) persist(ev entities.Event) {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	convID := c.conversationID
	c.mu.Unlock()
	if convID == "" {
		return
	}

	var msg entities.Message
	switch e := ev.(type) {
	case entities.AddUser:
		msg = entities.Message{ID: e.ID, Role: entities.RoleUser, Text: e.Text, Status: entities.StatusFinal}
	case entities.RecogResult:
		msg = entities.Message{ID: e.ID, Role: entities.RoleUser, Text: e.Text, Status: entities.StatusFinal}
	case entities.AddAIMessage:
		msg = entities.Message{ID: e.ID, Role: entities.RoleAI, Text: e.Text, Status: entities.StatusFinal, ImageURL: e.ImageURL}
	default:
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.store.AppendMessage(ctx, convID, msg); err != nil {
			c.logger.Warn("Failed to persist message", zap.Error(err))
		}
	}()
}

// MicTap starts a recording session
func (c *Controller) MicTap() {
	c.mu.Lock()
	if c.state != entities.TurnIdle {
		c.mu.Unlock()
		return
	}
	c.speechID = uuid.New().String()
	speechID := c.speechID
	c.mu.Unlock()

	c.Dispatch(entities.MicTap{})
	c.inactivity.Cancel()

	session := c.capture.Start(context.Background())
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	go c.pumpSpeech(session, speechID)
}

// MicStop ends the current recording on user request
func (c *Controller) MicStop() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.Stop()
	}
}

// WriteAudio forwards kiosk microphone audio into the recognizer
func (c *Controller) WriteAudio(data []byte) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		if err := session.Write(data); err != nil {
			c.logger.Warn("Failed to forward audio", zap.Error(err))
		}
	}
}

func (c *Controller) pumpSpeech(session *speech.Session, speechID string) {
	terminal := false
	for ev := range session.Events() {
		switch ev.Kind {
		case repositories.EventInterim:
			c.Dispatch(entities.RecogInterim{ID: speechID, Text: ev.Text})

		case repositories.EventFinal:
			terminal = true
			c.clearSession(session)
			if !c.acceptQuestion(ev.Text) {
				c.Dispatch(entities.RecogError{Code: "duplicate"})
				return
			}
			c.Dispatch(entities.RecogResult{ID: speechID, Text: ev.Text})
			c.startAnswer(ev.Text)

		case repositories.EventError:
			terminal = true
			c.clearSession(session)
			c.view.Toast(toastForCode(ev.Code))
			c.Dispatch(entities.RecogError{Code: ev.Code})
		}
	}

	// Speech was heard but never finalized: the session closed silently.
	// Return to idle without a toast, dropping the interim bubble. An aborted
	// session is no longer current and stays where Reset put it.
	if !terminal && c.clearSession(session) {
		c.Dispatch(entities.RecogError{Code: "stopped"})
	}
}

// clearSession detaches the session if it is still the current one and
// reports whether it was.
func (c *Controller) clearSession(session *speech.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		return false
	}
	c.session = nil
	return true
}

func toastForCode(code string) string {
	switch code {
	case repositories.ErrCodeUnsupported:
		return toastUnsupported
	case repositories.ErrCodePermissionDenied, repositories.ErrCodeNotAllowed:
		return toastPermissionDenied
	case repositories.ErrCodeNoSpeech:
		return toastNoSpeech
	case repositories.ErrCodeNetwork:
		return toastNetwork
	default:
		return toastSpeechError
	}
}

// UserText handles typed input and suggested prompts
func (c *Controller) UserText(text string) {
	text = strings.TrimSpace(text)
	if text == "" || speech.IsGarbage(text) {
		c.logger.Debug("Rejected empty or garbage input")
		return
	}
	if !c.acceptQuestion(text) {
		return
	}
	c.inactivity.Cancel()
	c.Dispatch(entities.AddUser{ID: uuid.New().String(), Text: text})
	c.startAnswer(text)
}

// acceptQuestion applies the duplicate guards: the same text never triggers a
// second answer while one is underway, and repeats inside the dedup window
// are dropped.
func (c *Controller) acceptQuestion(text string) bool {
	text = strings.TrimSpace(text)
	hash := strings.ToLower(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == entities.TurnTyping || c.state == entities.TurnPlaying {
		for i := len(c.context.Messages) - 1; i >= 0; i-- {
			if c.context.Messages[i].Role == entities.RoleUser {
				if c.context.Messages[i].Text == text {
					c.logger.Debug("Blocked duplicate question during answer")
					return false
				}
				break
			}
		}
	}

	now := time.Now()
	if c.lastRequest == hash && now.Sub(c.lastRequestAt) < c.config.DedupWindow {
		c.logger.Debug("Blocked duplicate question inside dedup window")
		return false
	}
	c.lastRequest = hash
	c.lastRequestAt = now
	return true
}

// startAnswer runs the retrieval-gated pipeline for a committed question
func (c *Controller) startAnswer(question string) {
	c.mu.Lock()
	c.turn++
	turn := c.turn
	c.pendingImage = ""
	c.pendingCite = ""
	c.mu.Unlock()

	c.Dispatch(entities.AIStart{ID: uuid.New().String()})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		answer, err := c.answers.Compose(ctx, question)
		if c.staleTurn(turn) {
			return
		}
		if err != nil {
			c.logger.Error("Answer pipeline failed", zap.Error(err))
			c.view.Toast(toastAnswerError)
			c.Dispatch(entities.AudioEnded{})
			return
		}

		// Read the toggle after composition so a switch to silent mode during
		// a slow retrieval still takes effect for this turn.
		c.mu.Lock()
		c.pendingImage = answer.ImageURL
		c.pendingCite = answer.Citations
		audioEnabled := c.audioEnabled
		c.mu.Unlock()

		if !audioEnabled {
			c.revealSilently(turn, answer)
			return
		}

		// The batch marker keeps the queue from reporting a drain between
		// bursts while later clips are still rendering.
		c.queue.Begin()
		enqueued := c.answers.Synthesize(ctx, answer, func(item audio.Item) {
			if c.staleTurn(turn) {
				return
			}
			c.queue.Enqueue(item)
		})
		if c.staleTurn(turn) {
			return
		}
		// Total synthesis failure would strand the turn waiting on a queue
		// that never drains; fall back to the silent reveal.
		if enqueued == 0 {
			c.queue.Stop()
			c.revealSilently(turn, answer)
			return
		}
		c.queue.Finish()
	}()
}

func (c *Controller) staleTurn(turn int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn != turn
}

// revealSilently shows the answer with typed-message cadence when audio is
// off. Delays scale with burst length, like a human typing.
func (c *Controller) revealSilently(turn int, answer usecase.Answer) {
	limit := 3 * time.Second
	if answer.Refusal {
		limit = 2500 * time.Millisecond
	}

	delay := usecase.TypingDelay(answer.Bursts[0], limit)
	for i, burst := range answer.Bursts {
		time.Sleep(delay)
		if c.staleTurn(turn) {
			return
		}
		item := entities.AddAIMessage{ID: uuid.New().String(), Text: burst}
		if i == len(answer.Bursts)-1 && answer.ImageURL != "" {
			item.ImageURL = answer.ImageURL
		}
		c.Dispatch(item)
		if i < len(answer.Bursts)-1 {
			delay = usecase.GapDelay(answer.Bursts[i+1])
		}
	}

	if answer.ImageURL != "" {
		time.Sleep(1500 * time.Millisecond)
		if c.staleTurn(turn) {
			return
		}
		c.Dispatch(entities.AddAIMessage{ID: uuid.New().String(), Text: usecase.FinalImageText})
	}

	if answer.Citations != "" {
		pause := time.Second
		if answer.ImageURL != "" {
			pause = 2 * time.Second
		}
		time.Sleep(pause)
		if c.staleTurn(turn) {
			return
		}
		c.Dispatch(entities.AddAIMessage{ID: uuid.New().String(), Text: answer.Citations})
	}

	time.Sleep(500 * time.Millisecond)
	if c.staleTurn(turn) {
		return
	}
	c.mu.Lock()
	c.pendingImage = ""
	c.pendingCite = ""
	c.mu.Unlock()
	c.Dispatch(entities.AudioEnded{})
}

// onReveal shows a burst's text the moment its clip starts
func (c *Controller) onReveal(item audio.Item) {
	c.Dispatch(entities.AddAIMessage{ID: item.ID, Text: item.Text, ImageURL: item.ImageURL})
}

// onDrained runs when the playback queue empties. The photo follow-up and the
// citations footer re-enter the queue or transcript before the turn ends.
func (c *Controller) onDrained() {
	c.mu.Lock()
	image := c.pendingImage
	c.pendingImage = ""
	turn := c.turn
	c.mu.Unlock()

	if image != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			item, err := c.answers.SynthesizeOne(ctx, usecase.FinalImageText)
			if c.staleTurn(turn) {
				return
			}
			if err != nil {
				c.logger.Warn("Photo follow-up synthesis failed", zap.Error(err))
				c.finishTurn()
				return
			}
			c.queue.Enqueue(item)
		}()
		return
	}

	c.finishTurn()
}

// finishTurn flushes pending citations and closes the turn
func (c *Controller) finishTurn() {
	c.mu.Lock()
	cite := c.pendingCite
	c.pendingCite = ""
	c.mu.Unlock()

	if cite != "" {
		c.Dispatch(entities.AddAIMessage{ID: uuid.New().String(), Text: cite})
	}
	c.Dispatch(entities.AudioEnded{})
}

// AudioUnlock opens the autoplay gate after the first user gesture
func (c *Controller) AudioUnlock() {
	c.queue.Unlock()
}

// SetAudioEnabled toggles between spoken and silent answers
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	c.audioEnabled = enabled
	c.mu.Unlock()
}

// Reset returns the kiosk to its resting story
func (c *Controller) Reset() {
	c.mu.Lock()
	c.turn++
	c.pendingImage = ""
	c.pendingCite = ""
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		session.Abort()
	}
	c.Dispatch(entities.Reset{})
}
