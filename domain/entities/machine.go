package entities

import "time"

// TurnState is the single UI-visible conversation state. Exactly one value
// holds at any time; transitions are the only way message-producing side
// effects may legally occur.
type TurnState string

const (
	TurnIdle      TurnState = "idle"
	TurnRecording TurnState = "recording"
	TurnTyping    TurnState = "ai_response_typing"
	TurnPlaying   TurnState = "ai_response_playing"
)

// InterimMessageID is the fallback id for the provisional interim-speech
// bubble when the capture layer did not assign a per-utterance id.
const InterimMessageID = "interim-speech"

// DefaultInactivityTimeout is the silence period after the audio queue drains
// before the conversation returns to its resting state.
const DefaultInactivityTimeout = 60 * time.Second

// Context carries the transcript store and the composing buffer. Transition
// treats it as a value: callers receive a fresh copy with a fresh message
// slice whenever the transcript changes.
type Context struct {
	Messages     []Message
	Composing    string
	InactivityAt time.Time
}

// NewContext returns the initial context holding the seed transcript.
func NewContext() Context {
	return Context{Messages: SeedMessages()}
}

// Event is the closed set of inputs the turn state machine accepts.
type Event interface{ isEvent() }

type (
	// MicTap starts a recording session.
	MicTap struct{}
	// AddUser appends a finalized user message (typed input or suggested prompt).
	AddUser struct{ ID, Text string }
	// RecogResult replaces the interim bubble with the finalized user message.
	RecogResult struct{ ID, Text string }
	// RecogInterim updates the provisional interim bubble.
	RecogInterim struct{ ID, Text string }
	// RecogError aborts the recording session and drops the interim bubble.
	RecogError struct{ Code string }
	// AIStart prepares for an answer: residual interim bubbles are dropped.
	AIStart struct{ ID string }
	// AIDelta accumulates streamed answer text in the composing buffer.
	AIDelta struct{ Text string }
	// AIFinal commits the composed (or fallback) answer text.
	AIFinal struct{ ID, Text string }
	// AddAIMessage appends an AI message verbatim (burst/audio pipeline path).
	AddAIMessage struct{ ID, Text, ImageURL string }
	// AudioEnded signals that the playback queue drained.
	AudioEnded struct{}
	// InactivityTimeout fires after the configured silence period.
	InactivityTimeout struct{}
	// Reset truncates the transcript to the seed messages.
	Reset struct{}
)

func (MicTap) isEvent()            {}
func (AddUser) isEvent()           {}
func (RecogResult) isEvent()       {}
func (RecogInterim) isEvent()      {}
func (RecogError) isEvent()        {}
func (AIStart) isEvent()           {}
func (AIDelta) isEvent()           {}
func (AIFinal) isEvent()           {}
func (AddAIMessage) isEvent()      {}
func (AudioEnded) isEvent()        {}
func (InactivityTimeout) isEvent() {}
func (Reset) isEvent()             {}

// Transition applies one event to the turn state machine. It is a pure
// reducer: no I/O happens here, callers inspect the event afterwards to run
// side effects. Empty or garbage text never reaches this function; that is
// filtered at the dispatch boundary.
func Transition(state TurnState, ctx Context, ev Event) (TurnState, Context) {
	switch e := ev.(type) {
	case MicTap:
		return TurnRecording, ctx

	case AddUser:
		ctx.Messages = appendMessage(ctx.Messages, Message{ID: e.ID, Role: RoleUser, Text: e.Text, Status: StatusFinal})
		ctx.Composing = ""
		return TurnTyping, ctx

	case RecogResult:
		id := e.ID
		if id == "" {
			id = InterimMessageID
		}
		msgs := removeMessage(ctx.Messages, id)
		ctx.Messages = appendMessage(msgs, Message{ID: id, Role: RoleUser, Text: e.Text, Status: StatusFinal})
		ctx.Composing = ""
		return TurnTyping, ctx

	case RecogInterim:
		id := e.ID
		if id == "" {
			id = InterimMessageID
		}
		// Identical interim text is a no-op so the bubble does not flicker.
		for _, m := range ctx.Messages {
			if m.ID == id && m.Text == e.Text {
				return state, ctx
			}
		}
		msgs := removeMessage(ctx.Messages, id)
		ctx.Messages = appendMessage(msgs, Message{ID: id, Role: RoleUser, Text: e.Text, Status: StatusStream})
		return state, ctx

	case RecogError:
		ctx.Messages = dropStreamMessages(ctx.Messages)
		return TurnIdle, ctx

	case AIStart:
		ctx.Messages = dropStreamMessages(ctx.Messages)
		ctx.Composing = ""
		return TurnTyping, ctx

	case AIDelta:
		ctx.Composing += e.Text
		return TurnTyping, ctx

	case AIFinal:
		text := ctx.Composing
		if text == "" {
			text = e.Text
		}
		ctx.Messages = appendMessage(ctx.Messages, Message{ID: e.ID, Role: RoleAI, Text: text, Status: StatusFinal})
		ctx.Composing = ""
		return TurnPlaying, ctx

	case AddAIMessage:
		ctx.Messages = appendMessage(ctx.Messages, Message{ID: e.ID, Role: RoleAI, Text: e.Text, Status: StatusFinal, ImageURL: e.ImageURL})
		return TurnPlaying, ctx

	case AudioEnded:
		ctx.InactivityAt = time.Now().Add(DefaultInactivityTimeout)
		return TurnIdle, ctx

	case InactivityTimeout:
		return TurnIdle, ctx

	case Reset:
		var seeds []Message
		for _, m := range ctx.Messages {
			if m.IsSeed() {
				seeds = append(seeds, m)
			}
		}
		return TurnIdle, Context{Messages: seeds}
	}

	return state, ctx
}

func appendMessage(msgs []Message, m Message) []Message {
	out := make([]Message, 0, len(msgs)+1)
	out = append(out, msgs...)
	return append(out, m)
}

func removeMessage(msgs []Message, id string) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func dropStreamMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Status != StatusStream {
			out = append(out, m)
		}
	}
	return out
}
