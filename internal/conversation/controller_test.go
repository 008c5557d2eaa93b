package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/LHYEjoo/POC-JASON-IMG/adapters/llm"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/retrieval"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/stt"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/tts"
	"github.com/LHYEjoo/POC-JASON-IMG/domain/entities"
	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/audio"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/speech"
	"github.com/LHYEjoo/POC-JASON-IMG/usecase"
)

type instantSink struct{}

func (instantSink) Play(ctx context.Context, item audio.Item) error { return nil }

type countingSink struct {
	mu    sync.Mutex
	plays int
}

func (s *countingSink) Play(ctx context.Context, item audio.Item) error {
	s.mu.Lock()
	s.plays++
	s.mu.Unlock()
	return nil
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

type recordingView struct {
	mu     sync.Mutex
	toasts []string
}

func (v *recordingView) TranscriptChanged(state entities.TurnState, messages []entities.Message) {}

func (v *recordingView) Toast(text string) {
	v.mu.Lock()
	v.toasts = append(v.toasts, text)
	v.mu.Unlock()
}

func (v *recordingView) toastCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.toasts)
}

func evidence() repositories.SearchResult {
	return repositories.SearchResult{
		Sources: []repositories.Source{
			{ChunkID: "c1", DocumentID: "doc-1", Title: "Interview", Score: 0.9},
		},
		Chunks: []repositories.Chunk{
			{ChunkID: "c1", DocumentID: "doc-1", Content: "Ik vluchtte naar Taiwan.", Score: 0.9},
		},
	}
}

type fixture struct {
	controller *Controller
	view       *recordingView
	llm        *llm.MockGeminiClient
	recognizer *stt.MockSpeechRecognizer
}

func newFixture(t *testing.T, result repositories.SearchResult, reply string, scripts ...[]repositories.RecognitionEvent) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	mockLLM := llm.NewMockGeminiClient(reply)
	answers := usecase.NewAnswerService(
		retrieval.NewMockRetriever(result),
		mockLLM,
		tts.NewMockSynthesizer(),
		usecase.AnswerConfig{RAGMinScore: 0.75, StrictRAGOnly: true},
		logger,
	)

	recognizer := stt.NewMockSpeechRecognizer(scripts...)
	capture := speech.NewCapture(recognizer, repositories.AudioConfig{
		SampleRate: 16000, Encoding: "WEBM_OPUS", Language: "nl-NL",
	}, time.Second, logger)

	view := &recordingView{}
	controller := NewController(answers, capture, instantSink{}, nil, view, Config{
		DedupWindow:       200 * time.Millisecond,
		InactivityTimeout: time.Hour,
	}, logger)
	controller.AudioUnlock()

	return &fixture{controller: controller, view: view, llm: mockLLM, recognizer: recognizer}
}

func waitForIdle(t *testing.T, c *Controller) []entities.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state, msgs := c.Snapshot()
		if state == entities.TurnIdle {
			return msgs
		}
		time.Sleep(10 * time.Millisecond)
	}
	state, msgs := c.Snapshot()
	t.Fatalf("controller never returned to idle; state=%s messages=%d", state, len(msgs))
	return nil
}

func countByRole(msgs []entities.Message, role entities.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

func TestControllerTypedQuestionFullTurn(t *testing.T) {
	f := newFixture(t, evidence(), "Ik nam een groot risico. De politie zag me. Daarna vluchtte ik.")

	f.controller.UserText("Wat gebeurde er tijdens de protesten?")
	msgs := waitForIdle(t, f.controller)

	if got := countByRole(msgs, entities.RoleUser); got != 1 {
		t.Errorf("expected 1 user message, got %d", got)
	}
	// 2 seeds + 3 bursts + photo follow-up + citations footer
	if got := countByRole(msgs, entities.RoleAI); got != 7 {
		for _, m := range msgs {
			t.Logf("msg: role=%s text=%q image=%q", m.Role, m.Text, m.ImageURL)
		}
		t.Errorf("expected 7 ai messages, got %d", got)
	}

	last := msgs[len(msgs)-1]
	if last.Text == "" || last.Role != entities.RoleAI {
		t.Errorf("unexpected last message: %+v", last)
	}

	var sawImage, sawFollowUp bool
	for _, m := range msgs {
		if m.ImageURL == "/img/protest_img.jpg" {
			sawImage = true
		}
		if m.Text == usecase.FinalImageText {
			sawFollowUp = true
		}
	}
	if !sawImage {
		t.Error("protest answer should carry the photo")
	}
	if !sawFollowUp {
		t.Error("photo follow-up line missing")
	}
}

func TestControllerRefusalNeverConsultsModel(t *testing.T) {
	f := newFixture(t, repositories.SearchResult{}, "verboden")

	f.controller.UserText("Wat is je naam?")
	msgs := waitForIdle(t, f.controller)

	if f.llm.CallCount() != 0 {
		t.Errorf("model consulted %d times for gated question", f.llm.CallCount())
	}
	found := false
	for _, m := range msgs {
		if m.Text == usecase.RemoveTrailingPeriods(usecase.RefusalSensitive) {
			found = true
		}
	}
	if !found {
		t.Error("sensitive refusal not shown")
	}
}

func TestControllerRejectsEmptyAndGarbage(t *testing.T) {
	f := newFixture(t, evidence(), "antwoord")

	f.controller.UserText("   ")
	f.controller.UserText("Ondertitels ingediend door de Amara.org gemeenschap")
	time.Sleep(100 * time.Millisecond)

	state, msgs := f.controller.Snapshot()
	if state != entities.TurnIdle {
		t.Errorf("rejected input changed state to %s", state)
	}
	if got := countByRole(msgs, entities.RoleUser); got != 0 {
		t.Errorf("rejected input reached transcript: %d user messages", got)
	}
}

func TestControllerDedupWindow(t *testing.T) {
	f := newFixture(t, evidence(), "Kort antwoord")

	f.controller.UserText("Waarom ben je gevlucht?")
	f.controller.UserText("Waarom ben je gevlucht?")
	msgs := waitForIdle(t, f.controller)

	if got := countByRole(msgs, entities.RoleUser); got != 1 {
		t.Errorf("duplicate inside window should be dropped, got %d user messages", got)
	}
}

func TestControllerToastOnRetrievalFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockRetriever := retrieval.NewMockRetriever(repositories.SearchResult{})
	mockRetriever.Err = errors.New("rpc down")
	answers := usecase.NewAnswerService(
		mockRetriever,
		llm.NewMockGeminiClient(""),
		tts.NewMockSynthesizer(),
		usecase.AnswerConfig{RAGMinScore: 0.75, StrictRAGOnly: true},
		logger,
	)
	view := &recordingView{}
	controller := NewController(answers, speech.NewCapture(stt.NewMockSpeechRecognizer(), repositories.AudioConfig{}, time.Second, logger), instantSink{}, nil, view, Config{InactivityTimeout: time.Hour}, logger)
	controller.AudioUnlock()

	controller.UserText("vraag zonder antwoord")
	waitForIdle(t, controller)

	if view.toastCount() == 0 {
		t.Error("pipeline failure should surface a toast")
	}
}

func TestControllerSpokenQuestionFlow(t *testing.T) {
	script := []repositories.RecognitionEvent{
		{Kind: repositories.EventInterim, Text: "waarom ben je"},
		{Kind: repositories.EventFinal, Text: "waarom ben je gevlucht"},
	}
	f := newFixture(t, evidence(), "Omdat ik moest", script)

	f.controller.MicTap()
	msgs := waitForIdle(t, f.controller)

	if got := countByRole(msgs, entities.RoleUser); got != 1 {
		t.Fatalf("expected 1 user message from speech, got %d", got)
	}
	for _, m := range msgs {
		if m.Status == entities.StatusStream {
			t.Errorf("interim bubble survived the turn: %+v", m)
		}
		if m.Role == entities.RoleUser && m.Text != "waarom ben je gevlucht" {
			t.Errorf("unexpected recognized text: %q", m.Text)
		}
	}
}

func TestControllerMicStopWithInterimOnlyReturnsIdle(t *testing.T) {
	// The recognizer never finalizes, so stopping must not commit the interim
	// text as a question.
	script := []repositories.RecognitionEvent{
		{Kind: repositories.EventInterim, Text: "half verstaan"},
	}
	f := newFixture(t, evidence(), "mag niet gebruikt worden", script)

	f.controller.MicTap()

	// Wait for the interim bubble, then stop the recording.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, msgs := f.controller.Snapshot()
		if countByRole(msgs, entities.RoleUser) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("interim bubble never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.controller.MicStop()

	msgs := waitForIdle(t, f.controller)
	if got := countByRole(msgs, entities.RoleUser); got != 0 {
		t.Errorf("unfinalized speech reached the transcript: %d user messages", got)
	}
	if f.llm.CallCount() != 0 {
		t.Errorf("no answer should start from unfinalized speech, model called %d times", f.llm.CallCount())
	}
	if f.view.toastCount() != 0 {
		t.Errorf("silent stop should not toast, got %d toasts", f.view.toastCount())
	}
}

func TestControllerCitationsFollowAllBursts(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockTTS := tts.NewMockSynthesizer()
	gate := make(chan struct{})
	mockTTS.GateTexts = map[string]chan struct{}{"Twee": gate}
	answers := usecase.NewAnswerService(
		retrieval.NewMockRetriever(evidence()),
		llm.NewMockGeminiClient("Een. Twee."),
		mockTTS,
		usecase.AnswerConfig{RAGMinScore: 0.75, StrictRAGOnly: true},
		logger,
	)
	view := &recordingView{}
	capture := speech.NewCapture(stt.NewMockSpeechRecognizer(), repositories.AudioConfig{}, time.Second, logger)
	controller := NewController(answers, capture, instantSink{}, nil, view, Config{InactivityTimeout: time.Hour}, logger)
	controller.AudioUnlock()

	controller.UserText("Waarom ben je gevlucht?")

	// Let the first burst play out while the second is still rendering, then
	// release it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, msgs := controller.Snapshot()
		seen := false
		for _, m := range msgs {
			if m.Text == "Een" {
				seen = true
			}
		}
		if seen {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first burst never revealed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)

	msgs := waitForIdle(t, controller)
	burstIdx, citeIdx := -1, -1
	for i, m := range msgs {
		if m.Text == "Twee" {
			burstIdx = i
		}
		if strings.HasPrefix(m.Text, "Bronnen") {
			citeIdx = i
		}
	}
	if burstIdx == -1 || citeIdx == -1 {
		t.Fatalf("missing burst or citations in transcript: %+v", msgs)
	}
	if citeIdx < burstIdx {
		t.Errorf("citations footer shown before the last burst: %+v", msgs)
	}
}

func TestControllerAudioToggleDuringComposeTakesEffect(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockRetriever := retrieval.NewMockRetriever(evidence())
	gate := make(chan struct{})
	mockRetriever.Gate = gate
	answers := usecase.NewAnswerService(
		mockRetriever,
		llm.NewMockGeminiClient("Kort"),
		tts.NewMockSynthesizer(),
		usecase.AnswerConfig{RAGMinScore: 0.75, StrictRAGOnly: true},
		logger,
	)
	view := &recordingView{}
	sink := &countingSink{}
	capture := speech.NewCapture(stt.NewMockSpeechRecognizer(), repositories.AudioConfig{}, time.Second, logger)
	controller := NewController(answers, capture, sink, nil, view, Config{InactivityTimeout: time.Hour}, logger)
	controller.AudioUnlock()

	controller.UserText("Waarom ben je gevlucht?")

	// Turn audio off while retrieval is still running; the answer must take
	// the silent path.
	controller.SetAudioEnabled(false)
	close(gate)

	msgs := waitForIdle(t, controller)
	if sink.count() != 0 {
		t.Errorf("silent answer played %d clips", sink.count())
	}
	found := false
	for _, m := range msgs {
		if m.Text == "Kort" {
			found = true
		}
	}
	if !found {
		t.Error("answer burst missing from transcript")
	}
}

func TestControllerResetKeepsSeeds(t *testing.T) {
	f := newFixture(t, evidence(), "Kort antwoord")

	f.controller.UserText("Waarom ben je gevlucht?")
	waitForIdle(t, f.controller)

	f.controller.Reset()
	state, msgs := f.controller.Snapshot()
	if state != entities.TurnIdle {
		t.Errorf("expected idle after reset, got %s", state)
	}
	if len(msgs) != len(entities.SeedMessages()) {
		t.Errorf("expected only seed messages after reset, got %d", len(msgs))
	}
}

func TestControllerSpeechErrorToastsAndRecovers(t *testing.T) {
	script := []repositories.RecognitionEvent{
		{Kind: repositories.EventError, Code: repositories.ErrCodeNoSpeech},
	}
	f := newFixture(t, evidence(), "", script)

	f.controller.MicTap()
	waitForIdle(t, f.controller)

	if f.view.toastCount() != 1 {
		t.Errorf("expected one toast for recognition error, got %d", f.view.toastCount())
	}
	if f.llm.CallCount() != 0 {
		t.Error("no answer should start after a recognition error")
	}
}
