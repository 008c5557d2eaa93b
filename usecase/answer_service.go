package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/audio"
)

const (
	searchTopK          = 8
	searchMinSimilarity = 0.0
)

// AnswerConfig tunes the retrieval gate
type AnswerConfig struct {
	RAGMinScore   float64
	StrictRAGOnly bool
	ProjectID     string
}

// Answer is a composed reply, ready for synthesis or silent reveal
type Answer struct {
	Bursts    []string
	ImageURL  string
	Citations string
	Refusal   bool
}

// AnswerService turns a committed user question into a grounded answer. It
// never answers without evidence: below the similarity threshold the persona
// refuses instead of improvising.
type AnswerService struct {
	retriever repositories.Retriever
	llm       repositories.LargeLanguageModel
	tts       repositories.SpeechSynthesizer
	config    AnswerConfig
	logger    *zap.Logger
}

// NewAnswerService creates the answer pipeline
func NewAnswerService(
	retriever repositories.Retriever,
	llm repositories.LargeLanguageModel,
	tts repositories.SpeechSynthesizer,
	config AnswerConfig,
	logger *zap.Logger,
) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		llm:       llm,
		tts:       tts,
		config:    config,
		logger:    logger,
	}
}

// Compose retrieves evidence, applies the gate and produces the reply
func (s *AnswerService) Compose(ctx context.Context, question string) (Answer, error) {
	search, err := s.retriever.Search(ctx, question, searchTopK, searchMinSimilarity, s.config.ProjectID)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieval failed: %w", err)
	}

	topScore := search.TopScore()
	hasEvidence := len(search.Chunks) > 0 && topScore >= s.config.RAGMinScore

	s.logger.Info("Evidence gate evaluated",
		zap.Int("matches", len(search.Chunks)),
		zap.Float64("top_score", topScore),
		zap.Float64("threshold", s.config.RAGMinScore),
		zap.Bool("strict", s.config.StrictRAGOnly),
		zap.Bool("has_evidence", hasEvidence))

	if !hasEvidence && s.config.StrictRAGOnly {
		return Answer{
			Bursts:  []string{RemoveTrailingPeriods(RefusalFor(question))},
			Refusal: true,
		}, nil
	}

	messages := BuildPrompt(question, search.Chunks)
	completion, err := s.llm.Complete(ctx, messages, 0)
	if err != nil {
		return Answer{}, fmt.Errorf("completion failed: %w", err)
	}

	fullText := strings.TrimSpace(completion.Text)
	if fullText == "" {
		fullText = RefusalFor(question)
	}

	// A punctuation-only reply survives the empty check but splits into zero
	// bursts; treat it like an empty reply.
	bursts := SplitIntoBursts(fullText)
	if len(bursts) == 0 {
		bursts = []string{RemoveTrailingPeriods(RefusalFor(question))}
	}

	answer := Answer{
		Bursts:   bursts,
		ImageURL: ImageForPrompt(question),
	}
	if len(search.Sources) > 0 {
		answer.Citations = FormatGroupedCitations(search.Sources, search.Chunks)
	}
	return answer, nil
}

// SynthesizeOne renders a single standalone line, such as the photo
// follow-up, into a playable item.
func (s *AnswerService) SynthesizeOne(ctx context.Context, text string) (audio.Item, error) {
	clip, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return audio.Item{}, err
	}
	return audio.Item{
		ID:   uuid.New().String(),
		Text: text,
		URL:  clip.URL,
	}, nil
}

// burstResult carries one synthesis outcome back in index order
type burstResult struct {
	clip repositories.Clip
	err  error
}

// Synthesize generates clips for all bursts concurrently but enqueues them
// strictly in order, so the first burst can play while later ones are still
// rendering. A failed burst is skipped; its text is lost with the clip, which
// keeps the spoken and shown transcript identical. Returns how many items
// were enqueued so the caller can tell when synthesis failed wholesale.
func (s *AnswerService) Synthesize(ctx context.Context, answer Answer, enqueue func(audio.Item)) int {
	results := make([]chan burstResult, len(answer.Bursts))
	for i, text := range answer.Bursts {
		results[i] = make(chan burstResult, 1)
		go func(i int, text string) {
			clip, err := s.tts.Synthesize(ctx, text)
			results[i] <- burstResult{clip: clip, err: err}
		}(i, text)
	}

	enqueued := 0
	for i, text := range answer.Bursts {
		result := <-results[i]
		if result.err != nil {
			s.logger.Warn("Burst synthesis failed, skipping",
				zap.Int("index", i),
				zap.Error(result.err))
			continue
		}
		item := audio.Item{
			ID:   uuid.New().String(),
			Text: text,
			URL:  result.clip.URL,
		}
		if i == len(answer.Bursts)-1 && answer.ImageURL != "" {
			item.ImageURL = answer.ImageURL
		}
		enqueue(item)
		enqueued++
	}
	return enqueued
}
