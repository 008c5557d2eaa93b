package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultMaxTokens      = 1024
	defaultTimeoutSeconds = 30
)

// GeminiConfig holds configuration for the Gemini completion adapter
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// NewGeminiConfigFromEnv creates a GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("CHAT_MODEL"),
	}
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client         *genai.Client
	logger         *zap.Logger
	model          string
	maxTokens      int
	timeoutSeconds int
}

// NewGeminiLLM creates a new Gemini completion adapter
func NewGeminiLLM(config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	maxTokens := config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiLLM{
		client:         client,
		logger:         logger,
		model:          model,
		maxTokens:      maxTokens,
		timeoutSeconds: timeoutSeconds,
	}, nil
}

// Complete runs a single chat completion. Temperature comes from the caller so
// the scripted persona can pin it to 0.
func (g *GeminiLLM) Complete(ctx context.Context, messages []repositories.ChatMessage, temperature float32) (repositories.Completion, error) {
	contents := convertToGeminiFormat(messages)
	if len(contents) == 0 {
		return repositories.Completion{}, fmt.Errorf("no messages to complete")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(g.maxTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeoutSeconds)*time.Second)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return repositories.Completion{}, fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil || len(response.Candidates[0].Content.Parts) == 0 {
		return repositories.Completion{}, fmt.Errorf("gemini returned no content")
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return repositories.Completion{}, fmt.Errorf("gemini returned empty text")
	}

	completion := repositories.Completion{Text: text}
	if response.UsageMetadata != nil {
		completion.TokensUsed = response.UsageMetadata.TotalTokenCount
	}

	g.logger.Info("Completion generated",
		zap.String("model", g.model),
		zap.Int("response_length", len(text)),
		zap.Int32("tokens_used", completion.TokensUsed))

	return completion, nil
}

// convertToGeminiFormat converts repository messages to Gemini content.
// System messages become user turns; Gemini has no separate system role here.
func convertToGeminiFormat(messages []repositories.ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		var role genai.Role
		switch msg.Role {
		case repositories.ModelRole:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}
