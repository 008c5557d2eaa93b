package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/LHYEjoo/POC-JASON-IMG/adapters/llm"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/retrieval"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/storage"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/stt"
	"github.com/LHYEjoo/POC-JASON-IMG/adapters/tts"
	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/api"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/auth"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/config"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/conversation"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/speech"
	"github.com/LHYEjoo/POC-JASON-IMG/internal/websocket"
	"github.com/LHYEjoo/POC-JASON-IMG/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)
	auth.Configure(cfg.JWTSecret)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Kiosk assets, including the protest photo
	e.Static("/", "public")

	// Initialize adapters, falling back to mocks when credentials are absent
	// so the kiosk still runs locally.
	retriever := buildRetriever(logger)
	model := buildLLM(logger)
	synthesizer := buildSynthesizer(cfg, logger)
	store := buildStore(cfg, logger)

	answers := usecase.NewAnswerService(retriever, model, synthesizer, usecase.AnswerConfig{
		RAGMinScore:   cfg.RAGMinScore,
		StrictRAGOnly: cfg.StrictRAGOnly,
		ProjectID:     cfg.ProjectID,
	}, logger)

	capture := speech.NewCapture(stt.NewGoogleSpeechRecognizer(logger), repositories.AudioConfig{
		SampleRate: 16000,
		Encoding:   "WEBM_OPUS",
		Language:   "nl-NL",
	}, cfg.SilenceTimeout, logger)

	// The hub is both the kiosk's view of the transcript and the playback
	// sink the queue drains into.
	hub := websocket.NewHub(logger)
	controller := conversation.NewController(answers, capture, hub, store, hub, conversation.Config{
		DedupWindow:       cfg.DedupWindow,
		InactivityTimeout: cfg.InactivityTimeout,
	}, logger)
	hub.Bind(controller)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func buildRetriever(logger *zap.Logger) repositories.Retriever {
	supabaseConfig := retrieval.NewSupabaseConfigFromEnv()
	if err := retrieval.ValidateSupabaseConfig(supabaseConfig); err != nil {
		logger.Warn("Supabase retrieval not configured, answers will be refused", zap.Error(err))
		return retrieval.NewMockRetriever(repositories.SearchResult{})
	}
	retriever, err := retrieval.NewSupabaseRetriever(supabaseConfig, logger)
	if err != nil {
		logger.Fatal("Failed to create retriever", zap.Error(err))
	}
	return retriever
}

func buildLLM(logger *zap.Logger) repositories.LargeLanguageModel {
	geminiConfig := llm.NewGeminiConfigFromEnv()
	if err := llm.ValidateGeminiConfig(geminiConfig); err != nil {
		logger.Warn("Gemini not configured, using canned replies", zap.Error(err))
		return llm.NewMockGeminiClient("Daar kan ik nu niets over zeggen.")
	}
	model, err := llm.NewGeminiLLM(geminiConfig, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	return model
}

func buildSynthesizer(cfg config.Config, logger *zap.Logger) repositories.SpeechSynthesizer {
	elevenConfig := tts.NewElevenLabsConfigFromEnv()
	if err := tts.ValidateElevenLabsConfig(elevenConfig); err != nil {
		logger.Warn("ElevenLabs not configured, using silent clips", zap.Error(err))
		return tts.NewMockSynthesizer()
	}

	clipStore, err := tts.NewSupabaseClipStore(
		os.Getenv("SUPABASE_URL"),
		os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		cfg.AudioBucket,
	)
	if err != nil {
		logger.Warn("Clip storage not configured, using silent clips", zap.Error(err))
		return tts.NewMockSynthesizer()
	}

	synthesizer, err := tts.NewElevenLabsTTS(elevenConfig, clipStore, logger)
	if err != nil {
		logger.Fatal("Failed to create speech synthesizer", zap.Error(err))
	}
	return synthesizer
}

func buildStore(cfg config.Config, logger *zap.Logger) repositories.ConversationStore {
	if !cfg.EnableSupabaseStorage {
		return nil
	}
	store, err := storage.NewSupabaseConversationStore(
		os.Getenv("SUPABASE_URL"),
		os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		logger,
	)
	if err != nil {
		logger.Warn("Conversation storage not configured, transcripts stay in memory", zap.Error(err))
		return nil
	}
	return store
}
