package config

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestLoadDefaults(t *testing.T) {
	logger := zaptest.NewLogger(t)

	cfg := Load(logger)

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if !cfg.StrictRAGOnly {
		t.Error("Strict RAG mode should default to on")
	}
	if cfg.RAGMinScore != 0.75 {
		t.Errorf("Expected default min score 0.75, got %f", cfg.RAGMinScore)
	}
	if cfg.DedupWindow != 2*time.Second {
		t.Errorf("Expected default dedup window 2s, got %s", cfg.DedupWindow)
	}
	if cfg.InactivityTimeout != 60*time.Second {
		t.Errorf("Expected default inactivity timeout 60s, got %s", cfg.InactivityTimeout)
	}
	if cfg.JWTSecret == "" {
		t.Error("JWT secret should fall back to a development value")
	}
}

func TestLoadOverrides(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Setenv("PORT", "9000")
	t.Setenv("STRICT_RAG_ONLY", "false")
	t.Setenv("RAG_MIN_SCORE", "0.5")
	t.Setenv("DEDUP_WINDOW_MS", "500")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load(logger)

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if cfg.StrictRAGOnly {
		t.Error("Strict RAG mode should be off")
	}
	if cfg.RAGMinScore != 0.5 {
		t.Errorf("Expected min score 0.5, got %f", cfg.RAGMinScore)
	}
	if cfg.DedupWindow != 500*time.Millisecond {
		t.Errorf("Expected dedup window 500ms, got %s", cfg.DedupWindow)
	}
	if cfg.JWTSecret != "secret" {
		t.Errorf("Expected configured secret, got %s", cfg.JWTSecret)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Setenv("RAG_MIN_SCORE", "not-a-number")
	t.Setenv("DEDUP_WINDOW_MS", "-100")
	t.Setenv("STRICT_RAG_ONLY", "maybe")

	cfg := Load(logger)

	if cfg.RAGMinScore != 0.75 {
		t.Errorf("Bad min score should fall back to 0.75, got %f", cfg.RAGMinScore)
	}
	if cfg.DedupWindow != 2*time.Second {
		t.Errorf("Bad dedup window should fall back to 2s, got %s", cfg.DedupWindow)
	}
	if !cfg.StrictRAGOnly {
		t.Error("Bad boolean should fall back to default")
	}
}
