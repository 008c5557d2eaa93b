package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/LHYEjoo/POC-JASON-IMG/domain/repositories"
)

const defaultEmbeddingModel = "text-embedding-004"

// SupabaseConfig holds configuration for the retrieval adapter
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	GeminiAPIKey   string
	EmbeddingModel string
}

// ValidateSupabaseConfig validates the SupabaseConfig
func ValidateSupabaseConfig(config SupabaseConfig) error {
	if config.URL == "" {
		return fmt.Errorf("Supabase URL is required")
	}
	if config.ServiceRoleKey == "" {
		return fmt.Errorf("Supabase service role key is required")
	}
	if config.GeminiAPIKey == "" {
		return fmt.Errorf("Google AI API key is required for query embeddings")
	}
	return nil
}

// NewSupabaseConfigFromEnv creates a SupabaseConfig from environment variables
func NewSupabaseConfigFromEnv() SupabaseConfig {
	return SupabaseConfig{
		URL:            os.Getenv("SUPABASE_URL"),
		ServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
	}
}

// SupabaseRetriever implements the Retriever interface on top of a pgvector
// similarity search exposed as the match_chunks RPC
type SupabaseRetriever struct {
	client         *supabase.Client
	embedder       *genai.Client
	logger         *zap.Logger
	embeddingModel string
}

// NewSupabaseRetriever creates a new retrieval adapter
func NewSupabaseRetriever(config SupabaseConfig, logger *zap.Logger) (*SupabaseRetriever, error) {
	if err := ValidateSupabaseConfig(config); err != nil {
		return nil, err
	}

	model := config.EmbeddingModel
	if model == "" {
		model = defaultEmbeddingModel
		logger.Info("Using default embedding model", zap.String("model", model))
	}

	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	embedder, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return &SupabaseRetriever{
		client:         client,
		embedder:       embedder,
		logger:         logger,
		embeddingModel: model,
	}, nil
}

// matchChunkRow mirrors one row returned by the match_chunks RPC
type matchChunkRow struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	SourceID      string  `json:"source_id"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
}

// Search embeds the query and runs the similarity RPC. A failed search-log
// insert is logged and ignored; it never fails the search.
func (r *SupabaseRetriever) Search(ctx context.Context, query string, topK int, minSimilarity float64, projectID string) (repositories.SearchResult, error) {
	embedding, err := r.embedQuery(ctx, query)
	if err != nil {
		return repositories.SearchResult{}, err
	}

	params := map[string]interface{}{
		"query_embedding": embedding,
		"match_count":     topK,
		"min_similarity":  minSimilarity,
		"project_id":      projectID,
	}

	raw := r.client.Rpc("match_chunks", "", params)
	if raw == "" {
		return repositories.SearchResult{}, fmt.Errorf("match_chunks RPC returned no data")
	}

	var rows []matchChunkRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return repositories.SearchResult{}, fmt.Errorf("failed to decode match_chunks response: %w", err)
	}

	var result repositories.SearchResult
	for _, row := range rows {
		result.Sources = append(result.Sources, repositories.Source{
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			Title:      row.DocumentTitle,
			SourceID:   row.SourceID,
			Score:      row.Similarity,
		})
		result.Chunks = append(result.Chunks, repositories.Chunk{
			Content:    row.Content,
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			Score:      row.Similarity,
		})
	}

	r.logger.Info("Knowledge base searched",
		zap.Int("query_length", len(query)),
		zap.Int("chunks", len(result.Chunks)),
		zap.Float64("top_score", result.TopScore()))

	r.logSearch(query, projectID, result)

	return result, nil
}

func (r *SupabaseRetriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}
	resp, err := r.embedder.Models.EmbedContent(ctx, r.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return resp.Embeddings[0].Values, nil
}

// logSearch records the query and its top score for later tuning of the
// similarity threshold. Best effort only.
func (r *SupabaseRetriever) logSearch(query, projectID string, result repositories.SearchResult) {
	row := map[string]interface{}{
		"query":      query,
		"project_id": projectID,
		"top_score":  result.TopScore(),
		"hits":       len(result.Chunks),
	}
	if _, _, err := r.client.From("search_logs").Insert(row, false, "", "", "").Execute(); err != nil {
		r.logger.Warn("Failed to write search log", zap.Error(err))
	}
}
