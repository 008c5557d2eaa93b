package repositories

import "context"

// Retriever abstracts the knowledge-base similarity search
type Retriever interface {
	// Search embeds the query and returns the closest chunks, best first.
	Search(ctx context.Context, query string, topK int, minSimilarity float64, projectID string) (SearchResult, error)
}

// SearchResult holds ranked evidence for a query
type SearchResult struct {
	Sources []Source `json:"sources"`
	Chunks  []Chunk  `json:"chunks"`
}

// Source identifies where a chunk came from
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	SourceID   string  `json:"source_id"`
	Score      float64 `json:"score"`
}

// Chunk is a retrieved passage of knowledge-base text
type Chunk struct {
	Content    string  `json:"content"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// TopScore returns the best similarity score, or 0 when nothing matched.
func (r SearchResult) TopScore() float64 {
	if len(r.Sources) == 0 {
		return 0
	}
	best := r.Sources[0].Score
	for _, s := range r.Sources[1:] {
		if s.Score > best {
			best = s.Score
		}
	}
	return best
}
