package ports

import (
	"context"
	"io"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, chunkCount int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits extracted text into retrievable passages.
type Chunker interface {
	Chunk(text string, metadataBase map[string]any) []domain.Chunk
}

// VectorStore is the nearest-neighbor index holding chunk payloads.
// Scroll reads a bounded snapshot page by page; an empty next cursor ends
// the scan.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
	UpsertChunks(ctx context.Context, collection string, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, collection string, documentID string) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.Candidate, error)
	Scroll(ctx context.Context, collection string, cursor string, limit int) ([]domain.Candidate, string, error)
}

// TextGenerator is the black-box prompt -> text model call.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
	GenerateStream(ctx context.Context, prompt, system string, emit func(chunk string) error) error
}

// RerankScorer scores (query, document) pairs with a cross-encoder.
type RerankScorer interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// QueryEmbeddingCache memoizes query embeddings across requests. Bounded;
// implementations evict least-recently-used entries.
type QueryEmbeddingCache interface {
	Get(text string) ([]float32, bool)
	Add(text string, vector []float32)
}
