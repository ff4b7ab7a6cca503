package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
)

// Reranker reorders the fused candidate head before final truncation.
// Implementations must not mutate the input slice's backing array beyond
// the returned candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error)
}

// NoopReranker keeps the fusion order. Used when no cross-encoder endpoint
// is configured.
type NoopReranker struct{}

func (NoopReranker) Rerank(_ context.Context, _ string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	return candidates, nil
}

// CrossEncoderReranker rescores candidates with a cross-encoder service. The
// encoder score dominates the combined score; fusion score stays in as the
// tie-breaker.
type CrossEncoderReranker struct {
	scorer ports.RerankScorer
}

func NewCrossEncoderReranker(scorer ports.RerankScorer) *CrossEncoderReranker {
	return &CrossEncoderReranker{scorer: scorer}
}

func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	scores, err := r.scorer.Score(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder score: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("cross-encoder score: %d scores for %d candidates", len(scores), len(candidates))
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].FinalScore = 2.0*scores[i] + out[i].FinalScore
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out, nil
}
