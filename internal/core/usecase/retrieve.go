package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
)

// rrfK dampens rank contributions so tail ranks still matter.
const rrfK = 60.0

// CollectionResolver maps a knowledge base to its vector collection name.
type CollectionResolver func(knowledgeBaseID int) string

// RetrievalConfig tunes the hybrid retrieval passes.
type RetrievalConfig struct {
	TopK            int
	DenseLimit      int
	SparsePool      int
	ScrollPageLimit int
	RerankTopN      int
}

// HybridRetrieveUseCase runs dense vector search and sparse BM25 over every
// query variant, fuses both passes with reciprocal rank fusion, and hands the
// fused head to the reranker.
//
// A dense failure aborts the call: silently returning sparse-only results
// would look like a thin corpus rather than an outage. A sparse failure only
// degrades to dense-only, since the scroll pool is an enrichment pass.
type HybridRetrieveUseCase struct {
	embedder   ports.Embedder
	vectorDB   ports.VectorStore
	cache      ports.QueryEmbeddingCache
	expander   *QueryExpander
	reranker   Reranker
	collection CollectionResolver
	cfg        RetrievalConfig
	logger     *slog.Logger
}

func NewHybridRetrieveUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	cache ports.QueryEmbeddingCache,
	expander *QueryExpander,
	reranker Reranker,
	collection CollectionResolver,
	cfg RetrievalConfig,
	logger *slog.Logger,
) *HybridRetrieveUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.DenseLimit <= 0 {
		cfg.DenseLimit = 20
	}
	if cfg.ScrollPageLimit <= 0 {
		cfg.ScrollPageLimit = 128
	}
	if cfg.RerankTopN <= 0 {
		cfg.RerankTopN = cfg.TopK
	}
	if reranker == nil {
		reranker = NoopReranker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetrieveUseCase{
		embedder:   embedder,
		vectorDB:   vectorDB,
		cache:      cache,
		expander:   expander,
		reranker:   reranker,
		collection: collection,
		cfg:        cfg,
		logger:     logger,
	}
}

func (uc *HybridRetrieveUseCase) Retrieve(ctx context.Context, kbID int, query, history string, topK int) ([]domain.Candidate, error) {
	if topK <= 0 {
		topK = uc.cfg.TopK
	}
	variants := uc.expander.Expand(ctx, query, history)
	coll := uc.collection(kbID)

	baseVector, err := uc.queryVector(ctx, variants[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}
	if err := uc.vectorDB.EnsureCollection(ctx, coll, len(baseVector)); err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "ensure collection", err)
	}

	perVariant := make([][]domain.Candidate, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			ranked, err := uc.denseVariant(gctx, coll, variant)
			if err != nil {
				return err
			}
			perVariant[i] = ranked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	denseRRF := make(map[string]float64)
	denseBest := make(map[string]domain.Candidate)
	for _, ranked := range perVariant {
		for rank, candidate := range ranked {
			denseRRF[candidate.ID] += 1.0 / (rrfK + float64(rank+1))
			best, ok := denseBest[candidate.ID]
			if !ok || candidate.DenseScore > best.DenseScore {
				denseBest[candidate.ID] = candidate
			}
		}
	}

	pool, err := uc.scrollPool(ctx, coll)
	if err != nil {
		uc.logger.Warn("sparse pass degraded to dense-only",
			slog.String("collection", coll),
			slog.String("error", err.Error()),
		)
		pool = nil
	}
	sparseRRF, sparseBest := sparseRanks(variants, pool)

	merged := fuseCandidates(denseRRF, denseBest, sparseRRF, sparseBest, pool)

	preN := max(topK, uc.cfg.RerankTopN)
	if preN > len(merged) {
		preN = len(merged)
	}
	head := merged[:preN]

	reranked, err := uc.reranker.Rerank(ctx, query, head)
	if err != nil {
		uc.logger.Warn("rerank skipped, keeping fusion order", slog.String("error", err.Error()))
		reranked = head
	}

	if topK > len(reranked) {
		topK = len(reranked)
	}
	return reranked[:topK], nil
}

func (uc *HybridRetrieveUseCase) denseVariant(ctx context.Context, collection, variant string) ([]domain.Candidate, error) {
	vector, err := uc.queryVector(ctx, variant)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query variant", err)
	}
	hits, err := uc.vectorDB.Search(ctx, collection, vector, uc.cfg.DenseLimit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "dense search", err)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].DenseScore > hits[j].DenseScore
	})
	return hits, nil
}

func (uc *HybridRetrieveUseCase) queryVector(ctx context.Context, text string) ([]float32, error) {
	key := strings.TrimSpace(text)
	if uc.cache != nil {
		if vector, ok := uc.cache.Get(key); ok {
			return vector, nil
		}
	}
	vector, err := uc.embedder.EmbedQuery(ctx, key)
	if err != nil {
		return nil, err
	}
	if uc.cache != nil {
		uc.cache.Add(key, vector)
	}
	return vector, nil
}

// scrollPool reads a bounded corpus snapshot for the sparse pass.
func (uc *HybridRetrieveUseCase) scrollPool(ctx context.Context, collection string) ([]domain.Candidate, error) {
	maxPoints := uc.cfg.SparsePool
	if maxPoints <= 0 {
		return nil, nil
	}

	var gathered []domain.Candidate
	cursor := ""
	for len(gathered) < maxPoints {
		limit := uc.cfg.ScrollPageLimit
		if remaining := maxPoints - len(gathered); remaining < limit {
			limit = remaining
		}
		points, next, err := uc.vectorDB.Scroll(ctx, collection, cursor, limit)
		if err != nil {
			return nil, fmt.Errorf("scroll sparse pool: %w", err)
		}
		if len(points) == 0 {
			break
		}
		for _, point := range points {
			if strings.TrimSpace(point.Text) == "" {
				continue
			}
			gathered = append(gathered, point)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return gathered, nil
}

func sparseRanks(variants []string, pool []domain.Candidate) (map[string]float64, map[string]float64) {
	sparseRRF := make(map[string]float64)
	sparseBest := make(map[string]float64)
	if len(pool) == 0 {
		return sparseRRF, sparseBest
	}

	docs := make([]string, len(pool))
	for i, candidate := range pool {
		docs[i] = candidate.Text
	}

	type scoredID struct {
		id    string
		score float64
	}
	for _, variant := range variants {
		scores := bm25Scores(variant, docs)
		ranked := make([]scoredID, 0, len(scores))
		for i, score := range scores {
			if score <= 0 {
				continue
			}
			id := pool[i].ID
			if score > sparseBest[id] {
				sparseBest[id] = score
			}
			ranked = append(ranked, scoredID{id: id, score: score})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
		for rank, item := range ranked {
			sparseRRF[item.id] += 1.0 / (rrfK + float64(rank+1))
		}
	}
	return sparseRRF, sparseBest
}

// fuseCandidates unions the dense winners with sparse-only hits and assigns
// the additive reciprocal rank fusion score.
func fuseCandidates(
	denseRRF map[string]float64,
	denseBest map[string]domain.Candidate,
	sparseRRF map[string]float64,
	sparseBest map[string]float64,
	pool []domain.Candidate,
) []domain.Candidate {
	poolByID := make(map[string]domain.Candidate, len(pool))
	for _, candidate := range pool {
		poolByID[candidate.ID] = candidate
	}

	byID := make(map[string]domain.Candidate, len(denseBest)+len(sparseRRF))
	for id, candidate := range denseBest {
		byID[id] = candidate
	}
	for id := range sparseRRF {
		candidate, inDense := byID[id]
		if !inDense {
			poolCandidate, ok := poolByID[id]
			if !ok {
				continue
			}
			candidate = poolCandidate
		}
		if sparseBest[id] > candidate.SparseScore {
			candidate.SparseScore = sparseBest[id]
		}
		byID[id] = candidate
	}

	merged := make([]domain.Candidate, 0, len(byID))
	for id, candidate := range byID {
		candidate.FinalScore = denseRRF[id] + sparseRRF[id]
		merged = append(merged, candidate)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].FinalScore != merged[j].FinalScore {
			return merged[i].FinalScore > merged[j].FinalScore
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
