package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

func testChunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{Text: text, Metadata: map[string]any{}}
	}
	return out
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{ID: "doc-1", KnowledgeBaseID: 7, Filename: "handbook.md"}}
	chunker := &chunkerFake{chunks: testChunks("first chunk", "second chunk")}
	vector := &vectorStoreFake{}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: "document text"},
		chunker,
		&embedderFake{vectors: [][]float32{{1}, {2}}},
		vector,
		testCollection,
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusIndexed {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.chunkCounts["doc-1"] != 2 {
		t.Fatalf("expected chunk count 2, got %d", repo.chunkCounts["doc-1"])
	}
	if _, ok := vector.ensured["testkb_7"]; !ok {
		t.Fatalf("expected collection ensured, got %v", vector.ensured)
	}
	if len(vector.deleted) != 1 || vector.deleted[0] != "doc-1" {
		t.Fatalf("expected stale chunks deleted before upsert, got %v", vector.deleted)
	}
	if vector.upserted != 2 || vector.upsertedDoc != "doc-1" {
		t.Fatalf("expected 2 chunks upserted for doc-1, got %d for %q", vector.upserted, vector.upsertedDoc)
	}
	if len(chunker.bases) != 1 {
		t.Fatalf("expected one chunk call, got %d", len(chunker.bases))
	}
	base := chunker.bases[0]
	if base["source"] != "handbook.md" || base["doc_id"] != "doc-1" {
		t.Fatalf("unexpected metadata base: %v", base)
	}
}

func TestProcessByIDEmptyDocumentIndexesWithZeroChunks(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{ID: "doc-1", KnowledgeBaseID: 1}}
	vector := &vectorStoreFake{}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: ""},
		&chunkerFake{},
		&embedderFake{},
		vector,
		testCollection,
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.statusCalls[len(repo.statusCalls)-1].status != domain.StatusIndexed {
		t.Fatalf("expected indexed status, got %+v", repo.statusCalls)
	}
	if repo.chunkCounts["doc-1"] != 0 {
		t.Fatalf("expected zero chunk count, got %d", repo.chunkCounts["doc-1"])
	}
	if vector.upserted != 0 || len(vector.deleted) != 0 {
		t.Fatalf("expected no vector calls for empty document")
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{ID: "doc-1", KnowledgeBaseID: 1}}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{err: errors.New("extract fail")},
		&chunkerFake{chunks: testChunks("a")},
		&embedderFake{vectors: [][]float32{{1}}},
		&vectorStoreFake{},
		testCollection,
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected processing + failed status updates, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %+v", repo.statusCalls[1])
	}
}

func TestProcessByIDMarksFailedOnVectorMismatch(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{ID: "doc-1", KnowledgeBaseID: 1}}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: testChunks("a", "b")},
		&embedderFake{vectors: [][]float32{{1}}},
		&vectorStoreFake{},
		testCollection,
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDMarksFailedOnDeleteStaleError(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{ID: "doc-1", KnowledgeBaseID: 1}}
	vector := &vectorStoreFake{deleteErr: errors.New("delete down")}
	uc := NewProcessDocumentUseCase(
		repo,
		&extractorFake{text: "text"},
		&chunkerFake{chunks: testChunks("a")},
		&embedderFake{vectors: [][]float32{{1}}},
		vector,
		testCollection,
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected error")
	}
	if vector.upserted != 0 {
		t.Fatalf("upsert must not run when stale delete fails")
	}
}
