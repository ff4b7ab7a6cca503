package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

func TestNoopRerankerKeepsOrder(t *testing.T) {
	in := []domain.Candidate{
		{ID: "a", FinalScore: 0.3},
		{ID: "b", FinalScore: 0.2},
	}
	out, err := (NoopReranker{}).Rerank(context.Background(), "q", in)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("noop must keep order, got %v", out)
	}
}

func TestCrossEncoderRerankerReorders(t *testing.T) {
	in := []domain.Candidate{
		{ID: "a", Text: "first", FinalScore: 0.030},
		{ID: "b", Text: "second", FinalScore: 0.020},
	}
	r := NewCrossEncoderReranker(&scorerFake{scores: []float64{0.1, 0.9}})

	out, err := r.Rerank(context.Background(), "q", in)
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if out[0].ID != "b" {
		t.Fatalf("expected cross-encoder winner first, got %v", out)
	}
	// Combined score: encoder dominates, fusion stays as tie-breaker.
	if want := 2.0*0.9 + 0.020; out[0].FinalScore != want {
		t.Fatalf("expected combined score %f, got %f", want, out[0].FinalScore)
	}
	if in[0].FinalScore != 0.030 {
		t.Fatalf("input slice must not be mutated, got %f", in[0].FinalScore)
	}
}

func TestCrossEncoderRerankerScorerError(t *testing.T) {
	r := NewCrossEncoderReranker(&scorerFake{err: errors.New("encoder down")})
	_, err := r.Rerank(context.Background(), "q", []domain.Candidate{{ID: "a", Text: "x"}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCrossEncoderRerankerLengthMismatch(t *testing.T) {
	r := NewCrossEncoderReranker(&scorerFake{scores: []float64{0.5}})
	_, err := r.Rerank(context.Background(), "q", []domain.Candidate{
		{ID: "a", Text: "x"},
		{ID: "b", Text: "y"},
	})
	if err == nil {
		t.Fatalf("expected error on score/candidate mismatch")
	}
}
