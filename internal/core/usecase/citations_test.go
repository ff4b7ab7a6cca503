package usecase

import (
	"strings"
	"testing"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

func namedSources(names ...string) []domain.ContextSource {
	out := make([]domain.ContextSource, len(names))
	for i, name := range names {
		out[i] = domain.ContextSource{
			ID:       name,
			Snippet:  "snippet " + name,
			Metadata: map[string]any{"source": name},
		}
	}
	return out
}

func TestEnforceCitationFormatAppendsWhenMissing(t *testing.T) {
	sources := namedSources("a.md", "b.md", "c.md", "d.md")
	got := enforceCitationFormat("Refunds take thirty days.", sources, true)
	if !strings.HasSuffix(got, "Citations: [Source 1], [Source 2], [Source 3]") {
		t.Fatalf("expected capped citation line, got %q", got)
	}
}

func TestEnforceCitationFormatNoopWhenPresent(t *testing.T) {
	answer := "Refunds take thirty days [Source 2]."
	got := enforceCitationFormat(answer, namedSources("a.md"), true)
	if got != answer {
		t.Fatalf("existing citations must be left alone, got %q", got)
	}
}

func TestEnforceCitationFormatDisabled(t *testing.T) {
	answer := "Refunds take thirty days."
	if got := enforceCitationFormat(answer, namedSources("a.md"), false); got != answer {
		t.Fatalf("disabled enforcement must be a no-op, got %q", got)
	}
}

func TestCitationIndicesIgnoresOutOfRange(t *testing.T) {
	got := citationIndices("See [Source 1] and [Source 9] and [source 2].", 2)
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected in-range indices [0 1], got %v", got)
	}
}

func TestAppendCitationLegendGroupsByName(t *testing.T) {
	sources := namedSources("handbook.md", "policy.md", "handbook.md")
	answer := "Refunds [Source 1]. Exceptions [Source 3]. Approvals [Source 2]."
	got := appendCitationLegend(answer, sources, 8)

	if !strings.Contains(got, "Source references:") {
		t.Fatalf("missing legend header:\n%s", got)
	}
	if !strings.Contains(got, "[Source 1, 3] handbook.md") {
		t.Fatalf("expected grouped handbook line:\n%s", got)
	}
	if !strings.Contains(got, "[Source 2] policy.md") {
		t.Fatalf("expected policy line:\n%s", got)
	}
}

func TestAppendCitationLegendNoopWithoutMarkers(t *testing.T) {
	answer := "No citations here."
	if got := appendCitationLegend(answer, namedSources("a.md"), 8); got != answer {
		t.Fatalf("expected no legend without markers, got %q", got)
	}
}

func TestAppendCitationLegendNoopWhenPresent(t *testing.T) {
	answer := "Claim [Source 1].\n\nSource references:\n[Source 1] a.md"
	if got := appendCitationLegend(answer, namedSources("a.md"), 8); got != answer {
		t.Fatalf("legend must not be duplicated, got %q", got)
	}
}

func TestSourceNameFallsBackToIndex(t *testing.T) {
	source := domain.ContextSource{Metadata: map[string]any{}}
	if got := sourceName(source, 4); got != "Source 5" {
		t.Fatalf("expected positional name, got %q", got)
	}
	source.Metadata["filename"] = "  runbook.pdf "
	if got := sourceName(source, 4); got != "runbook.pdf" {
		t.Fatalf("expected trimmed filename, got %q", got)
	}
}
