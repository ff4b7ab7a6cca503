package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkEmptyInput(t *testing.T) {
	c := New(Options{})
	if got := c.Chunk("", nil); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
	if got := c.Chunk("   \n\n  ", nil); len(got) != 0 {
		t.Fatalf("expected no chunks for blank input, got %d", len(got))
	}
}

func TestChunkPacksSmallParagraphs(t *testing.T) {
	c := New(Options{MaxChunkChars: 200, OverlapChars: 0, OverlapSentences: 0, MinChunkChars: 40})

	text := strings.Repeat("a", 90) + "\n\n" + strings.Repeat("b", 40)
	chunks := c.Chunk(text, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected one packed chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "\n\n") {
		t.Fatalf("expected paragraphs joined by blank line, got %q", chunks[0].Text)
	}
	if got := chunks[0].Metadata["paragraph_count"]; got != 2 {
		t.Fatalf("expected paragraph_count 2, got %v", got)
	}
}

func TestChunkBoundedLength(t *testing.T) {
	c := New(Options{MaxChunkChars: 120, OverlapChars: 20, OverlapSentences: 1, MinChunkChars: 40})

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("The first sentence states a fact. The second one adds detail here. ")
	}
	chunks := c.Chunk(sb.String(), nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		// Overlap seeding can push a chunk slightly past the limit, but
		// never more than one overlap plus the paragraph joiner.
		if len(chunk.Text) > 120+20+2 {
			t.Fatalf("chunk %d too long: %d chars", i, len(chunk.Text))
		}
	}
}

func TestChunkHeadingMetadata(t *testing.T) {
	c := New(Options{MaxChunkChars: 600, MinChunkChars: 10})

	text := "# Handbook\n\nIntro paragraph about the handbook contents.\n\n## Exceptions\n\nExceptions require director approval before the deadline.\n"
	chunks := c.Chunk(text, map[string]any{"source": "handbook.md"})
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}

	last := chunks[len(chunks)-1]
	if got := last.Metadata["section_path"]; got != "Handbook > Exceptions" {
		t.Fatalf("expected section_path %q, got %v", "Handbook > Exceptions", got)
	}
	if got := last.Metadata["section_title"]; got != "Exceptions" {
		t.Fatalf("expected section_title Exceptions, got %v", got)
	}
	if got := last.Metadata["source"]; got != "handbook.md" {
		t.Fatalf("expected base metadata carried through, got %v", got)
	}
	if strings.Contains(last.Text, "# Handbook") || strings.Contains(last.Text, "## Exceptions") {
		t.Fatalf("heading lines must not appear in chunk body: %q", last.Text)
	}
}

func TestChunkNumberedHeadings(t *testing.T) {
	c := New(Options{MaxChunkChars: 600, MinChunkChars: 10})

	text := "1. Policy\n\nGeneral policy text paragraph.\n\n1.2 Refunds\n\nRefunds are issued within thirty days of purchase.\n"
	chunks := c.Chunk(text, nil)
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	last := chunks[len(chunks)-1]
	if got := last.Metadata["section_path"]; got != "Policy > Refunds" {
		t.Fatalf("expected section_path %q, got %v", "Policy > Refunds", got)
	}
}

func TestChunkIndicesAreGapless(t *testing.T) {
	c := New(Options{MaxChunkChars: 100, OverlapChars: 0, MinChunkChars: 30})

	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("Paragraph number content that fills a reasonable amount of space.\n\n")
	}
	// Identical paragraphs pack into identical chunks; add variety.
	sb.WriteString("A distinct closing paragraph to keep texts unique.\n")
	chunks := c.Chunk(sb.String(), nil)
	for i, chunk := range chunks {
		if got := chunk.Metadata["chunk_index"]; got != i {
			t.Fatalf("chunk %d has chunk_index %v", i, got)
		}
		if got := chunk.Metadata["chunk_count"]; got != len(chunks) {
			t.Fatalf("chunk %d has chunk_count %v, want %d", i, got, len(chunks))
		}
	}
}

func TestChunkDeduplicatesNormalizedText(t *testing.T) {
	c := New(Options{MaxChunkChars: 100, OverlapChars: 0, MinChunkChars: 10})

	para := "Standard disclaimer text repeated verbatim across sections here okay."
	text := para + "\n\n\n\n" + para + "\n"
	chunks := c.Chunk(text, nil)

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		normalized := strings.ToLower(strings.Join(strings.Fields(chunk.Text), " "))
		if seen[normalized] {
			t.Fatalf("duplicate chunk text survived dedupe: %q", chunk.Text)
		}
		seen[normalized] = true
	}
}

func TestChunkOffsetsSliceSource(t *testing.T) {
	c := New(Options{MaxChunkChars: 600, MinChunkChars: 10})

	text := "First paragraph body text.\n\nSecond paragraph body text follows here.\n"
	chunks := c.Chunk(text, nil)
	for i, chunk := range chunks {
		if chunk.StartChar < 0 || chunk.EndChar > len(text) || chunk.StartChar >= chunk.EndChar {
			t.Fatalf("chunk %d has invalid offsets [%d,%d)", i, chunk.StartChar, chunk.EndChar)
		}
	}
	if chunks[0].StartChar != 0 {
		t.Fatalf("expected first chunk at offset 0, got %d", chunks[0].StartChar)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One fact. Another fact! A question? Trailing text")
	want := []string{"One fact.", "Another fact!", "A question?", "Trailing text"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitSentencesKeepsDecimalsIntact(t *testing.T) {
	got := SplitSentences("Version 1.2 is stable. It shipped.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %v", got)
	}
	if got[0] != "Version 1.2 is stable." {
		t.Fatalf("decimal point split incorrectly: %q", got[0])
	}
}

func TestTailOverlapCharsKeepsRuneBoundaries(t *testing.T) {
	// 21 does not land on a two-byte rune boundary when counted in bytes.
	tail := tailOverlapChars("prefix "+strings.Repeat("é", 30), 21)
	if !utf8.ValidString(tail) {
		t.Fatalf("overlap tail split a rune: %q", tail)
	}
	if tail != strings.Repeat("é", 21) {
		t.Fatalf("expected the last 21 characters, got %q", tail)
	}
}
