// Package extractor routes documents to a format-specific text extractor.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/extractor/pdf"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/extractor/plaintext"
	"github.com/aniketgiri96/Ragnetic/internal/infrastructure/extractor/spreadsheet"
)

// Registry maps file extensions to extractors. Extensions are stored
// lowercase with the leading dot.
type Registry struct {
	byExtension map[string]ports.TextExtractor
	fallback    ports.TextExtractor
}

// NewRegistry wires the supported formats. Unknown extensions fall back to
// plain text, which rejects non-UTF-8 payloads.
func NewRegistry(storage ports.ObjectStorage) *Registry {
	text := plaintext.NewExtractor(storage)
	return &Registry{
		byExtension: map[string]ports.TextExtractor{
			".txt":  text,
			".md":   text,
			".csv":  text,
			".pdf":  pdf.NewExtractor(storage),
			".xlsx": spreadsheet.NewExtractor(storage),
			".xlsm": spreadsheet.NewExtractor(storage),
		},
		fallback: text,
	}
}

func (r *Registry) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	impl, ok := r.byExtension[ext]
	if !ok {
		impl = r.fallback
	}
	text, err := impl.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Filename, err)
	}
	return text, nil
}
