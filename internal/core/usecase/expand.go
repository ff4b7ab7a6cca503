package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aniketgiri96/Ragnetic/internal/core/ports"
)

var expansionStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "how": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "to": {}, "we": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "with": {},
}

const maxKeywordTerms = 12

// ExpansionConfig tunes query variant generation.
type ExpansionConfig struct {
	Enabled      bool
	MaxVariants  int
	EnableHyde   bool
	HydeMaxChars int
	HydeTimeout  time.Duration
}

// QueryExpander turns one user question into several retrieval queries: the
// original, a keyword form, a semantic paraphrase template, and optionally a
// model-written hypothetical answer passage (HyDE).
type QueryExpander struct {
	generator ports.TextGenerator
	cfg       ExpansionConfig
	logger    *slog.Logger
}

func NewQueryExpander(generator ports.TextGenerator, cfg ExpansionConfig, logger *slog.Logger) *QueryExpander {
	if cfg.MaxVariants < 1 {
		cfg.MaxVariants = 1
	}
	if cfg.HydeMaxChars < 120 {
		cfg.HydeMaxChars = 120
	}
	if cfg.HydeTimeout <= 0 {
		cfg.HydeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExpander{generator: generator, cfg: cfg, logger: logger}
}

// Expand returns de-duplicated query variants with the original query first.
// The HyDE variant is best effort: a generation failure is logged and the
// variant is omitted, never propagated to the caller.
func (e *QueryExpander) Expand(ctx context.Context, query, history string) []string {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return []string{""}
	}
	if !e.cfg.Enabled {
		return []string{normalized}
	}

	candidates := e.lexicalCandidates(normalized)
	if e.cfg.EnableHyde && e.generator != nil {
		hyde, err := e.hydeVariant(ctx, normalized, history)
		switch {
		case err != nil:
			e.logger.Warn("hyde expansion skipped", slog.String("error", err.Error()))
		case hyde != "":
			candidates = append(candidates, hyde)
		}
	}

	return dedupeVariants(candidates, e.cfg.MaxVariants)
}

// ExpandLexical returns the original, keyword, and semantic variants only.
// It never calls the generation model, so callers that cannot block on
// network I/O can use it regardless of the HyDE configuration.
func (e *QueryExpander) ExpandLexical(query string) []string {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return []string{""}
	}
	if !e.cfg.Enabled {
		return []string{normalized}
	}
	return dedupeVariants(e.lexicalCandidates(normalized), e.cfg.MaxVariants)
}

func (e *QueryExpander) lexicalCandidates(normalized string) []string {
	candidates := []string{normalized}
	if keyword := keywordVariant(normalized); keyword != "" {
		candidates = append(candidates, keyword)
	}
	return append(candidates, semanticVariant(normalized))
}

func keywordVariant(query string) string {
	tokens := tokenizeLower(query)
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) <= 2 {
			continue
		}
		if _, stop := expansionStopwords[token]; stop {
			continue
		}
		filtered = append(filtered, token)
	}
	if len(filtered) == 0 {
		filtered = tokens
	}
	if len(filtered) > maxKeywordTerms {
		filtered = filtered[:maxKeywordTerms]
	}
	return strings.TrimSpace(strings.Join(filtered, " "))
}

func semanticVariant(query string) string {
	return fmt.Sprintf(
		"Relevant documentation details for: %s. Include policy rules, exceptions, procedures, and required approvals.",
		query,
	)
}

func (e *QueryExpander) hydeVariant(ctx context.Context, query, history string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.HydeTimeout)
	defer cancel()

	historyBlock := ""
	if compact := compactWhitespace(history); compact != "" {
		compact = truncateChars(compact, 320)
		historyBlock = fmt.Sprintf("Conversation context: %s\n", compact)
	}

	system := "Write a concise hypothetical answer passage for retrieval expansion. " +
		"Do not mention that it is hypothetical. Avoid lists. Keep it factual in tone."
	prompt := fmt.Sprintf(
		"%sQuestion: %s\nProduce one short paragraph (4-6 sentences) that likely contains terms and concepts from relevant documents.",
		historyBlock, query,
	)

	synthetic, err := e.generator.Generate(ctx, prompt, system)
	if err != nil {
		return "", fmt.Errorf("generate hypothetical passage: %w", err)
	}
	cleaned := compactWhitespace(synthetic)
	if cleaned == "" {
		return "", errors.New("empty hypothetical passage")
	}
	return truncateChars(cleaned, e.cfg.HydeMaxChars), nil
}

func dedupeVariants(values []string, maxItems int) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
		if len(out) >= maxItems {
			break
		}
	}
	return out
}
