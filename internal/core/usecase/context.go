package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

// ContextConfig tunes the adaptive token budget and snippet compression.
type ContextConfig struct {
	ModelContextTokens int
	BudgetRatio        float64
	ReservedTokens     int
	MinTokensPerSource int
	MaxTokensPerSource int
	MaxSources         int
	PerSourceCharLimit int
	CompressionEnabled bool
	CompressionRatio   float64
}

// ContextAssembler selects, compresses, and orders retrieved sources under a
// dynamic token budget derived from the model context window and the prompt
// size. Ordering interleaves by score so the strongest sources sit at the
// edges of the context rather than its middle.
type ContextAssembler struct {
	cfg ContextConfig
}

func NewContextAssembler(cfg ContextConfig) *ContextAssembler {
	if cfg.ModelContextTokens < 1024 {
		cfg.ModelContextTokens = 1024
	}
	if cfg.BudgetRatio < 0.25 {
		cfg.BudgetRatio = 0.25
	}
	if cfg.BudgetRatio > 0.95 {
		cfg.BudgetRatio = 0.95
	}
	if cfg.ReservedTokens < 0 {
		cfg.ReservedTokens = 0
	}
	if cfg.MinTokensPerSource < 24 {
		cfg.MinTokensPerSource = 24
	}
	if cfg.MaxTokensPerSource < cfg.MinTokensPerSource {
		cfg.MaxTokensPerSource = cfg.MinTokensPerSource
	}
	if cfg.MaxSources < 1 {
		cfg.MaxSources = 1
	}
	if cfg.PerSourceCharLimit < 120 {
		cfg.PerSourceCharLimit = 120
	}
	if cfg.CompressionRatio < 0.25 {
		cfg.CompressionRatio = 0.25
	}
	if cfg.CompressionRatio > 1.0 {
		cfg.CompressionRatio = 1.0
	}
	return &ContextAssembler{cfg: cfg}
}

func (a *ContextAssembler) Assemble(query, history string, candidates []domain.Candidate) domain.ContextAssembly {
	filtered := make([]domain.ContextSource, 0, len(candidates))
	for _, candidate := range candidates {
		snippet := strings.TrimSpace(candidate.Text)
		if snippet == "" {
			continue
		}
		snippet = strings.TrimSpace(truncateChars(snippet, a.cfg.PerSourceCharLimit))
		filtered = append(filtered, domain.ContextSource{
			ID:         candidate.ID,
			Snippet:    snippet,
			Score:      candidate.FinalScore,
			Metadata:   candidate.Metadata,
			DocumentID: candidate.DocumentID,
		})
	}

	ranked := make([]domain.ContextSource, len(filtered))
	copy(ranked, filtered)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	arranged := lostMiddleOrder(ranked)

	tokenBudget := int(float64(a.cfg.ModelContextTokens)*a.cfg.BudgetRatio) -
		a.cfg.ReservedTokens - approxTokens(query) - approxTokens(history)
	if tokenBudget < a.cfg.MinTokensPerSource {
		tokenBudget = a.cfg.MinTokensPerSource
	}

	var (
		chosen            []domain.ContextSource
		usedTokens        int
		compressedSources int
	)

	for _, source := range arranged {
		if len(chosen) >= a.cfg.MaxSources {
			break
		}
		remaining := tokenBudget - usedTokens
		if remaining < a.cfg.MinTokensPerSource && len(chosen) > 0 {
			break
		}

		sourceBudget := remaining
		if sourceBudget < a.cfg.MinTokensPerSource {
			sourceBudget = a.cfg.MinTokensPerSource
		}
		if sourceBudget > a.cfg.MaxTokensPerSource {
			sourceBudget = a.cfg.MaxTokensPerSource
		}

		snippet, compressed := a.compressSnippet(source.Snippet, query, sourceBudget)
		snippet = strings.TrimSpace(snippet)
		if snippet == "" {
			continue
		}

		snippetTokens := approxTokens(snippet)
		if snippetTokens > remaining {
			if len(chosen) > 0 {
				continue
			}
			snippet = truncateToTokens(snippet, remaining)
			snippetTokens = approxTokens(snippet)
			if snippetTokens == 0 {
				continue
			}
		}

		source.Snippet = snippet
		source.ContextTokens = snippetTokens
		chosen = append(chosen, source)
		usedTokens += snippetTokens
		if compressed {
			compressedSources++
		}
	}

	fallback := false
	if len(chosen) == 0 && len(ranked) > 0 {
		fallback = true
		source, truncated := a.fallbackSource(ranked[0], tokenBudget)
		compressedSources = 0
		if truncated {
			compressedSources = 1
		}
		chosen = []domain.ContextSource{source}
		usedTokens = source.ContextTokens
	}

	return domain.ContextAssembly{
		Sources:           chosen,
		ContextBlocks:     renderContextBlocks(chosen),
		TokenBudget:       tokenBudget,
		TokenUsed:         usedTokens,
		CompressedSources: compressedSources,
		Fallback:          fallback,
	}
}

// fallbackSource hard-truncates the best-ranked snippet so a non-empty
// candidate list never yields an empty context. The bool reports whether the
// snippet was cut.
func (a *ContextAssembler) fallbackSource(best domain.ContextSource, tokenBudget int) (domain.ContextSource, bool) {
	budget := tokenBudget
	if budget > a.cfg.MaxTokensPerSource {
		budget = a.cfg.MaxTokensPerSource
	}
	snippet := truncateToTokens(best.Snippet, budget)
	truncated := snippet != best.Snippet
	best.Snippet = snippet
	best.ContextTokens = approxTokens(snippet)
	return best, truncated
}

// compressSnippet keeps the query-relevant sentences of an oversized snippet.
// The bool reports whether the output differs from the input.
func (a *ContextAssembler) compressSnippet(snippet, query string, maxTokens int) (string, bool) {
	normalized := strings.TrimSpace(snippet)
	if normalized == "" {
		return "", false
	}

	baseline := truncateToTokens(normalized, maxTokens)
	if !a.cfg.CompressionEnabled {
		return baseline, baseline != normalized
	}

	originalTokens := approxTokens(normalized)
	if originalTokens <= maxTokens {
		return normalized, false
	}

	sentences := splitStatements(normalized)
	if len(sentences) <= 1 {
		return baseline, baseline != normalized
	}

	terms := queryTerms(query)
	type rankedSentence struct {
		score float64
		idx   int
	}
	rankedList := make([]rankedSentence, len(sentences))
	for idx, sentence := range sentences {
		rankedList[idx] = rankedSentence{score: relevanceScore(sentence, terms), idx: idx}
	}
	sort.SliceStable(rankedList, func(i, j int) bool {
		if rankedList[i].score != rankedList[j].score {
			return rankedList[i].score > rankedList[j].score
		}
		return rankedList[i].idx < rankedList[j].idx
	})

	targetTokens := int(float64(originalTokens) * a.cfg.CompressionRatio)
	if targetTokens > maxTokens {
		targetTokens = maxTokens
	}
	if targetTokens < a.cfg.MinTokensPerSource {
		targetTokens = a.cfg.MinTokensPerSource
	}

	var selected []int
	selectedTokens := 0
	for _, item := range rankedList {
		sentenceTokens := approxTokens(sentences[item.idx])
		if sentenceTokens <= 0 {
			continue
		}
		if item.score <= 0 && selectedTokens >= a.cfg.MinTokensPerSource {
			continue
		}
		if selectedTokens+sentenceTokens > maxTokens && selectedTokens >= a.cfg.MinTokensPerSource {
			continue
		}
		selected = append(selected, item.idx)
		selectedTokens += sentenceTokens
		if selectedTokens >= targetTokens {
			break
		}
	}
	if len(selected) == 0 {
		return baseline, baseline != normalized
	}

	sort.Ints(selected)
	parts := make([]string, len(selected))
	for i, idx := range selected {
		parts[i] = sentences[idx]
	}
	compressed := truncateToTokens(strings.TrimSpace(strings.Join(parts, " ")), maxTokens)
	return compressed, compressed != normalized
}

func queryTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, token := range tokenizeLower(query) {
		if len(token) > 2 {
			terms[token] = struct{}{}
		}
	}
	return terms
}

func relevanceScore(sentence string, terms map[string]struct{}) float64 {
	tokens := tokenizeLower(sentence)
	if len(tokens) == 0 {
		return 0
	}
	overlap := 0
	for _, token := range tokens {
		if _, ok := terms[token]; ok {
			overlap++
		}
	}
	density := float64(overlap) / float64(len(tokens))
	lengthBonus := float64(len(tokens)) / 24.0
	if lengthBonus > 1 {
		lengthBonus = 1
	}
	return 2.0*float64(overlap) + 2.5*density + lengthBonus
}

// lostMiddleOrder places even-ranked sources first and odd-ranked sources in
// reverse at the end, keeping the strongest evidence away from the middle of
// the prompt.
func lostMiddleOrder(ranked []domain.ContextSource) []domain.ContextSource {
	out := make([]domain.ContextSource, 0, len(ranked))
	var tail []domain.ContextSource
	for idx, source := range ranked {
		if idx%2 == 0 {
			out = append(out, source)
		} else {
			tail = append(tail, source)
		}
	}
	for i := len(tail) - 1; i >= 0; i-- {
		out = append(out, tail[i])
	}
	return out
}

func renderContextBlocks(sources []domain.ContextSource) string {
	blocks := make([]string, 0, len(sources))
	for i, source := range sources {
		snippet := strings.TrimSpace(source.Snippet)
		if snippet == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Source %d]\n%s", i+1, snippet))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
