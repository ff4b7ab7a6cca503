package usecase

import (
	"math"
	"regexp"
	"strings"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

// Weights for the composite grounding score. Lexical support dominates,
// citation discipline matters, source breadth is a small bonus.
const (
	supportWeight      = 0.60
	citationWeight     = 0.30
	coverageWeight     = 0.10
	supportTokenRatio  = 0.45
	minClaimChars      = 8
	fullCoverageSource = 4.0
)

var legendMarkerRe = regexp.MustCompile(`(?i)\n\s*source references\s*:\s*`)

var faithfulnessStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "was": {}, "were": {}, "with": {},
}

// FaithfulnessConfig tunes the heuristic grounding check.
type FaithfulnessConfig struct {
	Enabled   bool
	Threshold float64
}

// FaithfulnessChecker scores how well an answer's claims are covered by the
// retrieved evidence. It is a lexical heuristic, not an entailment model:
// a claim counts as supported when it appears verbatim in the evidence or
// shares enough content tokens with it.
type FaithfulnessChecker struct {
	cfg FaithfulnessConfig
}

func NewFaithfulnessChecker(cfg FaithfulnessConfig) *FaithfulnessChecker {
	if cfg.Threshold < 0 {
		cfg.Threshold = 0
	}
	if cfg.Threshold > 1 {
		cfg.Threshold = 1
	}
	return &FaithfulnessChecker{cfg: cfg}
}

func (c *FaithfulnessChecker) Signals(answer string, sources []domain.ContextSource) domain.FaithfulnessResult {
	if !c.cfg.Enabled {
		return domain.FaithfulnessResult{}
	}
	score := faithfulnessScore(answer, sources)
	return domain.FaithfulnessResult{
		Score:           &score,
		LowFaithfulness: score < c.cfg.Threshold,
	}
}

func faithfulnessScore(answer string, sources []domain.ContextSource) float64 {
	claims := splitClaims(answer)
	if len(claims) == 0 || len(sources) == 0 {
		return 0
	}

	corpus := sourceCorpus(sources)
	corpusTokens := make(map[string]struct{})
	for _, token := range tokenizeLower(corpus) {
		corpusTokens[token] = struct{}{}
	}
	if len(corpusTokens) == 0 {
		return 0
	}

	supported := 0
	withCitation := 0
	for _, claim := range claims {
		if claimIsSupported(claim, corpus, corpusTokens) {
			supported++
		}
		if citationGroupRe.MatchString(claim) {
			withCitation++
		}
	}

	total := float64(len(claims))
	supportRatio := float64(supported) / total
	citationRatio := float64(withCitation) / total
	coverage := float64(len(sources)) / fullCoverageSource
	if coverage > 1 {
		coverage = 1
	}

	score := supportWeight*supportRatio + citationWeight*citationRatio + coverageWeight*coverage
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return math.Round(score*1000) / 1000
}

// splitClaims drops the citation legend, then keeps sentence-like pieces long
// enough to carry a factual claim.
func splitClaims(answer string) []string {
	normalized := strings.TrimSpace(answer)
	if normalized == "" {
		return nil
	}
	if loc := legendMarkerRe.FindStringIndex(normalized); loc != nil {
		normalized = strings.TrimSpace(normalized[:loc[0]])
	}
	var claims []string
	for _, piece := range splitStatements(normalized) {
		if len(piece) >= minClaimChars {
			claims = append(claims, piece)
		}
	}
	return claims
}

func claimIsSupported(claim, corpus string, corpusTokens map[string]struct{}) bool {
	compact := strings.ToLower(strings.TrimSpace(citationGroupRe.ReplaceAllString(claim, "")))
	if compact == "" {
		return false
	}
	if strings.Contains(corpus, compact) {
		return true
	}

	tokens := contentTokens(compact)
	if len(tokens) == 0 {
		return false
	}
	overlap := 0
	for _, token := range tokens {
		if _, ok := corpusTokens[token]; ok {
			overlap++
		}
	}
	return float64(overlap)/float64(len(tokens)) >= supportTokenRatio
}

func contentTokens(text string) []string {
	var out []string
	for _, token := range tokenizeLower(text) {
		if len(token) <= 2 {
			continue
		}
		if _, stop := faithfulnessStopwords[token]; stop {
			continue
		}
		out = append(out, token)
	}
	return out
}

func sourceCorpus(sources []domain.ContextSource) string {
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		if snippet := strings.TrimSpace(source.Snippet); snippet != "" {
			parts = append(parts, strings.ToLower(snippet))
		}
	}
	return strings.Join(parts, "\n")
}
