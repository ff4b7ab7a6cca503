package usecase

import "math"

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Scores ranks docs against query with BM25 over the given corpus only.
// Document frequencies come from the corpus itself, so scores are comparable
// within one call but not across calls.
func bm25Scores(query string, docs []string) []float64 {
	if len(docs) == 0 {
		return nil
	}
	queryTerms := tokenizeLower(query)
	scores := make([]float64, len(docs))
	if len(queryTerms) == 0 {
		return scores
	}

	tokenized := make([][]string, len(docs))
	totalLen := 0
	for i, doc := range docs {
		tokenized[i] = tokenizeLower(doc)
		totalLen += len(tokenized[i])
	}
	avgLen := float64(totalLen) / float64(len(docs))

	df := make(map[string]int)
	tfPerDoc := make([]map[string]int, len(docs))
	for i, tokens := range tokenized {
		tf := make(map[string]int, len(tokens))
		for _, term := range tokens {
			tf[term]++
		}
		tfPerDoc[i] = tf
		for term := range tf {
			df[term]++
		}
	}

	nDocs := float64(len(docs))
	for i, tokens := range tokenized {
		docLen := float64(len(tokens))
		if docLen < 1 {
			docLen = 1
		}
		var score float64
		for _, term := range queryTerms {
			freq, ok := tfPerDoc[i][term]
			if !ok {
				continue
			}
			termDF := float64(df[term])
			// idf variant with +1 inside the log for numerical stability.
			idf := math.Log(1 + (nDocs-termDF+0.5)/(termDF+0.5))
			denom := float64(freq) + bm25K1*(1-bm25B+bm25B*(docLen/math.Max(1e-9, avgLen)))
			score += idf * (float64(freq) * (bm25K1 + 1)) / math.Max(1e-9, denom)
		}
		scores[i] = score
	}
	return scores
}
