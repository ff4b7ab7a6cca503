package domain

// Candidate is a transient retrieval result. It lives only for the duration
// of one retrieve call and is never persisted.
type Candidate struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DocumentID  string         `json:"document_id,omitempty"`
	DenseScore  float64        `json:"dense_score"`
	SparseScore float64        `json:"sparse_score"`
	FinalScore  float64        `json:"final_score"`
}

// ContextSource is a candidate chosen for the prompt context, with its
// snippet possibly compressed or truncated to fit the token budget.
type ContextSource struct {
	ID            string         `json:"id"`
	Snippet       string         `json:"snippet"`
	Score         float64        `json:"score"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	DocumentID    string         `json:"document_id,omitempty"`
	ContextTokens int            `json:"context_tokens"`
}

// ContextAssembly is the token-bounded evidence block handed to the
// generation prompt. TokenUsed <= TokenBudget holds whenever Fallback is
// false; the fallback path hard-truncates a single best source instead of
// returning an empty context.
type ContextAssembly struct {
	Sources           []ContextSource `json:"sources"`
	ContextBlocks     string          `json:"context_blocks"`
	TokenBudget       int             `json:"token_budget"`
	TokenUsed         int             `json:"token_used"`
	CompressedSources int             `json:"compressed_sources"`
	Fallback          bool            `json:"fallback,omitempty"`
}

// FaithfulnessResult carries the lexical grounding signals for an answer.
// Score is nil when the checker is disabled.
type FaithfulnessResult struct {
	Score           *float64 `json:"faithfulness_score"`
	LowFaithfulness bool     `json:"low_faithfulness"`
}

// AnswerRequest is the inbound shape for a grounded question.
type AnswerRequest struct {
	KnowledgeBaseID int    `json:"knowledge_base_id"`
	Question        string `json:"question"`
	History         string `json:"history,omitempty"`
	TopK            int    `json:"top_k,omitempty"`
}

// Answer is the final grounded response with its evidence and signals.
type Answer struct {
	Text         string             `json:"text"`
	Sources      []ContextSource    `json:"sources"`
	Faithfulness FaithfulnessResult `json:"faithfulness"`
	TokenBudget  int                `json:"token_budget"`
	TokenUsed    int                `json:"token_used"`
}
