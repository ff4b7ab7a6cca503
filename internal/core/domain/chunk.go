package domain

// Chunk is one retrievable passage of a document. Chunks are immutable once
// produced; re-chunking a document supersedes its chunk set wholesale.
// Invariant: 0 <= StartChar <= EndChar and Text is non-empty.
type Chunk struct {
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	StartChar int            `json:"start_char"`
	EndChar   int            `json:"end_char"`
}
