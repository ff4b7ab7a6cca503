package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID              string         `json:"id"`
	KnowledgeBaseID int            `json:"knowledge_base_id"`
	Filename        string         `json:"filename"`
	MimeType        string         `json:"mime_type"`
	StoragePath     string         `json:"storage_path"`
	Status          DocumentStatus `json:"status"`
	ChunkCount      int            `json:"chunk_count"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
