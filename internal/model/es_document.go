package model

// EsDocument 代表存储在 Elasticsearch 中的简历分块。
type EsDocument struct {
	ChunkID      string         `json:"chunk_id"` // 唯一标识，uuid
	ChunkIndex   int            `json:"chunk_index"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	Vector       []float32      `json:"vector"`
	ModelVersion string         `json:"model_version"`
}
