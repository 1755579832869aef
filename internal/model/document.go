package model

// 分块元数据的常用键。
const (
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaStart      = "start"
	MetaEnd        = "end"
)

// Chunk 是写入向量存储的最小文本单元，写入后不可修改。
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Document 是一次相似度检索的结果。向量本身不会返回给调用方。
type Document struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}
