package model

// ChunkRecord 是一个已经完成向量化、等待写入向量存储的分块。
type ChunkRecord struct {
	ID           string
	Chunk        Chunk
	Embedding    []float32
	ModelVersion string
}
