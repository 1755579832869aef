package vectorstore

import (
	"context"

	"careerforge-go/internal/model"
	"careerforge-go/pkg/es"
)

// ElasticsearchBackend 把分块存入 dense_vector 索引，整体替换通过别名切换完成。
type ElasticsearchBackend struct {
	index *es.VectorIndex
}

func NewElasticsearchBackend(index *es.VectorIndex) *ElasticsearchBackend {
	return &ElasticsearchBackend{index: index}
}

func toEsDocuments(records []model.ChunkRecord) []model.EsDocument {
	docs := make([]model.EsDocument, 0, len(records))
	for _, r := range records {
		idx, _ := r.Chunk.Metadata[model.MetaChunkIndex].(int)
		docs = append(docs, model.EsDocument{
			ChunkID:      r.ID,
			ChunkIndex:   idx,
			Content:      r.Chunk.Content,
			Metadata:     r.Chunk.Metadata,
			Vector:       r.Embedding,
			ModelVersion: r.ModelVersion,
		})
	}
	return docs
}

func (e *ElasticsearchBackend) Insert(ctx context.Context, records []model.ChunkRecord) error {
	return e.index.AppendDocuments(ctx, toEsDocuments(records))
}

func (e *ElasticsearchBackend) Replace(ctx context.Context, records []model.ChunkRecord) error {
	return e.index.ReplaceDocuments(ctx, toEsDocuments(records))
}

func (e *ElasticsearchBackend) Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.Document, error) {
	hits, err := e.index.Search(ctx, vector, threshold, limit)
	if err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, model.Document{
			Content:    h.Document.Content,
			Metadata:   withModelVersion(h.Document.Metadata, h.Document.ModelVersion),
			Similarity: h.Similarity,
		})
	}
	return docs, nil
}

func (e *ElasticsearchBackend) Ping(ctx context.Context) error {
	return e.index.Ping(ctx)
}
