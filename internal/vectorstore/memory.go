package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"careerforge-go/internal/model"
)

// MemoryBackend 在内存中做暴力余弦检索，用于本地运行和测试。
type MemoryBackend struct {
	mu      sync.RWMutex
	records []model.ChunkRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Insert(_ context.Context, records []model.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *MemoryBackend) Replace(_ context.Context, records []model.ChunkRecord) error {
	fresh := make([]model.ChunkRecord, len(records))
	copy(fresh, records)
	m.mu.Lock()
	m.records = fresh
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]model.Document, 0)
	for _, r := range m.records {
		sim, ok := cosine(vector, r.Embedding)
		if !ok || sim < threshold {
			continue
		}
		docs = append(docs, model.Document{
			Content:    r.Chunk.Content,
			Metadata:   withModelVersion(r.Chunk.Metadata, r.ModelVersion),
			Similarity: sim,
		})
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Similarity > docs[j].Similarity })
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Len 返回当前存储的分块数量。
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
