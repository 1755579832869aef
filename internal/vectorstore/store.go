// Package vectorstore 管理简历分块的向量化存储与相似度检索。
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/model"
	"careerforge-go/pkg/embedding"
	"careerforge-go/pkg/log"
)

// NoThreshold 表示不做相似度过滤。
var NoThreshold = math.Inf(-1)

// DefaultTopK 是 k < 1 时使用的返回条数。
const DefaultTopK = 6

// Backend 是具体的向量存储实现。
type Backend interface {
	Insert(ctx context.Context, records []model.ChunkRecord) error
	// Replace 原子地用 records 替换全部内容。
	Replace(ctx context.Context, records []model.ChunkRecord) error
	// Search 返回相似度 >= threshold 的结果，按相似度降序，最多 limit 条。
	Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.Document, error)
}

// Pinger 由可以做健康检查的后端实现。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options 控制检索行为。
type Options struct {
	TopK           int
	MatchThreshold float64
	FallbackTopK   bool
}

// Store 负责向量化并委托给后端存取。写操作串行执行。
type Store struct {
	embedder embedding.Client
	backend  Backend
	opts     Options
	writeMu  sync.Mutex
}

// New 创建 Store。
func New(embedder embedding.Client, backend Backend, opts Options) *Store {
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	return &Store{embedder: embedder, backend: backend, opts: opts}
}

func (s *Store) embedAll(ctx context.Context, chunks []model.Chunk) ([]model.ChunkRecord, error) {
	records := make([]model.ChunkRecord, 0, len(chunks))
	modelName := s.embedder.ModelName()
	for i, c := range chunks {
		vec, err := s.embedder.CreateEmbedding(ctx, c.Content)
		if err != nil {
			log.Errorf("[VectorStore] 分块 %d 向量化失败, Error: %v", i, err)
			return nil, fmt.Errorf("块 %d 向量化失败: %w", i, err)
		}
		records = append(records, model.ChunkRecord{
			ID:           uuid.NewString(),
			Chunk:        c,
			Embedding:    vec,
			ModelVersion: modelName,
		})
	}
	return records, nil
}

// Upsert 向量化并追加分块，不做去重。
func (s *Store) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records, err := s.embedAll(ctx, chunks)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Insert(ctx, records); err != nil {
		return apperror.New(apperror.KindUnavailable, "vectorstore.Upsert", err)
	}
	log.Infof("[VectorStore] 追加 %d 个分块", len(records))
	return nil
}

// ReplaceAll 先向量化全部分块，再原子替换。向量化失败时旧数据保持不变。
func (s *Store) ReplaceAll(ctx context.Context, chunks []model.Chunk) error {
	records, err := s.embedAll(ctx, chunks)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.backend.Replace(ctx, records); err != nil {
		log.Errorf("[VectorStore] 替换分块失败: %v", err)
		return apperror.New(apperror.KindUnavailable, "vectorstore.ReplaceAll", err)
	}
	log.Infof("[VectorStore] 已替换为 %d 个分块", len(records))
	return nil
}

// SimilaritySearch 使用配置的阈值检索，k < 1 时使用配置的 top_k。
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Document, error) {
	return s.Query(ctx, query, k, s.opts.MatchThreshold)
}

// Query 使用显式阈值检索。结果为空不是错误。
func (s *Store) Query(ctx context.Context, query string, k int, threshold float64) ([]model.Document, error) {
	const op = "vectorstore.Query"
	if strings.TrimSpace(query) == "" {
		return nil, apperror.New(apperror.KindInvalidInput, op, errors.New("查询内容不能为空"))
	}
	if k < 1 {
		k = s.opts.TopK
	}

	vec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	docs, err := s.backend.Search(ctx, vec, threshold, k)
	if err != nil {
		return nil, apperror.New(apperror.KindUnavailable, op, err)
	}
	if len(docs) == 0 && s.opts.FallbackTopK && !math.IsInf(threshold, -1) {
		log.Infof("[VectorStore] 阈值 %.2f 下无结果, 退化为 top-%d 检索", threshold, k)
		docs, err = s.backend.Search(ctx, vec, NoThreshold, k)
		if err != nil {
			return nil, apperror.New(apperror.KindUnavailable, op, err)
		}
	}
	log.Infof("[VectorStore] 检索完成, threshold: %.2f, k: %d, 命中: %d", threshold, k, len(docs))
	return docs, nil
}

// Ping 在后端支持时检查其可用性。
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// withModelVersion 返回带 model_version 的元数据副本。
func withModelVersion(meta map[string]any, version string) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if version != "" {
		out["model_version"] = version
	}
	return out
}
