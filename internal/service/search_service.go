package service

import (
	"context"

	"careerforge-go/internal/model"
	"careerforge-go/pkg/log"
)

// SearchService 接口定义了搜索操作。
type SearchService interface {
	Search(ctx context.Context, query string, topK int) ([]model.Document, error)
}

type searchService struct {
	retriever Retriever
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(retriever Retriever) SearchService {
	return &searchService{retriever: retriever}
}

// Search 返回带相似度的简历分块，用于调试检索效果。
func (s *searchService) Search(ctx context.Context, query string, topK int) ([]model.Document, error) {
	log.Infof("[SearchService] 开始检索, query: '%s', topK: %d", query, topK)
	docs, err := s.retriever.SimilaritySearch(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 检索完成, 命中 %d 条", len(docs))
	return docs, nil
}
