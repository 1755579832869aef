package service

import (
	"context"
	"errors"
	"strings"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/contract"
	"careerforge-go/internal/model"
	"careerforge-go/pkg/llm"
	"careerforge-go/pkg/log"
)

// RoadmapService 根据项目想法和技术差距生成三阶段路线图。
type RoadmapService interface {
	GenerateRoadmap(ctx context.Context, projectIdea string, technicalGaps []string) (*model.Roadmap, error)
}

type roadmapService struct {
	llmClient llm.Client
}

// NewRoadmapService 创建一个新的 RoadmapService 实例。
func NewRoadmapService(llmClient llm.Client) RoadmapService {
	return &roadmapService{llmClient: llmClient}
}

// GenerateRoadmap 不依赖向量存储，只对调用方给出的输入做一次结构化生成。
func (s *roadmapService) GenerateRoadmap(ctx context.Context, projectIdea string, technicalGaps []string) (*model.Roadmap, error) {
	if strings.TrimSpace(projectIdea) == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "service.GenerateRoadmap", errors.New("project_idea 不能为空"))
	}

	log.Infof("[RoadmapService] 生成路线图, gaps: %v", technicalGaps)
	messages := []llm.Message{{Role: "user", Content: buildRoadmapPrompt(projectIdea, technicalGaps)}}
	raw, err := s.llmClient.CompleteJSON(ctx, messages, nil)
	if err != nil {
		return nil, err
	}

	roadmap, err := contract.DecodeRoadmap(raw)
	if err != nil {
		log.Errorf("[RoadmapService] 模型输出校验失败: %v", err)
		return nil, err
	}
	return roadmap, nil
}
