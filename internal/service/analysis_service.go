// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/contract"
	"careerforge-go/internal/model"
	"careerforge-go/pkg/llm"
	"careerforge-go/pkg/log"
)

// Retriever 按相似度检索简历分块。
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]model.Document, error)
}

// AnalysisService 定义了简历与职位匹配分析的接口。
type AnalysisService interface {
	Analyze(ctx context.Context, jobDescription string) (*model.AnalysisResult, error)
	// StreamAnalyze 将模型增量以 {"chunk":...} 写入 writer，结束后校验完整输出。
	StreamAnalyze(ctx context.Context, jobDescription string, writer llm.MessageWriter, shouldStop func() bool) (*model.AnalysisResult, error)
}

type analysisService struct {
	retriever Retriever
	llmClient llm.Client
	topK      int
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(retriever Retriever, llmClient llm.Client, topK int) AnalysisService {
	return &analysisService{retriever: retriever, llmClient: llmClient, topK: topK}
}

// prepare 检索上下文并构建消息。检索结果为空时仍然调用模型。
func (s *analysisService) prepare(ctx context.Context, jobDescription string) ([]llm.Message, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "service.Analyze", errors.New("job_description 不能为空"))
	}

	log.Infof("[AnalysisService] 步骤1: 检索简历上下文, topK: %d", s.topK)
	docs, err := s.retriever.SimilaritySearch(ctx, jobDescription, s.topK)
	if err != nil {
		log.Errorf("[AnalysisService] 检索简历上下文失败: %v", err)
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(docs) == 0 {
		log.Warnf("[AnalysisService] 未检索到相关简历内容, 使用空上下文继续分析")
	}
	resumeContext := buildResumeContext(docs)
	log.Infof("[AnalysisService] 步骤1: 检索到 %d 个分块, 上下文长度: %d", len(docs), len(resumeContext))

	return []llm.Message{{Role: "user", Content: buildAnalysisPrompt(resumeContext, jobDescription)}}, nil
}

// Analyze 检索简历上下文，调用模型并严格校验输出。
func (s *analysisService) Analyze(ctx context.Context, jobDescription string) (*model.AnalysisResult, error) {
	messages, err := s.prepare(ctx, jobDescription)
	if err != nil {
		return nil, err
	}

	log.Infof("[AnalysisService] 步骤2: 调用模型, model: %s", s.llmClient.ModelName())
	raw, err := s.llmClient.CompleteJSON(ctx, messages, nil)
	if err != nil {
		return nil, err
	}

	result, err := contract.DecodeAnalysis(raw)
	if err != nil {
		log.Errorf("[AnalysisService] 模型输出校验失败: %v", err)
		return nil, err
	}
	log.Infof("[AnalysisService] 分析完成, match_score: %d, gaps: %d", result.MatchScore, len(result.TechnicalGaps))
	return result, nil
}

func (s *analysisService) StreamAnalyze(ctx context.Context, jobDescription string, writer llm.MessageWriter, shouldStop func() bool) (*model.AnalysisResult, error) {
	messages, err := s.prepare(ctx, jobDescription)
	if err != nil {
		return nil, err
	}

	interceptor := &chunkWriter{conn: writer, shouldStop: shouldStop}
	raw, err := s.llmClient.StreamJSON(ctx, messages, nil, interceptor)
	if err != nil {
		return nil, err
	}
	return contract.DecodeAnalysis(raw)
}

// chunkWriter 把原始分块包装成 {"chunk":"..."} 再下发。
type chunkWriter struct {
	conn       llm.MessageWriter
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkWriter) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	b, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, b)
}
