package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/config"
	"careerforge-go/pkg/log"
)

type geminiClient struct {
	cfg    config.EmbeddingConfig
	client *genai.Client
}

// NewGeminiClient 使用 Gemini API 的 EmbedContent 生成向量。
func NewGeminiClient(ctx context.Context, cfg config.EmbeddingConfig) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini embedding 客户端失败: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client}, nil
}

func (c *geminiClient) ModelName() string {
	return c.cfg.Model
}

func (c *geminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	const op = "embedding.Gemini"
	var embedCfg *genai.EmbedContentConfig
	if c.cfg.Dimensions > 0 {
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(c.cfg.Dimensions))}
	}
	resp, err := c.client.Models.EmbedContent(ctx, c.cfg.Model, genai.Text(text), embedCfg)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Gemini EmbedContent 失败, error: %v", err)
		return nil, apperror.New(apperror.KindUnavailable, op, err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, apperror.New(apperror.KindUnavailable, op, errors.New("received empty embedding from gemini"))
	}
	return resp.Embeddings[0].Values, nil
}
