// Package embedding provides clients for interacting with embedding models.
package embedding

import (
	"context"
	"fmt"

	"careerforge-go/internal/config"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// ModelName 写入每个分块的 model_version。
	ModelName() string
}

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(ctx context.Context, cfg config.EmbeddingConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAICompatibleClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("未知的 embedding provider: %q", cfg.Provider)
	}
}
