// Package llm provides clients for interacting with Large Language Models in JSON mode.
package llm

import (
	"context"
	"fmt"

	"careerforge-go/internal/config"
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and our interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Client defines the interface for an LLM client.
// 两个方法都要求模型只输出一个 JSON 对象，返回的是未经处理的原始文本。
type Client interface {
	CompleteJSON(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// StreamJSON 将增量内容逐块写入 writer，并返回拼接后的完整文本。
	StreamJSON(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) (string, error)
	ModelName() string
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAICompatibleClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("未知的 llm provider: %q", cfg.Provider)
	}
}

// resolveGeneration 传参优先，其次使用配置中的非零值。
func resolveGeneration(cfg config.LLMGenerationConfig, gen *GenerationParams) GenerationParams {
	if gen != nil {
		return *gen
	}
	var out GenerationParams
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		out.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		out.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		out.MaxTokens = &m
	}
	return out
}
