package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/config"
	"careerforge-go/pkg/log"
)

type geminiClient struct {
	cfg    config.LLMConfig
	client *genai.Client
}

// NewGeminiClient 创建基于 Gemini API 的客户端，使用 application/json 输出模式。
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
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
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client}, nil
}

func (c *geminiClient) ModelName() string {
	return c.cfg.Model
}

// buildRequest 把 system 消息合并为 SystemInstruction，其余消息按角色转换。
func (c *geminiClient) buildRequest(messages []Message, gen *GenerationParams) ([]*genai.Content, *genai.GenerateContentConfig) {
	params := resolveGeneration(c.cfg.Generation, gen)
	genCfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if params.Temperature != nil {
		genCfg.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.TopP != nil {
		genCfg.TopP = genai.Ptr(float32(*params.TopP))
	}
	if params.MaxTokens != nil {
		genCfg.MaxOutputTokens = int32(*params.MaxTokens)
	}

	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, genCfg
}

func (c *geminiClient) CompleteJSON(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	const op = "llm.Gemini.CompleteJSON"
	contents, genCfg := c.buildRequest(messages, gen)
	log.Infof("[LLMClient] 调用 Gemini GenerateContent, model: %s", c.cfg.Model)
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
	if err != nil {
		log.Errorf("[LLMClient] 调用 Gemini 失败, error: %v", err)
		return "", apperror.New(apperror.KindUnavailable, op, err)
	}
	return resp.Text(), nil
}

func (c *geminiClient) StreamJSON(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) (string, error) {
	const op = "llm.Gemini.StreamJSON"
	contents, genCfg := c.buildRequest(messages, gen)
	var full strings.Builder
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.cfg.Model, contents, genCfg) {
		if err != nil {
			return "", apperror.New(apperror.KindUnavailable, op, err)
		}
		delta := resp.Text()
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if werr := writer.WriteMessage(websocket.TextMessage, []byte(delta)); werr != nil {
			return "", fmt.Errorf("failed to write message to websocket: %w", werr)
		}
	}
	return full.String(), nil
}
