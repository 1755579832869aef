package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/config"
	"careerforge-go/pkg/log"
)

// openAICompatibleClient 调用 OpenAI 兼容的 /chat/completions 接口，默认指向 Groq。
type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewOpenAICompatibleClient 创建 OpenAI 兼容的 LLM 客户端。
func NewOpenAICompatibleClient(cfg config.LLMConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *openAICompatibleClient) ModelName() string {
	return c.cfg.Model
}

func (c *openAICompatibleClient) newRequest(ctx context.Context, messages []Message, gen *GenerationParams, stream bool) (*http.Request, error) {
	params := resolveGeneration(c.cfg.Generation, gen)
	reqBody := chatRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Stream:         stream,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    params.Temperature,
		TopP:           params.TopP,
		MaxTokens:      params.MaxTokens,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

func (c *openAICompatibleClient) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[LLMClient] 调用 Chat API 失败, error: %v", err)
		return nil, apperror.New(apperror.KindUnavailable, op, fmt.Errorf("failed to call chat api: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Errorf("[LLMClient] Chat API 返回非 200 状态码: %s", resp.Status)
		return nil, apperror.Newf(apperror.KindUnavailable, op, "chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return resp, nil
}

// CompleteJSON 以 JSON 模式请求一次完整回复。
func (c *openAICompatibleClient) CompleteJSON(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	const op = "llm.CompleteJSON"
	req, err := c.newRequest(ctx, messages, gen, false)
	if err != nil {
		return "", err
	}
	log.Infof("[LLMClient] 调用 Chat API, model: %s, messages: %d", c.cfg.Model, len(messages))
	resp, err := c.do(req, op)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", apperror.New(apperror.KindUnavailable, op, fmt.Errorf("failed to decode chat response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return "", apperror.New(apperror.KindMalformedOutput, op, errors.New("chat api returned no choices"))
	}
	return chatResp.Choices[0].Message.Content, nil
}

// StreamJSON 以 SSE 流式读取回复。
func (c *openAICompatibleClient) StreamJSON(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) (string, error) {
	const op = "llm.StreamJSON"
	req, err := c.newRequest(ctx, messages, gen, true)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req, op)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", apperror.New(apperror.KindUnavailable, op, fmt.Errorf("failed to read from stream: %w", err))
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			if data == "[DONE]" {
				break
			}
			var chunk chatStreamResponse
			if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr == nil && len(chunk.Choices) > 0 {
				content := chunk.Choices[0].Delta.Content
				if content != "" {
					full.WriteString(content)
					if werr := writer.WriteMessage(websocket.TextMessage, []byte(content)); werr != nil {
						return "", fmt.Errorf("failed to write message to websocket: %w", werr)
					}
				}
			}
		}
		if err == io.EOF {
			break
		}
	}
	return full.String(), nil
}
