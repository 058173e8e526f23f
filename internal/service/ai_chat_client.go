package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newsdesk/internal/config"
)

// 支持的 AI 平台
const (
	AIProviderOpenAI   = "openai"
	AIProviderDeepSeek = "deepseek"
)

// ErrAIAPIKeyMissing 表示未配置 AI 平台 API Key。
var ErrAIAPIKeyMissing = errors.New("ai api key is not configured")

// ErrAIUpstream 包装上游文本生成接口的失败，handler 映射为 502。
var ErrAIUpstream = errors.New("text generation upstream failed")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// aiChatClient 调用 OpenAI 兼容的 /chat/completions 接口，平台与密钥来自配置。
type aiChatClient struct {
	http     httpDoer
	provider string
	apiKey   string
	baseURL  string
	model    string
}

func newAIChatClient(cfg config.AIConfig) *aiChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	provider := normalizeAIProvider(cfg.Provider)
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	model := strings.TrimSpace(cfg.Model)
	switch provider {
	case AIProviderDeepSeek:
		if base == "" {
			base = "https://api.deepseek.com/v1"
		}
		if model == "" {
			model = "deepseek-chat"
		}
	default:
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
	}

	return &aiChatClient{
		http:     &http.Client{Timeout: timeout},
		provider: provider,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  base,
		model:    model,
	}
}

func normalizeAIProvider(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case AIProviderDeepSeek:
		return AIProviderDeepSeek
	default:
		return AIProviderOpenAI
	}
}

func (c *aiChatClient) label() string {
	if c.provider == AIProviderDeepSeek {
		return "DeepSeek"
	}
	return "OpenAI"
}

func (c *aiChatClient) call(ctx context.Context, req aiChatRequest) (aiChatResponse, error) {
	if c.apiKey == "" {
		return aiChatResponse{}, ErrAIAPIKeyMissing
	}

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	maxTokens := req.MaxTokens
	if maxTokens < 0 {
		maxTokens = 0
	}

	messages := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("构造请求失败: %w", err)
	}

	label := c.label()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("创建 %s 请求失败: %w", label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "newsdesk-ai/1.0")

	resp, err := client.Do(httpReq)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("%w: 请求 %s 接口失败: %v", ErrAIUpstream, label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("%w: 读取 %s 响应失败: %v", ErrAIUpstream, label, err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return aiChatResponse{}, fmt.Errorf("%w: %s 接口返回 %s", ErrAIUpstream, label, resp.Status)
		}
		return aiChatResponse{}, fmt.Errorf("%w: 解析 %s 响应失败: %v", ErrAIUpstream, label, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = resp.Status
		}
		return aiChatResponse{}, fmt.Errorf("%w: %s 接口返回错误：%s", ErrAIUpstream, label, errMsg)
	}

	if len(completion.Choices) == 0 {
		return aiChatResponse{}, fmt.Errorf("%w: %s 接口未返回结果", ErrAIUpstream, label)
	}

	return aiChatResponse{
		Content:          strings.TrimSpace(completion.Choices[0].Message.Content),
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}
