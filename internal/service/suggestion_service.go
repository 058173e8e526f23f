package service

import (
	"context"
	"errors"
	"strings"

	"github.com/newsdesk/internal/config"
	"go.uber.org/zap"
)

const (
	defaultSuggestionMaxTokens   = 600
	defaultSuggestionTemperature = 0.7
	maxSuggestionContextRunes    = 4000
	maxSuggestionPromptRunes     = 2000
)

const defaultSuggestionSystemPrompt = "你是新闻编辑部的写作助手。请根据编辑的要求给出简洁、可直接使用的文字建议，保持 Markdown 格式，不要添加额外解释。"

// ErrSuggestionEmpty 表示模型返回了空内容。
var ErrSuggestionEmpty = errors.New("text generation returned empty content")

// SuggestionInput 是编辑请求的写作建议。Context 可以是当前文章正文。
type SuggestionInput struct {
	Prompt  string
	Context string
}

// Suggestion 是生成结果。
type Suggestion struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// SuggestionService 调用文本生成接口为编辑提供写作建议。
type SuggestionService struct {
	client *aiChatClient
	log    *zap.Logger
}

// NewSuggestionService creates a SuggestionService from the ai config block.
func NewSuggestionService(cfg config.AIConfig) *SuggestionService {
	return &SuggestionService{client: newAIChatClient(cfg), log: zap.NewNop()}
}

func (s *SuggestionService) WithLogger(log *zap.Logger) *SuggestionService {
	if log != nil {
		s.log = log.Named("suggestions")
	}
	return s
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *SuggestionService) SetHTTPClient(client httpDoer) {
	s.client.http = client
}

// Suggest 返回模型生成的建议文本。未配置密钥时返回 ErrAIAPIKeyMissing。
func (s *SuggestionService) Suggest(ctx context.Context, input SuggestionInput) (*Suggestion, error) {
	v := &ValidationError{}
	prompt := validateRequired(v, "prompt", input.Prompt, maxSuggestionPromptRunes)
	if err := v.Err(); err != nil {
		return nil, err
	}

	compressed, links := shortenMediaLinks(strings.TrimSpace(input.Context))
	userPrompt := buildSuggestionPrompt(prompt, truncateRunes(compressed, maxSuggestionContextRunes), links.Count() > 0)
	logAIExchange(s.log, "prompt", userPrompt)

	result, err := s.client.call(ctx, aiChatRequest{
		SystemPrompt: defaultSuggestionSystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultSuggestionMaxTokens,
		Temperature:  defaultSuggestionTemperature,
	})
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(links.Restore(result.Content))
	logAIExchange(s.log, "response", text)
	if text == "" {
		return nil, ErrSuggestionEmpty
	}

	return &Suggestion{
		Text:             text,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

func buildSuggestionPrompt(prompt, reference string, hasMediaLinks bool) string {
	var builder strings.Builder
	builder.WriteString("要求：")
	builder.WriteString(prompt)
	if reference != "" {
		builder.WriteString("\n\n")
		if hasMediaLinks {
			builder.WriteString("注意：正文中的 media://N 链接代表原始图片或视频，引用时请保持这些占位符不变。\n\n")
		}
		builder.WriteString("参考正文：\n")
		builder.WriteString(reference)
	}
	return builder.String()
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit])
}
