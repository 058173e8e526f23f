package service

import (
	"unicode/utf8"

	"github.com/newsdesk/internal/logging"
	"go.uber.org/zap"
)

const maxAILogSnippetRunes = 1024

// logAIExchange 以 debug 级别记录 AI 请求与响应片段，方便排查模型行为。
func logAIExchange(log *zap.Logger, phase, content string) {
	if log == nil {
		return
	}
	snippet := logging.Truncate(content, maxAILogSnippetRunes)
	if snippet == "" {
		snippet = "<empty>"
	}
	log.Debug("ai exchange",
		zap.String("phase", phase),
		zap.Int("runes", utf8.RuneCountInString(content)),
		zap.String("content", snippet),
	)
}
