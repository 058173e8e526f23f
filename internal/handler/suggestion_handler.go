package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/service"
)

type suggestionRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	Context string `json:"context"`
}

// Suggest 调用文本生成服务返回写作建议。上游失败返回 502，未配置密钥返回 503。
func (a *API) Suggest(c *gin.Context) {
	var req suggestionRequest
	if !bindJSON(c, &req) {
		return
	}

	suggestion, err := a.suggestions.Suggest(c.Request.Context(), service.SuggestionInput{
		Prompt:  req.Prompt,
		Context: req.Context,
	})
	if err != nil {
		a.respondServiceError(c, err, "生成建议失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}
