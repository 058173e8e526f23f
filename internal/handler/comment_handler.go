package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/service"
)

type commentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved spam"`
}

// ListComments 后台评论审核列表，可按 status 与 post_id 过滤。
func (a *API) ListComments(c *gin.Context) {
	result, err := a.comments.List(service.CommentFilter{
		Status:  c.Query("status"),
		PostID:  parseUintQuery(c.Query("post_id")),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("per_page"), 0),
	})
	if err != nil {
		a.respondServiceError(c, err, "获取评论列表失败")
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetCommentStatus 审核评论：pending 只能流向 approved 或 spam。
func (a *API) SetCommentStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req commentStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := a.comments.SetStatus(id, req.Status)
	if err != nil {
		a.respondServiceError(c, err, "更新评论状态失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment 删除评论及其回复。
func (a *API) DeleteComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := a.comments.Delete(id); err != nil {
		a.respondServiceError(c, err, "删除评论失败")
		return
	}
	c.Status(http.StatusNoContent)
}
