package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/db"
)

// attachmentScope 编辑与管理员可见全部附件，作者只看自己上传的。
func attachmentScope(c *gin.Context) *uint {
	user := currentUser(c)
	if user.HasRole(db.RoleEditor, db.RoleAdmin) {
		return nil
	}
	return currentUserID(c)
}

// ListAttachments 列出附件，可按 type 过滤。
func (a *API) ListAttachments(c *gin.Context) {
	attachments, err := a.attachments.List(attachmentScope(c), c.Query("type"))
	if err != nil {
		a.respondServiceError(c, err, "获取附件列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": attachments})
}

// UploadAttachment 处理 multipart 上传，字段名为 file。
func (a *API) UploadAttachment(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondFields(c, map[string]string{"file": "is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "无法读取上传的文件")
		return
	}
	defer src.Close()

	attachment, err := a.attachments.Upload(c.Request.Context(), currentUserID(c), file.Filename, src, file.Header.Get("Content-Type"))
	if err != nil {
		a.respondServiceError(c, err, "上传附件失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
}

func (a *API) GetAttachment(c *gin.Context) {
	attachment, ok := a.ownedAttachment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachment": attachment})
}

// DeleteAttachment 删除附件记录与存储对象。
func (a *API) DeleteAttachment(c *gin.Context) {
	attachment, ok := a.ownedAttachment(c)
	if !ok {
		return
	}

	if err := a.attachments.Delete(c.Request.Context(), attachment.ID); err != nil {
		a.respondServiceError(c, err, "删除附件失败")
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) ownedAttachment(c *gin.Context) (*db.Attachment, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}

	attachment, err := a.attachments.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "获取附件失败")
		return nil, false
	}
	if scope := attachmentScope(c); scope != nil && (attachment.UserID == nil || *attachment.UserID != *scope) {
		respondError(c, http.StatusForbidden, "attachment belongs to another user")
		return nil, false
	}
	return attachment, true
}
