package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/service"
)

type mediaItemRequest struct {
	Type    string `json:"type" binding:"required,oneof=image video"`
	Subtype string `json:"subtype" binding:"omitempty,oneof=featured secondary gallery"`
	URL     string `json:"url" binding:"required,max=1024"`
	AltText string `json:"alt_text" binding:"max=255"`
	Order   int    `json:"order" binding:"min=0"`
}

type createMediaRequest struct {
	Items []mediaItemRequest `json:"items" binding:"required,min=1,dive"`
}

type mediaOrderRequest struct {
	Items []struct {
		ID    uint `json:"id" binding:"required"`
		Order int  `json:"order" binding:"min=0"`
	} `json:"items" binding:"required,min=1,dive"`
}

type updateMediaRequest struct {
	Subtype *string `json:"subtype" binding:"omitempty,oneof=featured secondary gallery"`
	URL     *string `json:"url" binding:"omitempty,max=1024"`
	AltText *string `json:"alt_text" binding:"omitempty,max=255"`
	Order   *int    `json:"order" binding:"omitempty,min=0"`
}

// ListPostMedia 按 order、id 升序返回文章媒体。
func (a *API) ListPostMedia(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	media, err := a.media.ListByPost(postID)
	if err != nil {
		a.respondServiceError(c, err, "获取媒体失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}

// CreatePostMedia 在一个事务内批量添加媒体。
func (a *API) CreatePostMedia(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}
	if !a.canEditPost(c, postID) {
		return
	}

	var req createMediaRequest
	if !bindJSON(c, &req) {
		return
	}

	items := make([]service.MediaInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.MediaInput{
			Type:    item.Type,
			Subtype: item.Subtype,
			URL:     item.URL,
			AltText: item.AltText,
			Order:   item.Order,
		})
	}

	media, err := a.media.CreateMultiple(postID, items)
	if err != nil {
		a.respondServiceError(c, err, "添加媒体失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"media": media})
}

// ReorderMedia 批量更新顺序，任一 id 不存在时整体失败。
func (a *API) ReorderMedia(c *gin.Context) {
	var req mediaOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	orders := make([]service.MediaOrder, 0, len(req.Items))
	ids := make([]uint, 0, len(req.Items))
	for _, item := range req.Items {
		orders = append(orders, service.MediaOrder{ID: item.ID, Order: item.Order})
		ids = append(ids, item.ID)
	}
	if !a.canEditMedia(c, ids...) {
		return
	}
	if err := a.media.UpdateOrder(orders); err != nil {
		a.respondServiceError(c, err, "调整媒体顺序失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "媒体顺序已更新"})
}

// UpdateMedia 更新单条媒体。
func (a *API) UpdateMedia(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if !a.canEditMedia(c, id) {
		return
	}

	var req updateMediaRequest
	if !bindJSON(c, &req) {
		return
	}

	media, err := a.media.Update(id, service.MediaUpdate{
		Subtype: req.Subtype,
		URL:     req.URL,
		AltText: req.AltText,
		Order:   req.Order,
	})
	if err != nil {
		a.respondServiceError(c, err, "更新媒体失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}

// DeleteMedia 删除媒体记录，不删除存储中的对象。
func (a *API) DeleteMedia(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if !a.canEditMedia(c, id) {
		return
	}

	if err := a.media.Delete(id); err != nil {
		a.respondServiceError(c, err, "删除媒体失败")
		return
	}
	c.Status(http.StatusNoContent)
}

// canEditMedia 媒体跟随所属文章的编辑权限。失败时已写出响应。
func (a *API) canEditMedia(c *gin.Context, ids ...uint) bool {
	if currentUser(c).HasRole(db.RoleEditor, db.RoleAdmin) {
		return true
	}

	postIDs, err := a.media.PostIDs(ids)
	if err != nil {
		a.respondServiceError(c, err, "获取媒体失败")
		return false
	}
	for _, postID := range postIDs {
		if !a.canEditPost(c, postID) {
			return false
		}
	}
	return true
}

// UploadMedia 上传文件到对象存储并返回公开 URL。
func (a *API) UploadMedia(c *gin.Context) {
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

	url, err := a.media.Upload(c.Request.Context(), file.Filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		a.respondServiceError(c, err, "上传失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// DeleteMediaObject 按公开 URL 删除存储对象。
func (a *API) DeleteMediaObject(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		respondFields(c, map[string]string{"url": "is required"})
		return
	}

	if err := a.media.DeleteByURL(c.Request.Context(), rawURL); err != nil {
		a.respondServiceError(c, err, "删除存储对象失败")
		return
	}
	c.Status(http.StatusNoContent)
}
