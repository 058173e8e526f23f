package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/service"
)

type createPostRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Body        string `json:"body"`
	Excerpt     string `json:"excerpt" binding:"max=500"`
	Status      string `json:"status" binding:"omitempty,oneof=draft published archived"`
	CategoryIDs []uint `json:"category_ids" binding:"omitempty,dive,gt=0"`
	TagIDs      []uint `json:"tag_ids" binding:"omitempty,dive,gt=0"`
}

// updatePostRequest 中缺省的字段保持不变；category_ids 为 [] 表示清空。
type updatePostRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Body        *string `json:"body"`
	Excerpt     *string `json:"excerpt" binding:"omitempty,max=500"`
	Status      *string `json:"status" binding:"omitempty,oneof=draft published archived"`
	CategoryIDs *[]uint `json:"category_ids"`
	TagIDs      *[]uint `json:"tag_ids"`
}

func postFilterFromQuery(c *gin.Context) service.PostFilter {
	return service.PostFilter{
		Search:       c.Query("search"),
		Status:       c.Query("status"),
		CategorySlug: c.Query("category"),
		TagSlug:      c.Query("tag"),
		AuthorID:     parseUintQuery(c.Query("author_id")),
		Page:         parsePositiveInt(c.Query("page"), 1),
		PerPage:      parsePositiveInt(c.Query("per_page"), 0),
	}
}

// ListPosts 后台文章列表，支持状态、分类、标签、作者与关键字过滤。
func (a *API) ListPosts(c *gin.Context) {
	result, err := a.posts.List(postFilterFromQuery(c))
	if err != nil {
		a.respondServiceError(c, err, "获取文章列表失败")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPost 按 id 获取文章。
func (a *API) GetPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	post, err := a.posts.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// GetPostBySlug 按 slug 获取文章，包括未发布的。
func (a *API) GetPostBySlug(c *gin.Context) {
	post, err := a.posts.GetBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// CreatePost 创建文章，作者为当前用户。
func (a *API) CreatePost(c *gin.Context) {
	var req createPostRequest
	if !bindJSON(c, &req) {
		return
	}

	user := currentUser(c)
	post, err := a.posts.Create(c.Request.Context(), service.PostInput{
		Title:       req.Title,
		Body:        req.Body,
		Excerpt:     req.Excerpt,
		Status:      req.Status,
		UserID:      user.ID,
		CategoryIDs: req.CategoryIDs,
		TagIDs:      req.TagIDs,
	})
	if err != nil {
		a.respondServiceError(c, err, "创建文章失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// UpdatePost 更新文章，修改前的版本会以当前用户为编辑者写入修订历史。
func (a *API) UpdatePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if !a.canEditPost(c, id) {
		return
	}

	var req updatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	post, err := a.posts.Update(c.Request.Context(), id, service.PostUpdate{
		Title:       req.Title,
		Body:        req.Body,
		Excerpt:     req.Excerpt,
		Status:      req.Status,
		CategoryIDs: req.CategoryIDs,
		TagIDs:      req.TagIDs,
	}, currentUser(c).ID)
	if err != nil {
		a.respondServiceError(c, err, "更新文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost 删除文章及其关联数据。
func (a *API) DeletePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if !a.canEditPost(c, id) {
		return
	}

	if err := a.posts.Delete(c.Request.Context(), id); err != nil {
		a.respondServiceError(c, err, "删除文章失败")
		return
	}
	c.Status(http.StatusNoContent)
}

// canEditPost 作者只能修改自己的文章，编辑与管理员不受限。失败时已写出响应。
func (a *API) canEditPost(c *gin.Context, postID uint) bool {
	user := currentUser(c)
	if user.HasRole(db.RoleEditor, db.RoleAdmin) {
		return true
	}

	post, err := a.posts.Get(postID)
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return false
	}
	if post.UserID != user.ID {
		respondError(c, http.StatusForbidden, "authors may only modify their own posts")
		return false
	}
	return true
}
