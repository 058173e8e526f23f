package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/service"
	"go.uber.org/zap"
)

type publicCommentRequest struct {
	AuthorName string `json:"author_name" binding:"max=100"`
	Body       string `json:"body" binding:"required,max=5000"`
	ParentID   *uint  `json:"parent_id" binding:"omitempty,gt=0"`
}

// ListPublishedPosts 公开文章列表，只含已发布文章，按发布时间倒序。
func (a *API) ListPublishedPosts(c *gin.Context) {
	filter := postFilterFromQuery(c)
	filter.Status = db.PostStatusPublished
	filter.AuthorID = 0

	result, err := a.posts.List(filter)
	if err != nil {
		a.respondServiceError(c, err, "获取文章列表失败")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ShowPublishedPost 返回已发布文章及渲染后的正文。
func (a *API) ShowPublishedPost(c *gin.Context) {
	post, err := a.posts.GetPublishedBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return
	}

	bodyHTML, err := renderMarkdown(post.Body)
	if err != nil {
		a.respondServiceError(c, err, "渲染内容失败")
		return
	}

	views, err := a.analytics.ViewCount(post.ID)
	if err != nil {
		// 浏览数不影响正文展示
		a.log.Warn("load view count failed", zap.Uint("post_id", post.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"post":      post,
		"body_html": bodyHTML,
		"views":     views,
	})
}

// ListPublicComments 只返回已通过审核的评论树。
func (a *API) ListPublicComments(c *gin.Context) {
	post, err := a.posts.GetPublishedBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return
	}

	comments, err := a.comments.ListApproved(post.ID)
	if err != nil {
		a.respondServiceError(c, err, "获取评论失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// CreatePublicComment 提交评论，进入 pending 等待审核。登录读者自动关联账号。
func (a *API) CreatePublicComment(c *gin.Context) {
	post, err := a.posts.GetPublishedBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return
	}

	var req publicCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	input := service.CommentInput{
		UserID:     currentUserID(c),
		AuthorName: req.AuthorName,
		Body:       req.Body,
		ParentID:   req.ParentID,
	}
	if user := currentUser(c); user != nil && input.AuthorName == "" {
		input.AuthorName = user.DisplayName()
	}

	comment, err := a.comments.Create(post.ID, input)
	if err != nil {
		a.respondServiceError(c, err, "提交评论失败")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"comment": comment})
}

// RecordPublicView 追加一条浏览记录，不做去重。
func (a *API) RecordPublicView(c *gin.Context) {
	post, err := a.posts.GetPublishedBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取文章失败")
		return
	}

	if _, err := a.analytics.RecordView(post.ID, currentUserID(c), time.Now()); err != nil {
		a.respondServiceError(c, err, "记录浏览失败")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPublicCategories 分类列表，post_count 只统计已发布文章。
func (a *API) ListPublicCategories(c *gin.Context) {
	categories, err := a.categories.PublishedUsage()
	if err != nil {
		a.respondServiceError(c, err, "获取分类列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListPublicTags 标签列表，post_count 只统计已发布文章。
func (a *API) ListPublicTags(c *gin.Context) {
	tags, err := a.tags.PublishedUsage()
	if err != nil {
		a.respondServiceError(c, err, "获取标签列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CategoryPosts 分类下的已发布文章。
func (a *API) CategoryPosts(c *gin.Context) {
	category, err := a.categories.GetBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取分类失败")
		return
	}

	filter := postFilterFromQuery(c)
	filter.Status = db.PostStatusPublished
	filter.AuthorID = 0
	filter.TagSlug = ""
	filter.CategorySlug = category.Slug
	a.respondPublishedList(c, gin.H{"category": category}, filter)
}

// TagPosts 标签下的已发布文章。
func (a *API) TagPosts(c *gin.Context) {
	tag, err := a.tags.GetBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取标签失败")
		return
	}

	filter := postFilterFromQuery(c)
	filter.Status = db.PostStatusPublished
	filter.AuthorID = 0
	filter.CategorySlug = ""
	filter.TagSlug = tag.Slug
	a.respondPublishedList(c, gin.H{"tag": tag}, filter)
}

func (a *API) respondPublishedList(c *gin.Context, payload gin.H, filter service.PostFilter) {
	result, err := a.posts.List(filter)
	if err != nil {
		a.respondServiceError(c, err, "获取文章列表失败")
		return
	}
	payload["data"] = result.Posts
	payload["total"] = result.Total
	payload["total_pages"] = result.TotalPages
	payload["page"] = result.Page
	payload["per_page"] = result.PerPage
	c.JSON(http.StatusOK, payload)
}

// BreakingNewsHeadlines 返回缓存的快讯列表。
func (a *API) BreakingNewsHeadlines(c *gin.Context) {
	headlines, err := a.breaking.Headlines(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "获取快讯失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"headlines": headlines})
}
