package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/service"
)

type relationRequest struct {
	IDs []uint `json:"ids" binding:"required,dive,gt=0"`
}

// ListRelation 返回文章的分类或标签，按名称排序。
func (a *API) ListRelation(rel service.Relation) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := idParam(c, "id")
		if !ok {
			return
		}

		var (
			items interface{}
			err   error
		)
		if rel == service.RelationTags {
			items, err = a.relations.ListTags(postID)
		} else {
			items, err = a.relations.ListCategories(postID)
		}
		if err != nil {
			a.respondServiceError(c, err, "获取关联失败")
			return
		}
		c.JSON(http.StatusOK, gin.H{string(rel): items})
	}
}

// AttachRelation 追加关联，已存在的关联被忽略。
func (a *API) AttachRelation(rel service.Relation) gin.HandlerFunc {
	return a.writeRelation(rel, a.relations.Attach)
}

// DetachRelation 只移除请求中列出的关联。
func (a *API) DetachRelation(rel service.Relation) gin.HandlerFunc {
	return a.writeRelation(rel, a.relations.Detach)
}

// SyncRelation 把关联集合替换为请求中的 ids，空数组表示清空。
func (a *API) SyncRelation(rel service.Relation) gin.HandlerFunc {
	return a.writeRelation(rel, a.relations.Sync)
}

func (a *API) writeRelation(rel service.Relation, apply func(service.Relation, uint, []uint) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := idParam(c, "id")
		if !ok {
			return
		}
		if !a.canEditPost(c, postID) {
			return
		}

		var req relationRequest
		if !bindJSON(c, &req) {
			return
		}

		if err := apply(rel, postID, req.IDs); err != nil {
			a.respondServiceError(c, err, "更新关联失败")
			return
		}
		a.ListRelation(rel)(c)
	}
}
