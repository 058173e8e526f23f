package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListRevisions 返回文章的修订历史，最新在前。
func (a *API) ListRevisions(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	revisions, err := a.revisions.ListByPost(postID)
	if err != nil {
		a.respondServiceError(c, err, "获取修订历史失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revisions})
}

// CreateRevision 手动为文章当前内容生成快照。
func (a *API) CreateRevision(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if !a.canEditPost(c, postID) {
		return
	}

	revision, err := a.revisions.Create(postID, currentUser(c).ID)
	if err != nil {
		a.respondServiceError(c, err, "创建修订失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"revision": revision})
}

func (a *API) GetRevision(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	revision, err := a.revisions.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "获取修订失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": revision})
}
