package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/service"
)

type tagRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// ListCategories 后台分类列表，附带全部文章数。
func (a *API) ListCategories(c *gin.Context) {
	categories, err := a.categories.List()
	if err != nil {
		a.respondServiceError(c, err, "获取分类列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (a *API) GetCategory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	category, err := a.categories.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "获取分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (a *API) GetCategoryBySlug(c *gin.Context) {
	category, err := a.categories.GetBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// CreateCategory 创建分类，slug 由名称生成。
func (a *API) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := a.categories.Create(service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		a.respondServiceError(c, err, "创建分类失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory 重命名分类时同步重新生成 slug。
func (a *API) UpdateCategory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := a.categories.Update(id, service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		a.respondServiceError(c, err, "更新分类失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (a *API) DeleteCategory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.categories.Delete(id); err != nil {
		a.respondServiceError(c, err, "删除分类失败")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTags 获取标签列表
func (a *API) ListTags(c *gin.Context) {
	tags, err := a.tags.List()
	if err != nil {
		a.respondServiceError(c, err, "获取标签列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (a *API) GetTag(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tag, err := a.tags.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "获取标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

func (a *API) GetTagBySlug(c *gin.Context) {
	tag, err := a.tags.GetBySlug(c.Param("slug"))
	if err != nil {
		a.respondServiceError(c, err, "获取标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// CreateTag 创建新标签
func (a *API) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := a.tags.Create(req.Name)
	if err != nil {
		a.respondServiceError(c, err, "创建标签失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

// UpdateTag 更新标签
func (a *API) UpdateTag(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := a.tags.Update(id, req.Name)
	if err != nil {
		a.respondServiceError(c, err, "更新标签失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

// DeleteTag 删除标签，同时移除它与文章的关联。
func (a *API) DeleteTag(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.tags.Delete(id); err != nil {
		a.respondServiceError(c, err, "删除标签失败")
		return
	}
	c.Status(http.StatusNoContent)
}
