package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultAnalyticsWindow = 7 * 24 * time.Hour

// parseTimeQuery 接受 RFC3339 或 YYYY-MM-DD；为空时返回 fallback。
func parseTimeQuery(value string, fallback time.Time) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// PostViews 返回单篇文章的累计浏览数。
func (a *API) PostViews(c *gin.Context) {
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	views, err := a.analytics.ViewCount(postID)
	if err != nil {
		a.respondServiceError(c, err, "获取浏览数失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post_id": postID, "views": views})
}

// TopPosts 按浏览数降序返回热门文章，since 可限定统计起点。
func (a *API) TopPosts(c *gin.Context) {
	limit := parsePositiveInt(c.Query("limit"), 10)

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, ok := parseTimeQuery(raw, time.Time{})
		if !ok {
			respondFields(c, map[string]string{"since": "must be RFC3339 or YYYY-MM-DD"})
			return
		}
		since = &t
	}

	top, err := a.analytics.TopPosts(limit, since)
	if err != nil {
		a.respondServiceError(c, err, "获取热门文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": top})
}

// ViewsByBucket 按小时或天聚合浏览数，默认最近 7 天按天。
func (a *API) ViewsByBucket(c *gin.Context) {
	now := time.Now().UTC()
	to, ok := parseTimeQuery(c.Query("to"), now)
	if !ok {
		respondFields(c, map[string]string{"to": "must be RFC3339 or YYYY-MM-DD"})
		return
	}
	from, ok := parseTimeQuery(c.Query("from"), to.Add(-defaultAnalyticsWindow))
	if !ok {
		respondFields(c, map[string]string{"from": "must be RFC3339 or YYYY-MM-DD"})
		return
	}

	buckets, err := a.analytics.ViewsByBucket(from, to, c.Query("bucket"))
	if err != nil {
		a.respondServiceError(c, err, "获取浏览统计失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "buckets": buckets})
}

// AnalyticsOverview 汇总全站浏览数据。
func (a *API) AnalyticsOverview(c *gin.Context) {
	overview, err := a.analytics.Overview(parsePositiveInt(c.Query("limit"), 5), time.Now())
	if err != nil {
		a.respondServiceError(c, err, "获取统计概览失败")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Dashboard 返回后台首页的缓存摘要。
func (a *API) Dashboard(c *gin.Context) {
	summary, err := a.dashboard.Summary(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "获取仪表盘失败")
		return
	}
	c.JSON(http.StatusOK, summary)
}
