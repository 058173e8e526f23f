package service

import (
	"sort"
	"strings"
	"time"

	"github.com/newsdesk/internal/db"
	"gorm.io/gorm"
)

// 浏览统计的时间粒度
const (
	BucketHour = "hour"
	BucketDay  = "day"
)

// ViewObserver 在每次记录浏览后被调用，例如 prometheus 计数器。
type ViewObserver interface {
	ObserveView()
}

// AnalyticsService 负责处理文章浏览相关的统计逻辑。浏览记录只追加，不去重。
type AnalyticsService struct {
	db       *gorm.DB
	observer ViewObserver
}

// NewAnalyticsService 创建 AnalyticsService。
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb}
}

// WithObserver 设置浏览计数钩子。
func (s *AnalyticsService) WithObserver(observer ViewObserver) *AnalyticsService {
	s.observer = observer
	return s
}

// RecordView 追加一条浏览记录。同一用户的重复浏览都会计数。
func (s *AnalyticsService) RecordView(postID uint, userID *uint, at time.Time) (*db.PostView, error) {
	if at.IsZero() {
		at = time.Now()
	}
	if err := ensurePostExists(s.db, postID); err != nil {
		return nil, err
	}

	view := db.PostView{PostID: postID, UserID: userID, ViewedAt: at.UTC()}
	if err := s.db.Create(&view).Error; err != nil {
		return nil, err
	}
	if s.observer != nil {
		s.observer.ObserveView()
	}
	return &view, nil
}

// ViewCount 返回文章的浏览记录条数。
func (s *AnalyticsService) ViewCount(postID uint) (int64, error) {
	if err := ensurePostExists(s.db, postID); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.Model(&db.PostView{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// TopPostStat 描述热门文章的统计信息。
type TopPostStat struct {
	PostID uint   `json:"post_id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Views  int64  `json:"views"`
}

// TopPosts 按浏览数降序、文章 id 升序返回热门文章；since 为空时统计全部记录。
func (s *AnalyticsService) TopPosts(limit int, since *time.Time) ([]TopPostStat, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	query := s.db.Table("post_views pv").
		Select("pv.post_id, p.title, p.slug, COUNT(pv.id) AS views").
		Joins("JOIN posts p ON p.id = pv.post_id")
	if since != nil && !since.IsZero() {
		query = query.Where("pv.viewed_at >= ?", since.UTC())
	}

	var top []TopPostStat
	if err := query.
		Group("pv.post_id, p.title, p.slug").
		Order("views DESC").
		Order("pv.post_id ASC").
		Limit(limit).
		Scan(&top).Error; err != nil {
		return nil, err
	}
	if top == nil {
		top = []TopPostStat{}
	}
	return top, nil
}

// ViewBucket 是某篇文章在某个时间桶内的浏览数。
type ViewBucket struct {
	Bucket time.Time `json:"bucket"`
	PostID uint      `json:"post_id"`
	Views  int64     `json:"views"`
}

// ViewsByBucket 在 [from, to) 内按文章与时间桶聚合，结果按桶升序、文章 id 升序。
// 截断在 Go 中完成，避免依赖数据库方言的时间函数。
func (s *AnalyticsService) ViewsByBucket(from, to time.Time, bucket string) ([]ViewBucket, error) {
	bucket = strings.ToLower(strings.TrimSpace(bucket))
	if bucket == "" {
		bucket = BucketDay
	}
	if bucket != BucketHour && bucket != BucketDay {
		return nil, NewValidationError("bucket", "must be hour or day")
	}
	if !to.After(from) {
		return nil, NewValidationError("to", "must be after from")
	}

	var rows []struct {
		PostID   uint
		ViewedAt time.Time
	}
	if err := s.db.Model(&db.PostView{}).
		Select("post_id, viewed_at").
		Where("viewed_at >= ? AND viewed_at < ?", from.UTC(), to.UTC()).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	type key struct {
		bucket int64
		postID uint
	}
	counts := make(map[key]int64)
	for _, row := range rows {
		counts[key{bucket: truncateBucket(row.ViewedAt, bucket).Unix(), postID: row.PostID}]++
	}

	result := make([]ViewBucket, 0, len(counts))
	for k, views := range counts {
		result = append(result, ViewBucket{Bucket: time.Unix(k.bucket, 0).UTC(), PostID: k.postID, Views: views})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Bucket.Equal(result[j].Bucket) {
			return result[i].Bucket.Before(result[j].Bucket)
		}
		return result[i].PostID < result[j].PostID
	})
	return result, nil
}

// SiteOverview 聚合站点层面的浏览数据及热门文章。
type SiteOverview struct {
	TotalViews int64         `json:"total_views"`
	ViewsToday int64         `json:"views_today"`
	PostCount  int64         `json:"post_count"`
	TopPosts   []TopPostStat `json:"top_posts"`
}

// Overview 汇总全站浏览数。
func (s *AnalyticsService) Overview(limit int, now time.Time) (SiteOverview, error) {
	var overview SiteOverview

	if err := s.db.Model(&db.PostView{}).Count(&overview.TotalViews).Error; err != nil {
		return overview, err
	}
	startOfDay := truncateBucket(now, BucketDay)
	if err := s.db.Model(&db.PostView{}).Where("viewed_at >= ?", startOfDay).Count(&overview.ViewsToday).Error; err != nil {
		return overview, err
	}
	if err := s.db.Model(&db.Post{}).Count(&overview.PostCount).Error; err != nil {
		return overview, err
	}

	top, err := s.TopPosts(limit, nil)
	if err != nil {
		return overview, err
	}
	overview.TopPosts = top
	return overview, nil
}

func truncateBucket(t time.Time, bucket string) time.Time {
	t = t.UTC()
	if bucket == BucketHour {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
