package service

import (
	"context"
	"time"

	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dashboardTopPosts = 5

// DashboardSummary 是后台首页的汇总数据。
type DashboardSummary struct {
	PostsByStatus   map[string]int64 `json:"posts_by_status"`
	PendingComments int64            `json:"pending_comments"`
	Categories      int64            `json:"categories"`
	Tags            int64            `json:"tags"`
	Users           int64            `json:"users"`
	TotalViews      int64            `json:"total_views"`
	TopPosts        []TopPostStat    `json:"top_posts"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// dashboardCache 让影响后台统计的服务在写入后删除汇总缓存。失败只记日志，由 TTL 兜底。
type dashboardCache struct {
	store cache.Store
	log   *zap.Logger
}

func (d dashboardCache) invalidate(ctx context.Context) {
	if d.store == nil {
		return
	}
	if err := d.store.Delete(ctx, cache.KeyDashboard); err != nil {
		log := d.log
		if log == nil {
			log = zap.NewNop()
		}
		log.Warn("invalidate dashboard cache failed", zap.Error(err))
	}
}

// DashboardService 聚合后台首页统计，结果按 TTL 缓存，写操作会主动失效。
type DashboardService struct {
	db        *gorm.DB
	analytics *AnalyticsService
	cache     cache.Store
	ttl       time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// NewDashboardService creates a DashboardService instance.
func NewDashboardService(gdb *gorm.DB, store cache.Store, ttl time.Duration) *DashboardService {
	return &DashboardService{
		db:        gdb,
		analytics: NewAnalyticsService(gdb),
		cache:     store,
		ttl:       ttl,
		log:       zap.NewNop(),
		now:       time.Now,
	}
}

func (s *DashboardService) WithLogger(log *zap.Logger) *DashboardService {
	if log != nil {
		s.log = log.Named("dashboard")
	}
	return s
}

// Summary 返回缓存的汇总，未命中时重新计算。
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.cache != nil {
		var cached DashboardSummary
		hit, err := s.cache.Get(ctx, cache.KeyDashboard, &cached)
		if err != nil {
			s.log.Warn("read dashboard cache failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	summary, err := s.compute()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.KeyDashboard, summary, s.ttl); err != nil {
			s.log.Warn("write dashboard cache failed", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *DashboardService) compute() (*DashboardSummary, error) {
	summary := &DashboardSummary{
		PostsByStatus: make(map[string]int64, len(db.PostStatuses)),
		GeneratedAt:   s.now().UTC(),
	}
	for _, status := range db.PostStatuses {
		summary.PostsByStatus[status] = 0
	}

	var rows []struct {
		Status string
		Total  int64
	}
	if err := s.db.Model(&db.Post{}).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		summary.PostsByStatus[row.Status] = row.Total
	}

	counts := []struct {
		model interface{}
		where string
		args  []interface{}
		dest  *int64
	}{
		{model: &db.Comment{}, where: "status = ?", args: []interface{}{db.CommentStatusPending}, dest: &summary.PendingComments},
		{model: &db.Category{}, dest: &summary.Categories},
		{model: &db.Tag{}, dest: &summary.Tags},
		{model: &db.User{}, dest: &summary.Users},
		{model: &db.PostView{}, dest: &summary.TotalViews},
	}
	for _, c := range counts {
		query := s.db.Model(c.model)
		if c.where != "" {
			query = query.Where(c.where, c.args...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	top, err := s.analytics.TopPosts(dashboardTopPosts, nil)
	if err != nil {
		return nil, err
	}
	summary.TopPosts = top
	return summary, nil
}
