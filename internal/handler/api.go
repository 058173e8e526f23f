package handler

import (
	"time"

	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/config"
	"github.com/newsdesk/internal/events"
	"github.com/newsdesk/internal/service"
	"github.com/newsdesk/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoginObserver 记录登录结果，例如 prometheus 计数器。
type LoginObserver interface {
	ObserveLogin(outcome string)
}

// Dependencies 是构造 API 所需的外部协作方，除 DB 外均可为空。
type Dependencies struct {
	DB      *gorm.DB
	Config  config.AppConfig
	Cache   cache.Store
	Storage storage.Storage
	Events  events.Publisher
	Views   service.ViewObserver
	Logins  LoginObserver
	Log     *zap.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	log         *zap.Logger
	posts       *service.PostService
	categories  *service.CategoryService
	tags        *service.TagService
	relations   *service.RelationService
	media       *service.MediaService
	revisions   *service.RevisionService
	comments    *service.CommentService
	analytics   *service.AnalyticsService
	auth        *service.AuthService
	users       *service.UserService
	attachments *service.AttachmentService
	breaking    *service.BreakingNewsService
	dashboard   *service.DashboardService
	suggestions *service.SuggestionService
	logins      LoginObserver
	limiter     *loginLimiter
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Dependencies) *API {
	useJSONFieldNames()

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	store := deps.Cache
	if store == nil {
		store = cache.NewMemoryStore(deps.Config.Cache.KeyPrefix)
	}
	ttl := deps.Config.Cache.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	posts := service.NewPostService(deps.DB).WithCache(store).WithLogger(log)
	if deps.Events != nil {
		posts = posts.WithEvents(deps.Events)
	}
	users := service.NewUserService(deps.DB).WithCache(store).WithLogger(log)
	analytics := service.NewAnalyticsService(deps.DB)
	if deps.Views != nil {
		analytics = analytics.WithObserver(deps.Views)
	}

	return &API{
		db:          deps.DB,
		log:         log.Named("http"),
		posts:       posts,
		categories:  service.NewCategoryService(deps.DB).WithCache(store).WithLogger(log),
		tags:        service.NewTagService(deps.DB).WithCache(store).WithLogger(log),
		relations:   service.NewRelationService(deps.DB),
		media:       service.NewMediaService(deps.DB, deps.Storage),
		revisions:   service.NewRevisionService(deps.DB),
		comments:    service.NewCommentService(deps.DB).WithCache(store).WithLogger(log),
		analytics:   analytics,
		auth:        service.NewAuthService(deps.DB).WithUsers(users).WithLifetimes(deps.Config.Auth.TokenTTL, deps.Config.Auth.IdleTimeout),
		users:       users,
		attachments: service.NewAttachmentService(deps.DB, deps.Storage).WithLogger(log),
		breaking:    service.NewBreakingNewsService(posts, store, deps.Config.BreakingNews, ttl).WithLogger(log),
		dashboard:   service.NewDashboardService(deps.DB, store, ttl).WithLogger(log),
		suggestions: service.NewSuggestionService(deps.Config.AI).WithLogger(log),
		logins:      deps.Logins,
		limiter:     newLoginLimiter(deps.Config.Auth.LoginPerMinute),
	}
}

// DB exposes the underlying gorm instance for the CLI commands.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Auth 供定时任务清理过期令牌。
func (a *API) Auth() *service.AuthService {
	return a.auth
}

// BreakingNews 供定时任务刷新快讯缓存。
func (a *API) BreakingNews() *service.BreakingNewsService {
	return a.breaking
}
