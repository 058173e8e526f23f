package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/newsdesk/docs"
	"github.com/newsdesk/internal/config"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/handler"
	"github.com/newsdesk/internal/metrics"
	"github.com/newsdesk/internal/service"
	"github.com/newsdesk/internal/storage"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Options 汇总路由层需要的外部依赖，Metrics 与 Storage 可为空。
type Options struct {
	Server  config.ServerConfig
	Metrics *metrics.Metrics
	Storage storage.Storage
	Log     *zap.Logger
}

// SetupRouter 配置 Gin 引擎、全局中间件和全部 API 路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	serviceName := opts.Server.ServiceName
	if serviceName == "" {
		serviceName = "newsdesk"
	}

	r := gin.New()
	r.Use(otelgin.Middleware(serviceName))
	r.Use(recovery(log))
	r.Use(requestLogger(log.Named("access")))
	r.Use(requestTimeout(opts.Server.RequestTimeout))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	// 本地存储时直接由 gin 提供上传文件
	if local, ok := opts.Storage.(*storage.Local); ok {
		r.Static(local.URLPath(), local.Dir())
	}

	v1 := r.Group("/api/v1")
	registerPublicRoutes(v1, api)
	registerStaffRoutes(v1, api)

	return r
}

func registerPublicRoutes(v1 *gin.RouterGroup, api *handler.API) {
	v1.POST("/auth/register", api.Register)
	v1.POST("/auth/login", api.Login)

	public := v1.Group("", api.OptionalAuth())
	{
		public.GET("/public/posts", api.ListPublishedPosts)
		public.GET("/public/posts/:slug", api.ShowPublishedPost)
		public.GET("/public/posts/:slug/comments", api.ListPublicComments)
		public.POST("/public/posts/:slug/comments", api.CreatePublicComment)
		public.POST("/public/posts/:slug/views", api.RecordPublicView)

		public.GET("/public/categories", api.ListPublicCategories)
		public.GET("/public/categories/:slug/posts", api.CategoryPosts)
		public.GET("/public/tags", api.ListPublicTags)
		public.GET("/public/tags/:slug/posts", api.TagPosts)
		public.GET("/breaking-news", api.BreakingNewsHeadlines)
	}
}

func registerStaffRoutes(v1 *gin.RouterGroup, api *handler.API) {
	authed := v1.Group("", api.RequireAuth())
	authed.GET("/auth/me", api.Me)
	authed.POST("/auth/logout", api.Logout)

	staff := authed.Group("", handler.RequireStaff())
	{
		staff.GET("/posts", api.ListPosts)
		staff.POST("/posts", api.CreatePost)
		staff.GET("/posts/slug/:slug", api.GetPostBySlug)
		staff.GET("/posts/:id", api.GetPost)
		staff.PUT("/posts/:id", api.UpdatePost)
		staff.DELETE("/posts/:id", api.DeletePost)
		staff.GET("/posts/:id/views", api.PostViews)

		for _, rel := range []service.Relation{service.RelationCategories, service.RelationTags} {
			path := "/posts/:id/" + string(rel)
			staff.GET(path, api.ListRelation(rel))
			staff.POST(path, api.AttachRelation(rel))
			staff.DELETE(path, api.DetachRelation(rel))
			staff.PUT(path, api.SyncRelation(rel))
		}

		staff.GET("/posts/:id/media", api.ListPostMedia)
		staff.POST("/posts/:id/media", api.CreatePostMedia)
		staff.PUT("/media/order", api.ReorderMedia)
		staff.POST("/media/upload", api.UploadMedia)
		staff.DELETE("/media/object", api.DeleteMediaObject)
		staff.PUT("/media/:id", api.UpdateMedia)
		staff.DELETE("/media/:id", api.DeleteMedia)

		staff.GET("/posts/:id/revisions", api.ListRevisions)
		staff.POST("/posts/:id/revisions", api.CreateRevision)
		staff.GET("/post-revisions/:id", api.GetRevision)

		staff.GET("/categories", api.ListCategories)
		staff.POST("/categories", api.CreateCategory)
		staff.GET("/categories/slug/:slug", api.GetCategoryBySlug)
		staff.GET("/categories/:id", api.GetCategory)
		staff.PUT("/categories/:id", api.UpdateCategory)
		staff.DELETE("/categories/:id", api.DeleteCategory)

		staff.GET("/tags", api.ListTags)
		staff.POST("/tags", api.CreateTag)
		staff.GET("/tags/slug/:slug", api.GetTagBySlug)
		staff.GET("/tags/:id", api.GetTag)
		staff.PUT("/tags/:id", api.UpdateTag)
		staff.DELETE("/tags/:id", api.DeleteTag)

		staff.GET("/analytics/top", api.TopPosts)
		staff.GET("/analytics/views", api.ViewsByBucket)
		staff.GET("/analytics/overview", api.AnalyticsOverview)
		staff.GET("/dashboard", api.Dashboard)

		staff.GET("/attachments", api.ListAttachments)
		staff.POST("/attachments", api.UploadAttachment)
		staff.GET("/attachments/:id", api.GetAttachment)
		staff.DELETE("/attachments/:id", api.DeleteAttachment)

		staff.POST("/suggestions", api.Suggest)
	}

	admin := authed.Group("", handler.RequireRole(db.RoleAdmin))
	{
		admin.GET("/comments", api.ListComments)
		admin.PATCH("/comments/:id/status", api.SetCommentStatus)
		admin.DELETE("/comments/:id", api.DeleteComment)

		admin.GET("/users", api.ListUsers)
		admin.POST("/users", api.CreateUser)
		admin.GET("/users/:id", api.GetUser)
		admin.PUT("/users/:id", api.UpdateUser)
		admin.DELETE("/users/:id", api.DeleteUser)
	}
}
