package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/events"
	"github.com/newsdesk/internal/handler"
	"github.com/newsdesk/internal/jobs"
	"github.com/newsdesk/internal/metrics"
	"github.com/newsdesk/internal/router"
	"github.com/newsdesk/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and scheduled jobs",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.Database, log.Named("gorm"))
	if err != nil {
		return err
	}
	if err := db.EnsureAdmin(gdb, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return err
	}

	store, err := cache.New(ctx, cfg.Redis, cfg.Cache, log)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	objects, err := storage.New(cfg.Storage, log)
	if err != nil {
		return err
	}

	publisher := events.New(cfg.Events, log)
	defer func() { _ = publisher.Close() }()

	m := metrics.New()
	api := handler.NewAPI(handler.Dependencies{
		DB:      gdb,
		Config:  cfg,
		Cache:   store,
		Storage: objects,
		Events:  publisher,
		Views:   m,
		Logins:  m,
		Log:     log,
	})

	scheduler := jobs.New(log, m)
	if err := scheduler.Add("prune_tokens", cfg.Auth.PruneSchedule, jobs.PruneTokens(api.Auth(), log)); err != nil {
		return err
	}
	if err := scheduler.Add("refresh_breaking_news", cfg.BreakingNews.RefreshSchedule, jobs.RefreshBreakingNews(api.BreakingNews())); err != nil {
		return err
	}
	scheduler.Start()
	// 启动时预热一次快讯缓存
	go func() { _ = scheduler.Run(ctx, "refresh_breaking_news") }()

	gin.SetMode(cfg.Server.GinMode)
	engine := router.SetupRouter(api, router.Options{
		Server:  cfg.Server,
		Metrics: m,
		Storage: objects,
		Log:     log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
