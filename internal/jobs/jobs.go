package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newsdesk/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 任务名称，同时用作指标标签。
const (
	JobPruneTokens         = "prune_tokens"
	JobRefreshBreakingNews = "refresh_breaking_news"
)

const defaultRunTimeout = 2 * time.Minute

// Observer 接收每次任务执行的结果，例如 prometheus 计数器。
type Observer interface {
	ObserveJob(job string, err error)
}

// TokenPruner 删除过期令牌。
type TokenPruner interface {
	PruneExpired(now time.Time) (int64, error)
}

// HeadlineRefresher 重新构建快讯缓存。
type HeadlineRefresher interface {
	Refresh(ctx context.Context) ([]service.Headline, error)
}

// Func 是一次任务执行，ctx 带有单次执行的超时。
type Func func(ctx context.Context) error

// Scheduler 在进程内按 cron 表达式执行维护任务。
type Scheduler struct {
	cron     *cron.Cron
	log      *zap.Logger
	observer Observer
	timeout  time.Duration

	mu   sync.Mutex
	jobs map[string]Func
}

// New creates a Scheduler. observer may be nil.
func New(log *zap.Logger, observer Observer) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		log:      log.Named("jobs"),
		observer: observer,
		timeout:  defaultRunTimeout,
		jobs:     make(map[string]Func),
	}
}

// Add 注册任务；spec 为空时只登记不调度，仍可通过 Run 手动触发。
func (s *Scheduler) Add(name, spec string, fn Func) error {
	if spec != "" {
		entryID, err := s.cron.AddFunc(spec, func() {
			_ = s.Run(context.Background(), name)
		})
		if err != nil {
			return fmt.Errorf("添加定时任务 %s 失败: %w", name, err)
		}
		s.log.Info("job scheduled", zap.String("job", name), zap.String("schedule", spec), zap.Int("entry_id", int(entryID)))
	} else {
		s.log.Info("job registered without schedule", zap.String("job", name))
	}

	s.mu.Lock()
	s.jobs[name] = fn
	s.mu.Unlock()
	return nil
}

// Run 立即执行一次任务，并记录耗时与结果。
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if s.observer != nil {
		s.observer.ObserveJob(name, err)
	}
	if err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}
	s.log.Info("job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，返回的 context 在正在执行的任务结束后完成。
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// PruneTokens 返回删除过期令牌的任务。
func PruneTokens(pruner TokenPruner, log *zap.Logger) Func {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		removed, err := pruner.PruneExpired(time.Now())
		if err != nil {
			return err
		}
		if log != nil && removed > 0 {
			log.Info("expired tokens pruned", zap.Int64("removed", removed))
		}
		return nil
	}
}

// RefreshBreakingNews 返回刷新快讯缓存的任务。
func RefreshBreakingNews(refresher HeadlineRefresher) Func {
	return func(ctx context.Context) error {
		_, err := refresher.Refresh(ctx)
		return err
	}
}
