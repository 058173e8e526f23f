package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newsdesk/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// GormConfig 返回统一的 gorm 配置：时间一律使用 UTC，log 为空时静默。
func GormConfig(log *zap.Logger, slowThreshold time.Duration) *gorm.Config {
	var gormLogger logger.Interface = logger.Default.LogMode(logger.Silent)
	if log != nil {
		gormLogger = NewZapGormLogger(log, slowThreshold)
	}
	return &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Open 初始化数据库连接，配置只读副本与连接池，并执行自动迁移。
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, GormConfig(log, cfg.SlowThreshold))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
	for i, dsn := range cfg.Replicas {
		if strings.TrimSpace(dsn) == "" {
			log.Warn("skip empty replica dsn", zap.Int("index", i))
			continue
		}
		replica, err := dialectorFor(cfg.Driver, dsn)
		if err != nil {
			return nil, err
		}
		replicas = append(replicas, replica)
	}
	if len(replicas) > 0 {
		if err := gdb.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, fmt.Errorf("register read replicas: %w", err)
		}
		log.Info("read replicas enabled", zap.Int("count", len(replicas)))
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return gdb, nil
}

// Migrate 自动迁移模式，为全部模型创建表与中间表。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.SetupJoinTable(&Post{}, "Categories", &PostCategory{}); err != nil {
		return err
	}
	if err := gdb.SetupJoinTable(&Post{}, "Tags", &PostTag{}); err != nil {
		return err
	}

	return gdb.AutoMigrate(
		&User{},
		&AccessToken{},
		&Category{},
		&Tag{},
		&Post{},
		&PostCategory{},
		&PostTag{},
		&Media{},
		&PostRevision{},
		&Comment{},
		&PostView{},
		&Attachment{},
	)
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		if dsn == "" {
			dsn = "newsdesk.db"
		}
		if err := ensureParentDir(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(withForeignKeys(dsn)), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// withForeignKeys 打开 sqlite 的外键约束，保证级联删除生效。
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	if strings.HasPrefix(dsn, "file:") {
		return dsn + "?_foreign_keys=1"
	}
	return "file:" + dsn + "?_foreign_keys=1"
}

func ensureParentDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
