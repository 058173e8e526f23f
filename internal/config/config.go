package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Auth         AuthConfig         `mapstructure:"auth"`
	AI           AIConfig           `mapstructure:"ai"`
	BreakingNews BreakingNewsConfig `mapstructure:"breaking_news"`
	Events       EventsConfig       `mapstructure:"events"`
	Log          LogConfig          `mapstructure:"log"`
	Bootstrap    BootstrapConfig    `mapstructure:"bootstrap"`
}

type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	GinMode        string        `mapstructure:"gin_mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ServiceName    string        `mapstructure:"service_name"`
}

// DatabaseConfig 描述主库与只读副本。Driver 支持 sqlite 与 mysql。
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Replicas        []string      `mapstructure:"replicas"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// RedisConfig 为空地址时使用进程内缓存。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type StorageConfig struct {
	Driver string             `mapstructure:"driver"`
	Local  LocalStorageConfig `mapstructure:"local"`
	COS    COSConfig          `mapstructure:"cos"`
}

type LocalStorageConfig struct {
	Dir     string `mapstructure:"dir"`
	URLPath string `mapstructure:"url_path"`
	BaseURL string `mapstructure:"base_url"`
}

// COSConfig 腾讯云对象存储配置。
type COSConfig struct {
	SecretID   string `mapstructure:"secret_id"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	AppID      string `mapstructure:"app_id"`
	Region     string `mapstructure:"region"`
	BaseURL    string `mapstructure:"base_url"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// AuthConfig 控制访问令牌的两个独立寿命。
type AuthConfig struct {
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	LoginPerMinute int           `mapstructure:"login_per_minute"`
	PruneSchedule  string        `mapstructure:"prune_schedule"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type BreakingNewsConfig struct {
	FeedURL         string        `mapstructure:"feed_url"`
	Limit           int           `mapstructure:"limit"`
	CategorySlug    string        `mapstructure:"category_slug"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

type EventsConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// BootstrapConfig 用于首次启动时创建管理员账号。
type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

const envPrefix = "NEWSDESK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.service_name", "newsdesk")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "newsdesk.db")
	v.SetDefault("database.replicas", []string{})
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.key_prefix", "newsdesk:")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.dir", "storage/uploads")
	v.SetDefault("storage.local.url_path", "/uploads")
	v.SetDefault("storage.local.base_url", "")
	v.SetDefault("storage.cos.secret_id", "")
	v.SetDefault("storage.cos.secret_key", "")
	v.SetDefault("storage.cos.bucket_name", "")
	v.SetDefault("storage.cos.app_id", "")
	v.SetDefault("storage.cos.region", "")
	v.SetDefault("storage.cos.base_url", "")
	v.SetDefault("storage.cos.key_prefix", "media")

	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.idle_timeout", 2*24*time.Hour)
	v.SetDefault("auth.login_per_minute", 10)
	v.SetDefault("auth.prune_schedule", "@hourly")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("breaking_news.feed_url", "")
	v.SetDefault("breaking_news.limit", 10)
	v.SetDefault("breaking_news.category_slug", "breaking-news")
	v.SetDefault("breaking_news.refresh_schedule", "@every 5m")
	v.SetDefault("breaking_news.fetch_timeout", 10*time.Second)

	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", "newsdesk.posts")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")
}

// Load 读取应用配置：默认值 < 配置文件 < NEWSDESK_* 环境变量。
// path 为空时只使用默认值与环境变量。
func Load(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate 检查相互依赖的配置项。
func (c AppConfig) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "local", "cos":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Auth.TokenTTL <= 0 || c.Auth.IdleTimeout <= 0 {
		return errors.New("auth.token_ttl and auth.idle_timeout must be positive")
	}
	return nil
}
