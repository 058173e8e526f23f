package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newsdesk/internal/config"
	"go.uber.org/zap"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrForeignURL     = errors.New("url does not belong to this storage")
)

// Object 描述一次上传的结果。
type Object struct {
	Key string
	URL string
}

// Storage 是不透明的对象存储协作方：按文件名保存内容并返回公开 URL。
type Storage interface {
	Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL 将公开 URL 还原为对象键，不属于本存储的 URL 返回 false。
	KeyFromURL(rawURL string) (string, bool)
}

// New 按配置构造存储实现。
func New(cfg config.StorageConfig, log *zap.Logger) (Storage, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocal(cfg.Local)
	case "cos":
		return NewCOS(cfg.COS, log)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// DeleteByURL 根据公开 URL 删除对象。
func DeleteByURL(ctx context.Context, s Storage, rawURL string) error {
	key, ok := s.KeyFromURL(strings.TrimSpace(rawURL))
	if !ok {
		return ErrForeignURL
	}
	return s.Delete(ctx, key)
}

// objectKey 生成形如 prefix/20240501-<uuid>.jpg 的唯一对象键。
func objectKey(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := fmt.Sprintf("%s-%s%s", now.UTC().Format("20060102"), uuid.New().String(), ext)
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
