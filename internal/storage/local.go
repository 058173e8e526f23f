package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/newsdesk/internal/config"
)

// Local 将对象保存在本地目录，由 gin 的静态路由对外提供。
type Local struct {
	dir     string
	urlPath string
	baseURL string
	now     func() time.Time
}

// NewLocal 创建本地存储并确保目录存在。
func NewLocal(cfg config.LocalStorageConfig) (*Local, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "storage/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}

	urlPath := "/" + strings.Trim(strings.TrimSpace(cfg.URLPath), "/")
	if urlPath == "/" {
		urlPath = "/uploads"
	}

	return &Local{
		dir:     dir,
		urlPath: urlPath,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		now:     time.Now,
	}, nil
}

// Dir 返回本地根目录，供静态路由挂载。
func (l *Local) Dir() string {
	return l.dir
}

// URLPath 返回静态路由前缀。
func (l *Local) URLPath() string {
	return l.urlPath
}

func (l *Local) Put(_ context.Context, filename string, r io.Reader, _ int64, _ string) (Object, error) {
	key := objectKey("", filename, l.now())
	target := filepath.Join(l.dir, filepath.FromSlash(key))

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("保存文件失败: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		_ = os.Remove(target)
		return Object{}, fmt.Errorf("保存文件失败: %w", err)
	}
	if err := file.Close(); err != nil {
		return Object{}, err
	}

	return Object{Key: key, URL: l.publicURL(key)}, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	clean := path.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return ErrForeignURL
	}
	target := filepath.Join(l.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

func (l *Local) KeyFromURL(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if l.baseURL != "" && parsed.Host != "" && !strings.HasPrefix(rawURL, l.baseURL) {
		return "", false
	}

	prefix := l.urlPath + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(parsed.Path, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

func (l *Local) publicURL(key string) string {
	return l.baseURL + l.urlPath + "/" + key
}
