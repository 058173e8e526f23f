package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newsdesk/internal/config"
	"github.com/tencentyun/cos-go-sdk-v5"
	"go.uber.org/zap"
)

// COS 是腾讯云对象存储实现。
type COS struct {
	client     *cos.Client
	publicBase *url.URL
	keyPrefix  string
	log        *zap.Logger
	now        func() time.Time
}

// NewCOS 初始化 COS 客户端。未配置 BaseURL 时使用存储桶默认域名作为公开访问地址。
func NewCOS(cfg config.COSConfig, log *zap.Logger) (*COS, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" || cfg.BucketName == "" || cfg.AppID == "" || cfg.Region == "" {
		return nil, errors.New("COS 配置不完整，需要 secret_id、secret_key、bucket_name、app_id 与 region")
	}

	bucketURL, err := url.Parse(fmt.Sprintf("https://%s-%s.cos.%s.myqcloud.com", cfg.BucketName, cfg.AppID, cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("解析 COS 存储桶地址失败: %w", err)
	}

	publicBase := bucketURL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		publicBase, err = url.Parse(strings.TrimSpace(cfg.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("解析 COS BaseURL 失败: %w", err)
		}
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	log.Info("cos storage ready",
		zap.String("bucket", cfg.BucketName),
		zap.String("region", cfg.Region),
		zap.String("public_base", publicBase.String()),
	)

	return newCOSWithClient(client, publicBase, cfg.KeyPrefix, log), nil
}

func newCOSWithClient(client *cos.Client, publicBase *url.URL, keyPrefix string, log *zap.Logger) *COS {
	return &COS{
		client:     client,
		publicBase: publicBase,
		keyPrefix:  keyPrefix,
		log:        log.Named("cos"),
		now:        time.Now,
	}
}

func (c *COS) Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (Object, error) {
	key := objectKey(c.keyPrefix, filename, c.now())
	opts := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}

	resp, err := c.client.Object.Put(ctx, key, r, opts)
	if err != nil {
		c.log.Error("cos put failed", zap.String("key", key), zap.Error(err))
		return Object{}, fmt.Errorf("上传文件 %s 到 COS 失败: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Object{}, fmt.Errorf("COS 上传失败，状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	publicURL := c.publicURL(key)
	c.log.Debug("cos object stored", zap.String("key", key), zap.Int64("size", size))
	return Object{Key: key, URL: publicURL}, nil
}

func (c *COS) Delete(ctx context.Context, key string) error {
	resp, err := c.client.Object.Delete(ctx, key)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return ErrObjectNotFound
		}
		c.log.Error("cos delete failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("从 COS 删除对象 %s 失败: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("COS 删除失败，状态码 %d", resp.StatusCode)
	}
	return nil
}

func (c *COS) KeyFromURL(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(parsed.Host, c.publicBase.Host) {
		return "", false
	}

	basePath := strings.TrimSuffix(c.publicBase.Path, "/") + "/"
	if !strings.HasPrefix(parsed.Path, basePath) {
		return "", false
	}
	key := strings.TrimPrefix(parsed.Path, basePath)
	if key == "" {
		return "", false
	}
	return key, true
}

func (c *COS) publicURL(key string) string {
	basePath := c.publicBase.Path
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	final := *c.publicBase
	final.Path = basePath + strings.TrimPrefix(key, "/")
	return final.String()
}
