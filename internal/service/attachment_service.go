package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/storage"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxAttachmentSize 限制单个附件大小。
const MaxAttachmentSize = 20 << 20

const AttachmentTypeDocument = "document"

var (
	ErrAttachmentNotFound = notFound("attachment")
	ErrAttachmentTooLarge = NewValidationError("file", "must be at most 20MB")
)

// AttachmentMetadata 保存在 attachments.metadata 中。
type AttachmentMetadata struct {
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Format       string `json:"format,omitempty"`
}

// AttachmentService 管理不挂在文章上的通用上传。
type AttachmentService struct {
	db      *gorm.DB
	storage storage.Storage
	log     *zap.Logger
}

// NewAttachmentService creates an AttachmentService instance.
func NewAttachmentService(gdb *gorm.DB, store storage.Storage) *AttachmentService {
	return &AttachmentService{db: gdb, storage: store, log: zap.NewNop()}
}

func (s *AttachmentService) WithLogger(log *zap.Logger) *AttachmentService {
	if log != nil {
		s.log = log.Named("attachments")
	}
	return s
}

// Upload 保存文件并记录元数据；图片会解析宽高（支持 jpeg/png/gif/webp）。
func (s *AttachmentService) Upload(ctx context.Context, userID *uint, filename string, r io.Reader, contentType string) (*db.Attachment, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if len(data) == 0 {
		return nil, NewValidationError("file", "is empty")
	}
	if len(data) > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}

	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffContentType(data)
	}

	meta := AttachmentMetadata{
		OriginalName: filepath.Base(strings.TrimSpace(filename)),
		Size:         int64(len(data)),
		ContentType:  contentType,
	}

	kind := attachmentType(contentType)
	if kind == db.MediaTypeImage {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			s.log.Debug("image dimensions unavailable", zap.String("filename", meta.OriginalName), zap.Error(err))
		} else {
			meta.Width = cfg.Width
			meta.Height = cfg.Height
			meta.Format = format
		}
	}

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Put(ctx, meta.OriginalName, bytes.NewReader(data), meta.Size, contentType)
	if err != nil {
		return nil, err
	}

	attachment := db.Attachment{
		UserID:    userID,
		Type:      kind,
		URL:       obj.URL,
		ObjectKey: obj.Key,
		Metadata:  datatypes.JSON(rawMeta),
	}
	if err := s.db.Create(&attachment).Error; err != nil {
		if delErr := s.storage.Delete(ctx, obj.Key); delErr != nil {
			s.log.Warn("cleanup stored object failed", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return nil, err
	}
	return &attachment, nil
}

// List 返回附件，最新优先；userID 非空时只看该用户上传的。
func (s *AttachmentService) List(userID *uint, attachmentType string) ([]db.Attachment, error) {
	query := s.db.Model(&db.Attachment{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if t := strings.ToLower(strings.TrimSpace(attachmentType)); t != "" {
		query = query.Where("type = ?", t)
	}

	var attachments []db.Attachment
	if err := query.Order("created_at desc").Order("id desc").Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

func (s *AttachmentService) Get(id uint) (*db.Attachment, error) {
	var attachment db.Attachment
	if err := s.db.First(&attachment, id).Error; err != nil {
		return nil, firstOr(err, ErrAttachmentNotFound)
	}
	return &attachment, nil
}

// Delete 删除记录与存储中的对象；对象已不存在时仍删除记录。
func (s *AttachmentService) Delete(ctx context.Context, id uint) error {
	attachment, err := s.Get(id)
	if err != nil {
		return err
	}

	if s.storage != nil && attachment.ObjectKey != "" {
		if err := s.storage.Delete(ctx, attachment.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return err
		}
	}
	return s.db.Delete(&db.Attachment{}, id).Error
}

func attachmentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return db.MediaTypeImage
	case strings.HasPrefix(contentType, "video/"):
		return db.MediaTypeVideo
	default:
		return AttachmentTypeDocument
	}
}

func sniffContentType(data []byte) string {
	detected := http.DetectContentType(data)
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	return detected
}
