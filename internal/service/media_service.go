package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/storage"
	"gorm.io/gorm"
)

var ErrMediaNotFound = notFound("media")

// MediaInput 描述一条待创建的媒体记录，Order 由调用方给出并原样保存。
type MediaInput struct {
	Type    string
	Subtype string
	URL     string
	AltText string
	Order   int
}

// MediaOrder 是批量调整顺序的一项。
type MediaOrder struct {
	ID    uint
	Order int
}

// MediaUpdate 中为 nil 的字段保持不变。
type MediaUpdate struct {
	Subtype *string
	URL     *string
	AltText *string
	Order   *int
}

// MediaService manages ordered media rows of a post.
type MediaService struct {
	db      *gorm.DB
	storage storage.Storage
}

// NewMediaService creates a MediaService instance. storage may be nil when uploads are disabled.
func NewMediaService(gdb *gorm.DB, store storage.Storage) *MediaService {
	return &MediaService{db: gdb, storage: store}
}

// CreateMultiple 在一个事务内插入多条媒体。批次中的 featured 会把该文章已有的 featured 降级为 secondary。
func (s *MediaService) CreateMultiple(postID uint, items []MediaInput) ([]db.Media, error) {
	if len(items) == 0 {
		return nil, NewValidationError("items", "at least one media item is required")
	}

	v := &ValidationError{}
	rows := make([]db.Media, 0, len(items))
	featured := 0
	for i, item := range items {
		row := validateMediaInput(v, fmt.Sprintf("items.%d", i), item)
		row.PostID = postID
		if row.Subtype == db.MediaSubtypeFeatured {
			featured++
		}
		rows = append(rows, row)
	}
	if featured > 1 {
		v.Add("items", "only one featured media item is allowed per post")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensurePostExists(tx, postID); err != nil {
			return err
		}
		if featured > 0 {
			if err := demoteFeatured(tx, postID, 0); err != nil {
				return err
			}
		}
		return tx.Create(&rows).Error
	}); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateOrder 批量重排，任一 id 不存在则整体回滚。
func (s *MediaService) UpdateOrder(items []MediaOrder) error {
	if len(items) == 0 {
		return NewValidationError("items", "at least one item is required")
	}
	v := &ValidationError{}
	seen := make(map[uint]struct{}, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items.%d", i)
		if item.ID == 0 {
			v.Add(field+".id", "is required")
		}
		if item.Order < 0 {
			v.Add(field+".order", "must be zero or positive")
		}
		if _, dup := seen[item.ID]; dup {
			v.Add(field+".id", "is duplicated")
		}
		seen[item.ID] = struct{}{}
	}
	if err := v.Err(); err != nil {
		return err
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Media{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return err
		}
		if count != int64(len(ids)) {
			return ErrMediaNotFound
		}
		for _, item := range items {
			if err := tx.Model(&db.Media{}).Where("id = ?", item.ID).Update("display_order", item.Order).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// PostIDs 返回这些媒体所属的文章 id（去重）；任一媒体不存在时返回 ErrMediaNotFound。
func (s *MediaService) PostIDs(ids []uint) ([]uint, error) {
	ids = uniqueIDs(ids)
	var rows []db.Media
	if err := s.db.Select("id", "post_id").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		return nil, ErrMediaNotFound
	}

	seen := make(map[uint]struct{}, len(rows))
	postIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.PostID]; ok {
			continue
		}
		seen[row.PostID] = struct{}{}
		postIDs = append(postIDs, row.PostID)
	}
	return postIDs, nil
}

// ListByPost returns media ordered by order then id.
func (s *MediaService) ListByPost(postID uint) ([]db.Media, error) {
	if err := ensurePostExists(s.db, postID); err != nil {
		return nil, err
	}
	var media []db.Media
	if err := s.db.Where("post_id = ?", postID).
		Order("display_order asc").
		Order("id asc").
		Find(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

// Featured 返回文章的 featured 媒体，没有时返回 ErrMediaNotFound。
func (s *MediaService) Featured(postID uint) (*db.Media, error) {
	var media db.Media
	if err := s.db.Where("post_id = ? AND subtype = ?", postID, db.MediaSubtypeFeatured).
		Order("id desc").
		First(&media).Error; err != nil {
		return nil, firstOr(err, ErrMediaNotFound)
	}
	return &media, nil
}

func (s *MediaService) Get(id uint) (*db.Media, error) {
	var media db.Media
	if err := s.db.First(&media, id).Error; err != nil {
		return nil, firstOr(err, ErrMediaNotFound)
	}
	return &media, nil
}

// Update 修改单条媒体；改为 featured 时降级同文章的其他 featured。
func (s *MediaService) Update(id uint, input MediaUpdate) (*db.Media, error) {
	media, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	merged := MediaInput{Type: media.Type, Subtype: media.Subtype, URL: media.URL, AltText: media.AltText, Order: media.Order}
	if input.Subtype != nil {
		merged.Subtype = *input.Subtype
	}
	if input.URL != nil {
		merged.URL = *input.URL
	}
	if input.AltText != nil {
		merged.AltText = *input.AltText
	}
	if input.Order != nil {
		merged.Order = *input.Order
	}
	row := validateMediaInput(v, "", merged)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if row.Subtype == db.MediaSubtypeFeatured && media.Subtype != db.MediaSubtypeFeatured {
			if err := demoteFeatured(tx, media.PostID, media.ID); err != nil {
				return err
			}
		}
		return tx.Model(&db.Media{}).Where("id = ?", id).Updates(map[string]interface{}{
			"subtype":       row.Subtype,
			"url":           row.URL,
			"alt_text":      row.AltText,
			"display_order": row.Order,
		}).Error
	}); err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete removes a media row. Stored objects are removed separately via DeleteByURL.
func (s *MediaService) Delete(id uint) error {
	result := s.db.Delete(&db.Media{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

// Upload 保存文件到对象存储并返回公开 URL。
func (s *MediaService) Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	mediaType := mediaTypeFromContentType(contentType)
	if mediaType == "" {
		return "", NewValidationError("file", "only image or video files are allowed")
	}
	obj, err := s.storage.Put(ctx, filename, r, size, contentType)
	if err != nil {
		return "", err
	}
	return obj.URL, nil
}

// DeleteByURL 从对象存储删除 URL 对应的对象。
func (s *MediaService) DeleteByURL(ctx context.Context, rawURL string) error {
	if s.storage == nil {
		return ErrStorageUnavailable
	}
	if strings.TrimSpace(rawURL) == "" {
		return NewValidationError("url", "is required")
	}
	err := storage.DeleteByURL(ctx, s.storage, rawURL)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrForeignURL):
		return NewValidationError("url", "does not belong to the configured storage")
	case errors.Is(err, storage.ErrObjectNotFound):
		return ErrStoredObjectNotFound
	default:
		return err
	}
}

func demoteFeatured(tx *gorm.DB, postID, exceptID uint) error {
	query := tx.Model(&db.Media{}).Where("post_id = ? AND subtype = ?", postID, db.MediaSubtypeFeatured)
	if exceptID > 0 {
		query = query.Where("id <> ?", exceptID)
	}
	return query.Update("subtype", db.MediaSubtypeSecondary).Error
}

func validateMediaInput(v *ValidationError, prefix string, item MediaInput) db.Media {
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	mediaType := strings.ToLower(strings.TrimSpace(item.Type))
	if mediaType != db.MediaTypeImage && mediaType != db.MediaTypeVideo {
		v.Add(field("type"), "must be image or video")
	}

	subtype := strings.ToLower(strings.TrimSpace(item.Subtype))
	if subtype == "" {
		subtype = db.MediaSubtypeGallery
	}
	switch subtype {
	case db.MediaSubtypeFeatured, db.MediaSubtypeSecondary, db.MediaSubtypeGallery:
	default:
		v.Add(field("subtype"), "must be featured, secondary or gallery")
	}

	rawURL := validateRequired(v, field("url"), item.URL, 1024)
	if rawURL != "" && !isMediaURL(rawURL) {
		v.Add(field("url"), "must be an absolute http(s) url or a site path")
	}
	if item.Order < 0 {
		v.Add(field("order"), "must be zero or positive")
	}

	return db.Media{
		Type:    mediaType,
		Subtype: subtype,
		URL:     rawURL,
		AltText: validateMax(v, field("alt_text"), item.AltText, 255),
		Order:   item.Order,
	}
}

func isMediaURL(raw string) bool {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func mediaTypeFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return db.MediaTypeImage
	case strings.HasPrefix(contentType, "video/"):
		return db.MediaTypeVideo
	default:
		return ""
	}
}
