package service

import (
	"context"
	"strings"

	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTagExists    = conflict("tag name already exists")
	ErrTagSlugTaken = conflict("tag slug already exists")
	ErrTagNotFound  = notFound("tag")
)

// TagService wraps tag related operations.
type TagService struct {
	db        *gorm.DB
	dashboard dashboardCache
}

// NewTagService creates a TagService instance.
func NewTagService(gdb *gorm.DB) *TagService {
	return &TagService{db: gdb}
}

func (s *TagService) WithCache(store cache.Store) *TagService {
	s.dashboard.store = store
	return s
}

func (s *TagService) WithLogger(log *zap.Logger) *TagService {
	if log != nil {
		s.dashboard.log = log.Named("tags")
	}
	return s
}

// List returns tags with post counts ordered by name then id.
func (s *TagService) List() ([]db.Tag, error) {
	return s.list(false)
}

// PublishedUsage 返回标签列表，post_count 只统计已发布文章。
func (s *TagService) PublishedUsage() ([]db.Tag, error) {
	return s.list(true)
}

func (s *TagService) list(publishedOnly bool) ([]db.Tag, error) {
	var tags []db.Tag
	query := tagTable.withPostCount(s.db.Model(&db.Tag{}), publishedOnly)
	if err := tagTable.ordered(query).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// Get fetches a tag by id.
func (s *TagService) Get(id uint) (*db.Tag, error) {
	var tag db.Tag
	query := tagTable.withPostCount(s.db.Model(&db.Tag{}), false)
	if err := query.Where("tags.id = ?", id).Take(&tag).Error; err != nil {
		return nil, firstOr(err, ErrTagNotFound)
	}
	return &tag, nil
}

// GetBySlug resolves the current slug only; renamed tags no longer answer to old slugs.
func (s *TagService) GetBySlug(slug string) (*db.Tag, error) {
	var tag db.Tag
	query := tagTable.withPostCount(s.db.Model(&db.Tag{}), false)
	if err := query.Where("tags.slug = ?", strings.TrimSpace(slug)).Take(&tag).Error; err != nil {
		return nil, firstOr(err, ErrTagNotFound)
	}
	return &tag, nil
}

// Create inserts a new tag with unique name and slug.
func (s *TagService) Create(name string) (*db.Tag, error) {
	name, slug, err := taxonomyInput(name)
	if err != nil {
		return nil, err
	}
	if err := tagTable.checkUnique(s.db, name, slug, 0, ErrTagExists, ErrTagSlugTaken); err != nil {
		return nil, err
	}

	tag := db.Tag{Name: name, Slug: slug}
	if err := s.db.Create(&tag).Error; err != nil {
		return nil, err
	}
	s.dashboard.invalidate(context.Background())
	return &tag, nil
}

// Update renames the tag and recomputes its slug.
func (s *TagService) Update(id uint, name string) (*db.Tag, error) {
	name, slug, err := taxonomyInput(name)
	if err != nil {
		return nil, err
	}

	var tag db.Tag
	if err := s.db.First(&tag, id).Error; err != nil {
		return nil, firstOr(err, ErrTagNotFound)
	}
	if err := tagTable.checkUnique(s.db, name, slug, id, ErrTagExists, ErrTagSlugTaken); err != nil {
		return nil, err
	}

	if err := s.db.Model(&tag).Updates(map[string]interface{}{"name": name, "slug": slug}).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete removes a tag and detaches it from every post.
func (s *TagService) Delete(id uint) error {
	if err := tagTable.deleteWithPivot(s.db, &db.Tag{}, id, ErrTagNotFound); err != nil {
		return err
	}
	s.dashboard.invalidate(context.Background())
	return nil
}
