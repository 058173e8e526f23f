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
	ErrCategoryExists    = conflict("category name already exists")
	ErrCategorySlugTaken = conflict("category slug already exists")
	ErrCategoryNotFound  = notFound("category")
)

// CategoryInput 是创建与更新分类时接受的字段。
type CategoryInput struct {
	Name        string
	Description string
}

// CategoryService wraps category related operations.
type CategoryService struct {
	db        *gorm.DB
	dashboard dashboardCache
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

func (s *CategoryService) WithCache(store cache.Store) *CategoryService {
	s.dashboard.store = store
	return s
}

func (s *CategoryService) WithLogger(log *zap.Logger) *CategoryService {
	if log != nil {
		s.dashboard.log = log.Named("categorys")
	}
	return s
}

// List returns categories with post counts ordered by name then id.
func (s *CategoryService) List() ([]db.Category, error) {
	return s.list(false)
}

// PublishedUsage 返回分类列表，post_count 只统计已发布文章。
func (s *CategoryService) PublishedUsage() ([]db.Category, error) {
	return s.list(true)
}

func (s *CategoryService) list(publishedOnly bool) ([]db.Category, error) {
	var categories []db.Category
	query := categoryTable.withPostCount(s.db.Model(&db.Category{}), publishedOnly)
	if err := categoryTable.ordered(query).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *CategoryService) Get(id uint) (*db.Category, error) {
	var category db.Category
	query := categoryTable.withPostCount(s.db.Model(&db.Category{}), false)
	if err := query.Where("categories.id = ?", id).Take(&category).Error; err != nil {
		return nil, firstOr(err, ErrCategoryNotFound)
	}
	return &category, nil
}

func (s *CategoryService) GetBySlug(slug string) (*db.Category, error) {
	var category db.Category
	query := categoryTable.withPostCount(s.db.Model(&db.Category{}), false)
	if err := query.Where("categories.slug = ?", strings.TrimSpace(slug)).Take(&category).Error; err != nil {
		return nil, firstOr(err, ErrCategoryNotFound)
	}
	return &category, nil
}

func (s *CategoryService) Create(input CategoryInput) (*db.Category, error) {
	name, slug, description, err := categoryFields(input)
	if err != nil {
		return nil, err
	}
	if err := categoryTable.checkUnique(s.db, name, slug, 0, ErrCategoryExists, ErrCategorySlugTaken); err != nil {
		return nil, err
	}

	category := db.Category{Name: name, Slug: slug, Description: description}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, err
	}
	s.dashboard.invalidate(context.Background())
	return &category, nil
}

// Update 重命名时重新计算 slug，旧 slug 随即失效。
func (s *CategoryService) Update(id uint, input CategoryInput) (*db.Category, error) {
	name, slug, description, err := categoryFields(input)
	if err != nil {
		return nil, err
	}

	var category db.Category
	if err := s.db.First(&category, id).Error; err != nil {
		return nil, firstOr(err, ErrCategoryNotFound)
	}
	if err := categoryTable.checkUnique(s.db, name, slug, id, ErrCategoryExists, ErrCategorySlugTaken); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":        name,
		"slug":        slug,
		"description": description,
	}
	if err := s.db.Model(&category).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Delete removes a category and detaches it from every post.
func (s *CategoryService) Delete(id uint) error {
	if err := categoryTable.deleteWithPivot(s.db, &db.Category{}, id, ErrCategoryNotFound); err != nil {
		return err
	}
	s.dashboard.invalidate(context.Background())
	return nil
}

func categoryFields(input CategoryInput) (string, string, string, error) {
	v := &ValidationError{}
	name := validateRequired(v, "name", input.Name, 100)
	slug := db.Slugify(name)
	if name != "" && slug == "" {
		v.Add("name", "must contain letters or digits")
	}
	description := validateMax(v, "description", input.Description, 500)
	return name, slug, description, v.Err()
}
