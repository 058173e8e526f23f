package service

import (
	"context"
	"strings"
	"time"

	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound  = notFound("post")
	ErrPostSlugTaken = conflict("post slug already exists")
)

// PostService wraps post related database operations.
type PostService struct {
	db        *gorm.DB
	relations *RelationService
	events    events.Publisher
	cache     cache.Store
	log       *zap.Logger
	now       func() time.Time
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	Search       string
	Status       string
	CategorySlug string
	TagSlug      string
	AuthorID     uint
	Page         int
	PerPage      int
}

// PostListResult aggregates paginated list data.
type PostListResult struct {
	Posts      []db.Post `json:"data"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"total_pages"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
}

// PostInput represents fields accepted when creating a post.
type PostInput struct {
	Title       string
	Body        string
	Excerpt     string
	Status      string
	UserID      uint
	CategoryIDs []uint
	TagIDs      []uint
}

// PostUpdate 中为 nil 的字段保持不变。
type PostUpdate struct {
	Title       *string
	Body        *string
	Excerpt     *string
	Status      *string
	CategoryIDs *[]uint
	TagIDs      *[]uint
}

// NewPostService creates a PostService instance.
func NewPostService(gdb *gorm.DB) *PostService {
	return &PostService{
		db:        gdb,
		relations: NewRelationService(gdb),
		events:    events.Noop{},
		log:       zap.NewNop(),
		now:       time.Now,
	}
}

// WithEvents 设置文章生命周期事件的发布者。
func (s *PostService) WithEvents(publisher events.Publisher) *PostService {
	if publisher != nil {
		s.events = publisher
	}
	return s
}

// WithCache 设置写入后需要失效的缓存。
func (s *PostService) WithCache(store cache.Store) *PostService {
	s.cache = store
	return s
}

func (s *PostService) WithLogger(log *zap.Logger) *PostService {
	if log != nil {
		s.log = log.Named("posts")
	}
	return s
}

// Get fetches a post by id with author, taxonomy and ordered media.
func (s *PostService) Get(id uint) (*db.Post, error) {
	var post db.Post
	if err := s.detailQuery().First(&post, id).Error; err != nil {
		return nil, firstOr(err, ErrPostNotFound)
	}
	return &post, nil
}

// GetBySlug is the alternate lookup path used by the public site.
func (s *PostService) GetBySlug(slug string) (*db.Post, error) {
	var post db.Post
	if err := s.detailQuery().Where("posts.slug = ?", strings.TrimSpace(slug)).First(&post).Error; err != nil {
		return nil, firstOr(err, ErrPostNotFound)
	}
	return &post, nil
}

// GetPublishedBySlug 只返回已发布的文章。
func (s *PostService) GetPublishedBySlug(slug string) (*db.Post, error) {
	post, err := s.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// Create validates input, derives the slug and attaches taxonomy in one transaction.
func (s *PostService) Create(ctx context.Context, input PostInput) (*db.Post, error) {
	v := &ValidationError{}
	title := validateRequired(v, "title", input.Title, 255)
	slug := deriveSlug(v, title)
	excerpt := validateMax(v, "excerpt", input.Excerpt, 500)
	status := normalizeStatus(v, input.Status, db.PostStatusDraft)
	if input.UserID == 0 {
		v.Add("user_id", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	post := db.Post{
		UserID:  input.UserID,
		Title:   title,
		Slug:    slug,
		Body:    input.Body,
		Excerpt: excerpt,
		Status:  status,
	}
	if status == db.PostStatusPublished {
		publishedAt := s.now().UTC()
		post.PublishedAt = &publishedAt
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugAvailable(tx, slug, 0); err != nil {
			return err
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		if err := s.relations.syncTx(tx, RelationCategories, post.ID, input.CategoryIDs); err != nil {
			return err
		}
		return s.relations.syncTx(tx, RelationTags, post.ID, input.TagIDs)
	}); err != nil {
		return nil, err
	}

	s.afterWrite(ctx)
	if post.IsPublished() {
		s.publish(ctx, events.TypePostPublished, post)
	}
	return s.Get(post.ID)
}

// Update applies changes; when the title or body changes the prior version is
// snapshotted as a revision in the same transaction.
func (s *PostService) Update(ctx context.Context, id uint, input PostUpdate, editorID uint) (*db.Post, error) {
	var existing db.Post
	if err := s.db.First(&existing, id).Error; err != nil {
		return nil, firstOr(err, ErrPostNotFound)
	}
	prior := existing

	v := &ValidationError{}
	if input.Title != nil {
		existing.Title = validateRequired(v, "title", *input.Title, 255)
		existing.Slug = deriveSlug(v, existing.Title)
	}
	if input.Body != nil {
		existing.Body = *input.Body
	}
	if input.Excerpt != nil {
		existing.Excerpt = validateMax(v, "excerpt", *input.Excerpt, 500)
	}
	if input.Status != nil {
		existing.Status = normalizeStatus(v, *input.Status, "")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	becamePublished := existing.IsPublished() && !prior.IsPublished()
	if becamePublished && existing.PublishedAt == nil {
		publishedAt := s.now().UTC()
		existing.PublishedAt = &publishedAt
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if existing.Slug != prior.Slug {
			if err := ensureSlugAvailable(tx, existing.Slug, id); err != nil {
				return err
			}
		}
		if existing.Title != prior.Title || existing.Body != prior.Body {
			if _, err := snapshotRevision(tx, prior, editorID); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"title":        existing.Title,
			"slug":         existing.Slug,
			"body":         existing.Body,
			"excerpt":      existing.Excerpt,
			"status":       existing.Status,
			"published_at": existing.PublishedAt,
		}
		if err := tx.Model(&db.Post{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if input.CategoryIDs != nil {
			if err := s.relations.syncTx(tx, RelationCategories, id, *input.CategoryIDs); err != nil {
				return err
			}
		}
		if input.TagIDs != nil {
			if err := s.relations.syncTx(tx, RelationTags, id, *input.TagIDs); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.afterWrite(ctx)
	if becamePublished {
		s.publish(ctx, events.TypePostPublished, existing)
	}
	return s.Get(id)
}

// Delete removes a post together with its media, revisions, comments, views and pivot rows.
func (s *PostService) Delete(ctx context.Context, id uint) error {
	var post db.Post
	if err := s.db.First(&post, id).Error; err != nil {
		return firstOr(err, ErrPostNotFound)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&db.PostView{},
			&db.Media{},
			&db.PostRevision{},
			&db.Comment{},
			&db.PostCategory{},
			&db.PostTag{},
		} {
			if err := tx.Where("post_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&db.Post{}, id).Error
	}); err != nil {
		return err
	}

	s.afterWrite(ctx)
	s.publish(ctx, events.TypePostDeleted, post)
	return nil
}

// List provides paginated posts based on filters. Published listings are ordered
// by publish time, everything else by creation time, both with id as tie-break.
func (s *PostService) List(filter PostFilter) (*PostListResult, error) {
	page, perPage := normalizePage(filter.Page, filter.PerPage)
	result := &PostListResult{Page: page, PerPage: perPage}

	countQuery := s.applyFilters(s.db.Model(&db.Post{}), filter)
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	orderBy := "posts.created_at desc, posts.id desc"
	if strings.EqualFold(strings.TrimSpace(filter.Status), db.PostStatusPublished) {
		orderBy = "posts.published_at desc, posts.id desc"
	}

	var posts []db.Post
	dataQuery := s.applyFilters(s.listQuery(), filter)
	if err := dataQuery.Order(orderBy).Limit(perPage).Offset((page - 1) * perPage).Find(&posts).Error; err != nil {
		return nil, err
	}

	result.Posts = posts
	result.TotalPages = totalPages(result.Total, perPage)
	return result, nil
}

// LatestPublishedInCategory 返回指定分类下最新发布的文章，用于快讯回退。
func (s *PostService) LatestPublishedInCategory(categorySlug string, limit int) ([]db.Post, error) {
	result, err := s.List(PostFilter{
		Status:       db.PostStatusPublished,
		CategorySlug: categorySlug,
		PerPage:      limit,
	})
	if err != nil {
		return nil, err
	}
	return result.Posts, nil
}

func (s *PostService) applyFilters(query *gorm.DB, filter PostFilter) *gorm.DB {
	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		query = query.Where("posts.status = ?", status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("(posts.title LIKE ? OR posts.body LIKE ?)", like, like)
	}
	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		query = query.Where(
			"posts.id IN (SELECT post_categories.post_id FROM post_categories JOIN categories ON categories.id = post_categories.category_id WHERE categories.slug = ?)",
			slug,
		)
	}
	if slug := strings.TrimSpace(filter.TagSlug); slug != "" {
		query = query.Where(
			"posts.id IN (SELECT post_tags.post_id FROM post_tags JOIN tags ON tags.id = post_tags.tag_id WHERE tags.slug = ?)",
			slug,
		)
	}
	if filter.AuthorID > 0 {
		query = query.Where("posts.user_id = ?", filter.AuthorID)
	}
	return query
}

func (s *PostService) listQuery() *gorm.DB {
	return s.db.Model(&db.Post{}).
		Preload("User").
		Preload("Categories", orderByName("categories")).
		Preload("Tags", orderByName("tags"))
}

func (s *PostService) detailQuery() *gorm.DB {
	return s.listQuery().Preload("Media", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("display_order asc").Order("id asc")
	})
}

func (s *PostService) afterWrite(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.KeyDashboard, cache.KeyBreakingNews); err != nil {
		s.log.Warn("invalidate cache failed", zap.Error(err))
	}
}

func (s *PostService) publish(ctx context.Context, eventType string, post db.Post) {
	event := events.NewPostEvent(eventType, post.ID, post.Slug, post.Title)
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("publish post event failed", zap.String("type", eventType), zap.Uint("post_id", post.ID), zap.Error(err))
	}
}

// snapshotRevision 记录更新前的标题与正文。
func snapshotRevision(tx *gorm.DB, prior db.Post, editorID uint) (*db.PostRevision, error) {
	revision := db.PostRevision{
		PostID:        prior.ID,
		EditorID:      optionalID(editorID),
		TitleSnapshot: prior.Title,
		BodySnapshot:  prior.Body,
	}
	if err := tx.Create(&revision).Error; err != nil {
		return nil, err
	}
	return &revision, nil
}

func ensureSlugAvailable(tx *gorm.DB, slug string, excludeID uint) error {
	var count int64
	query := tx.Model(&db.Post{}).Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrPostSlugTaken
	}
	return nil
}

func deriveSlug(v *ValidationError, title string) string {
	slug := db.Slugify(title)
	if title != "" && slug == "" {
		v.Add("title", "must contain letters or digits")
	}
	return slug
}

func normalizeStatus(v *ValidationError, status, fallback string) string {
	trimmed := strings.ToLower(strings.TrimSpace(status))
	if trimmed == "" && fallback != "" {
		return fallback
	}
	for _, known := range db.PostStatuses {
		if trimmed == known {
			return known
		}
	}
	v.Add("status", "must be one of draft, published, archived")
	return trimmed
}

func orderByName(table string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Order(table + ".name asc").Order(table + ".id asc")
	}
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
