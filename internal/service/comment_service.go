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
	ErrCommentNotFound = notFound("comment")
	ErrParentNotFound  = notFound("parent comment")
)

// CommentInput 描述一条新评论。匿名评论需要 AuthorName。
type CommentInput struct {
	UserID     *uint
	AuthorName string
	Body       string
	ParentID   *uint
}

// CommentFilter 用于后台审核列表。
type CommentFilter struct {
	Status  string
	PostID  uint
	Page    int
	PerPage int
}

// CommentListResult aggregates paginated comments.
type CommentListResult struct {
	Comments   []db.Comment `json:"data"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"total_pages"`
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
}

// CommentService handles threaded, moderated comments.
type CommentService struct {
	db        *gorm.DB
	dashboard dashboardCache
}

// NewCommentService creates a CommentService instance.
func NewCommentService(gdb *gorm.DB) *CommentService {
	return &CommentService{db: gdb}
}

func (s *CommentService) WithCache(store cache.Store) *CommentService {
	s.dashboard.store = store
	return s
}

func (s *CommentService) WithLogger(log *zap.Logger) *CommentService {
	if log != nil {
		s.dashboard.log = log.Named("comments")
	}
	return s
}

// Create 新评论一律进入 pending，回复的父评论必须属于同一篇文章。
func (s *CommentService) Create(postID uint, input CommentInput) (*db.Comment, error) {
	v := &ValidationError{}
	body := validateRequired(v, "body", input.Body, 5000)
	authorName := validateMax(v, "author_name", input.AuthorName, 100)
	if input.UserID == nil && authorName == "" {
		v.Add("author_name", "is required for anonymous comments")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	comment := db.Comment{
		PostID:     postID,
		UserID:     input.UserID,
		AuthorName: authorName,
		Body:       body,
		ParentID:   input.ParentID,
		Status:     db.CommentStatusPending,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensurePostExists(tx, postID); err != nil {
			return err
		}
		if input.ParentID != nil {
			var parent db.Comment
			if err := tx.Select("id", "post_id").First(&parent, *input.ParentID).Error; err != nil {
				return firstOr(err, ErrParentNotFound)
			}
			if parent.PostID != postID {
				return NewValidationError("parent_id", "must reference a comment on the same post")
			}
		}
		return tx.Create(&comment).Error
	}); err != nil {
		return nil, err
	}

	s.invalidate()
	return &comment, nil
}

// SetStatus 修改审核状态，不会影响子回复。
func (s *CommentService) SetStatus(id uint, status string) (*db.Comment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case db.CommentStatusPending, db.CommentStatusApproved, db.CommentStatusSpam:
	default:
		return nil, NewValidationError("status", "must be pending, approved or spam")
	}

	var comment db.Comment
	if err := s.db.First(&comment, id).Error; err != nil {
		return nil, firstOr(err, ErrCommentNotFound)
	}
	if comment.Status == status {
		return &comment, nil
	}
	if status == db.CommentStatusPending {
		return nil, NewValidationError("status", "a moderated comment cannot return to pending")
	}

	if err := s.db.Model(&comment).Update("status", status).Error; err != nil {
		return nil, err
	}
	comment.Status = status
	s.invalidate()
	return &comment, nil
}

// ListApproved 返回公开评论树：只含 approved，按 created_at、id 升序；父评论未通过的回复不展示。
func (s *CommentService) ListApproved(postID uint) ([]db.Comment, error) {
	var comments []db.Comment
	if err := s.db.
		Where("post_id = ? AND status = ?", postID, db.CommentStatusApproved).
		Order("created_at asc").
		Order("id asc").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return buildCommentTree(comments), nil
}

// List 返回后台评论列表，按最新优先。
func (s *CommentService) List(filter CommentFilter) (*CommentListResult, error) {
	page, perPage := normalizePage(filter.Page, filter.PerPage)
	result := &CommentListResult{Page: page, PerPage: perPage}

	filtered := func() *gorm.DB {
		query := s.db.Model(&db.Comment{})
		if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
			query = query.Where("status = ?", status)
		}
		if filter.PostID > 0 {
			query = query.Where("post_id = ?", filter.PostID)
		}
		return query
	}
	if err := filtered().Count(&result.Total).Error; err != nil {
		return nil, err
	}

	if err := filtered().Order("created_at desc").Order("id desc").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&result.Comments).Error; err != nil {
		return nil, err
	}
	result.TotalPages = totalPages(result.Total, perPage)
	return result, nil
}

// Delete 删除评论及其全部子回复。
func (s *CommentService) Delete(id uint) error {
	var root db.Comment
	if err := s.db.Select("id", "post_id").First(&root, id).Error; err != nil {
		return firstOr(err, ErrCommentNotFound)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		subtree := []uint{root.ID}
		frontier := []uint{root.ID}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&db.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
				return err
			}
			subtree = append(subtree, children...)
			frontier = children
		}
		return tx.Where("id IN ?", subtree).Delete(&db.Comment{}).Error
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// PendingCount 用于仪表盘。
func (s *CommentService) PendingCount() (int64, error) {
	var count int64
	err := s.db.Model(&db.Comment{}).Where("status = ?", db.CommentStatusPending).Count(&count).Error
	return count, err
}

func (s *CommentService) invalidate() {
	s.dashboard.invalidate(context.Background())
}

func buildCommentTree(comments []db.Comment) []db.Comment {
	children := make(map[uint][]db.Comment)
	approved := make(map[uint]struct{}, len(comments))
	for _, comment := range comments {
		approved[comment.ID] = struct{}{}
	}

	roots := make([]db.Comment, 0)
	for _, comment := range comments {
		if comment.ParentID == nil {
			roots = append(roots, comment)
			continue
		}
		if _, ok := approved[*comment.ParentID]; ok {
			children[*comment.ParentID] = append(children[*comment.ParentID], comment)
		}
	}

	var attach func(node db.Comment) db.Comment
	attach = func(node db.Comment) db.Comment {
		replies := children[node.ID]
		node.Replies = make([]db.Comment, 0, len(replies))
		for _, reply := range replies {
			node.Replies = append(node.Replies, attach(reply))
		}
		return node
	}

	for i := range roots {
		roots[i] = attach(roots[i])
	}
	return roots
}
