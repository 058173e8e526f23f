package service

import (
	"github.com/newsdesk/internal/db"
	"gorm.io/gorm"
)

var ErrRevisionNotFound = notFound("post revision")

// RevisionService 提供文章修订快照的显式创建与查询，不提供修改或删除。
type RevisionService struct {
	db *gorm.DB
}

// NewRevisionService creates a RevisionService instance.
func NewRevisionService(gdb *gorm.DB) *RevisionService {
	return &RevisionService{db: gdb}
}

// Create 以文章当前的标题与正文生成一条快照。
func (s *RevisionService) Create(postID, editorID uint) (*db.PostRevision, error) {
	var created *db.PostRevision
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var post db.Post
		if err := tx.First(&post, postID).Error; err != nil {
			return firstOr(err, ErrPostNotFound)
		}
		revision, err := snapshotRevision(tx, post, editorID)
		created = revision
		return err
	}); err != nil {
		return nil, err
	}
	return s.Get(created.ID)
}

// ListByPost returns revisions newest first.
func (s *RevisionService) ListByPost(postID uint) ([]db.PostRevision, error) {
	if err := ensurePostExists(s.db, postID); err != nil {
		return nil, err
	}
	var revisions []db.PostRevision
	if err := s.db.Preload("Editor").
		Where("post_id = ?", postID).
		Order("created_at desc").
		Order("id desc").
		Find(&revisions).Error; err != nil {
		return nil, err
	}
	return revisions, nil
}

func (s *RevisionService) Get(id uint) (*db.PostRevision, error) {
	var revision db.PostRevision
	if err := s.db.Preload("Editor").First(&revision, id).Error; err != nil {
		return nil, firstOr(err, ErrRevisionNotFound)
	}
	return &revision, nil
}
