package service

import (
	"fmt"

	"github.com/newsdesk/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Relation 标识文章的一组多对多关联。分类与标签结构相同但互相独立。
type Relation string

const (
	RelationCategories Relation = "categories"
	RelationTags       Relation = "tags"
)

func (r Relation) table() (taxonomyTable, error) {
	switch r {
	case RelationCategories:
		return categoryTable, nil
	case RelationTags:
		return tagTable, nil
	default:
		return taxonomyTable{}, fmt.Errorf("unknown relation %q", string(r))
	}
}

func (r Relation) missing() error {
	if r == RelationTags {
		return ErrTagNotFound
	}
	return ErrCategoryNotFound
}

// RelationService 维护文章与分类/标签中间表：attach、detach 与 sync。
type RelationService struct {
	db *gorm.DB
}

// NewRelationService creates a RelationService instance.
func NewRelationService(gdb *gorm.DB) *RelationService {
	return &RelationService{db: gdb}
}

// Attach 只插入尚不存在的中间表行，重复 attach 不会产生重复行。
func (s *RelationService) Attach(rel Relation, postID uint, ids []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensurePostExists(tx, postID); err != nil {
			return err
		}
		return s.attachTx(tx, rel, postID, ids)
	})
}

// Detach 只删除指定的中间表行，未关联的 id 被忽略。
func (s *RelationService) Detach(rel Relation, postID uint, ids []uint) error {
	table, err := rel.table()
	if err != nil {
		return err
	}
	ids = uniqueIDs(ids)

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensurePostExists(tx, postID); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Exec(
			fmt.Sprintf("DELETE FROM %s WHERE post_id = ? AND %s IN ?", table.pivot, table.column),
			postID, ids,
		).Error
	})
}

// Sync 在一个事务内把关联集合替换为 ids：删除多余行、插入缺失行，不动未变化的行。
func (s *RelationService) Sync(rel Relation, postID uint, ids []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensurePostExists(tx, postID); err != nil {
			return err
		}
		return s.syncTx(tx, rel, postID, ids)
	})
}

// ListCategories returns the categories of a post ordered by name then id.
func (s *RelationService) ListCategories(postID uint) ([]db.Category, error) {
	if err := ensurePostExists(s.db, postID); err != nil {
		return nil, err
	}
	var categories []db.Category
	err := categoryTable.ordered(categoryTable.linkedTo(s.db.Model(&db.Category{}), postID)).
		Find(&categories).Error
	return categories, err
}

// ListTags returns the tags of a post ordered by name then id.
func (s *RelationService) ListTags(postID uint) ([]db.Tag, error) {
	if err := ensurePostExists(s.db, postID); err != nil {
		return nil, err
	}
	var tags []db.Tag
	err := tagTable.ordered(tagTable.linkedTo(s.db.Model(&db.Tag{}), postID)).
		Find(&tags).Error
	return tags, err
}

func (s *RelationService) attachTx(tx *gorm.DB, rel Relation, postID uint, ids []uint) error {
	table, err := rel.table()
	if err != nil {
		return err
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if err := ensureAllExist(tx, table, ids, rel.missing()); err != nil {
		return err
	}

	existing, err := pivotIDs(tx, table, postID)
	if err != nil {
		return err
	}

	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			continue
		}
		rows = append(rows, map[string]interface{}{"post_id": postID, table.column: id})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Table(table.pivot).Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}

func (s *RelationService) syncTx(tx *gorm.DB, rel Relation, postID uint, ids []uint) error {
	table, err := rel.table()
	if err != nil {
		return err
	}
	ids = uniqueIDs(ids)

	if len(ids) == 0 {
		return tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE post_id = ?", table.pivot), postID).Error
	}
	if err := ensureAllExist(tx, table, ids, rel.missing()); err != nil {
		return err
	}
	if err := tx.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE post_id = ? AND %s NOT IN ?", table.pivot, table.column),
		postID, ids,
	).Error; err != nil {
		return err
	}
	return s.attachTx(tx, rel, postID, ids)
}

func pivotIDs(tx *gorm.DB, table taxonomyTable, postID uint) (map[uint]struct{}, error) {
	var current []uint
	if err := tx.Table(table.pivot).Where("post_id = ?", postID).Pluck(table.column, &current).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(current))
	for _, id := range current {
		set[id] = struct{}{}
	}
	return set, nil
}

func ensureAllExist(tx *gorm.DB, table taxonomyTable, ids []uint, missing error) error {
	var count int64
	if err := tx.Table(table.table).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return missing
	}
	return nil
}

func ensurePostExists(tx *gorm.DB, postID uint) error {
	var count int64
	if err := tx.Model(&db.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPostNotFound
	}
	return nil
}
