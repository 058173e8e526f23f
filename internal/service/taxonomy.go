package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/newsdesk/internal/db"
	"gorm.io/gorm"
)

// taxonomyTable 描述分类/标签这类"名称 + slug + 中间表"的实体。
type taxonomyTable struct {
	table  string
	pivot  string
	column string
}

var (
	categoryTable = taxonomyTable{table: "categories", pivot: "post_categories", column: "category_id"}
	tagTable      = taxonomyTable{table: "tags", pivot: "post_tags", column: "tag_id"}
)

// withPostCount 选出实体列并附带关联文章数；publishedOnly 时只统计已发布文章。
func (t taxonomyTable) withPostCount(query *gorm.DB, publishedOnly bool) *gorm.DB {
	postJoin := fmt.Sprintf("LEFT JOIN posts ON posts.id = %s.post_id", t.pivot)
	args := []interface{}{}
	if publishedOnly {
		postJoin += " AND posts.status = ?"
		args = append(args, db.PostStatusPublished)
	}

	return query.
		Select(fmt.Sprintf("%s.*, COUNT(DISTINCT posts.id) AS post_count", t.table)).
		Joins(fmt.Sprintf("LEFT JOIN %s ON %s.%s = %s.id", t.pivot, t.pivot, t.column, t.table)).
		Joins(postJoin, args...).
		Group(t.table + ".id")
}

// linkedTo 限定为某篇文章关联的记录。只选实体表的列，PostCount 没有对应列。
func (t taxonomyTable) linkedTo(query *gorm.DB, postID uint) *gorm.DB {
	return query.
		Select(t.table+".*").
		Joins(fmt.Sprintf("JOIN %s ON %s.%s = %s.id", t.pivot, t.pivot, t.column, t.table)).
		Where(t.pivot+".post_id = ?", postID)
}

func (t taxonomyTable) ordered(query *gorm.DB) *gorm.DB {
	return query.Order(t.table + ".name asc").Order(t.table + ".id asc")
}

// checkUnique 检查名称与 slug 是否已被其他记录占用。
func (t taxonomyTable) checkUnique(gdb *gorm.DB, name, slug string, excludeID uint, nameTaken, slugTaken error) error {
	var count int64
	query := gdb.Table(t.table).Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nameTaken
	}

	query = gdb.Table(t.table).Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return slugTaken
	}
	return nil
}

// deleteWithPivot 删除实体及其中间表记录。
func (t taxonomyTable) deleteWithPivot(gdb *gorm.DB, model interface{}, id uint, missing error) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.pivot, t.column), id).Error; err != nil {
			return err
		}
		result := tx.Delete(model, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return missing
		}
		return nil
	})
}

// taxonomyInput 校验名称并派生 slug。
func taxonomyInput(name string) (string, string, error) {
	v := &ValidationError{}
	trimmed := validateRequired(v, "name", name, 100)
	slug := db.Slugify(trimmed)
	if trimmed != "" && slug == "" {
		v.Add("name", "must contain letters or digits")
	}
	return trimmed, slug, v.Err()
}

func firstOr(err error, missing error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return missing
	}
	return err
}
