package db

import "time"

// 文章状态
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
	PostStatusArchived  = "archived"
)

// PostStatuses 列出全部合法的文章状态。
var PostStatuses = []string{PostStatusDraft, PostStatusPublished, PostStatusArchived}

// Post 定义了文章模型，是内容关系的聚合根。
type Post struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	User        *User          `json:"author,omitempty"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Slug        string         `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Body        string         `gorm:"type:text" json:"body"`
	Excerpt     string         `gorm:"size:500" json:"excerpt"`
	Status      string         `gorm:"size:16;index;not null;default:draft" json:"status"`
	PublishedAt *time.Time     `gorm:"index" json:"published_at"`
	Categories  []Category     `gorm:"many2many:post_categories;constraint:OnDelete:CASCADE" json:"categories,omitempty"`
	Tags        []Tag          `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
	Media       []Media        `gorm:"constraint:OnDelete:CASCADE" json:"media,omitempty"`
	Comments    []Comment      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Revisions   []PostRevision `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Views       []PostView     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsPublished reports whether the post is visible on the public site.
func (p Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PostCategory 是文章与分类的中间表。
type PostCategory struct {
	PostID     uint `gorm:"primaryKey"`
	CategoryID uint `gorm:"primaryKey;index"`
}

func (PostCategory) TableName() string {
	return "post_categories"
}

// PostTag 是文章与标签的中间表。
type PostTag struct {
	PostID uint `gorm:"primaryKey"`
	TagID  uint `gorm:"primaryKey;index"`
}

func (PostTag) TableName() string {
	return "post_tags"
}
