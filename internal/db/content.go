package db

import (
	"time"

	"gorm.io/datatypes"
)

// 媒体类型与子类型
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"

	MediaSubtypeFeatured  = "featured"
	MediaSubtypeSecondary = "secondary"
	MediaSubtypeGallery   = "gallery"
)

// Media 是挂在文章上的有序附件。Order 在同一篇文章内构成稠密序列。
type Media struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Subtype   string    `gorm:"size:16;index;not null" json:"subtype"`
	URL       string    `gorm:"size:1024;not null" json:"url"`
	AltText   string    `gorm:"size:255" json:"alt_text"`
	Order     int       `gorm:"column:display_order;not null;default:0" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Media) TableName() string {
	return "media"
}

// PostRevision 记录编辑时刻文章正文的不可变快照。
type PostRevision struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PostID        uint      `gorm:"index;not null" json:"post_id"`
	EditorID      *uint     `gorm:"index" json:"editor_id"`
	Editor        *User     `gorm:"constraint:OnDelete:SET NULL" json:"editor,omitempty"`
	TitleSnapshot string    `gorm:"size:255" json:"title_snapshot"`
	BodySnapshot  string    `gorm:"type:text" json:"body_snapshot"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// 评论审核状态
const (
	CommentStatusPending  = "pending"
	CommentStatusApproved = "approved"
	CommentStatusSpam     = "spam"
)

// Comment 支持自引用的楼中楼回复。
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"index;not null" json:"post_id"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	User       *User     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	AuthorName string    `gorm:"size:100" json:"author_name"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	ParentID   *uint     `gorm:"index" json:"parent_id"`
	Replies    []Comment `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"replies,omitempty"`
	Status     string    `gorm:"size:16;index;not null;default:pending" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostView 是只追加的浏览事件。
type PostView struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PostID   uint      `gorm:"index;not null" json:"post_id"`
	UserID   *uint     `gorm:"index" json:"user_id"`
	ViewedAt time.Time `gorm:"index;not null" json:"viewed_at"`
}

// Attachment 是不绑定文章的通用上传记录。
type Attachment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    *uint          `gorm:"index" json:"user_id"`
	Type      string         `gorm:"size:32;not null" json:"type"`
	URL       string         `gorm:"size:1024;not null" json:"url"`
	ObjectKey string         `gorm:"size:512" json:"-"`
	Metadata  datatypes.JSON `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
