package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 用户角色，比较时忽略大小写。
const (
	RoleAuthor = "author"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Roles 列出全部合法角色。
var Roles = []string{RoleAuthor, RoleEditor, RoleAdmin, RoleViewer}

// User 定义了用户模型
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:100" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"size:16;not null;default:viewer" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRole 判断用户是否具备任一给定角色，大小写不敏感。
func (u User) HasRole(roles ...string) bool {
	current := strings.TrimSpace(u.Role)
	for _, role := range roles {
		if strings.EqualFold(current, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// DisplayName 拼接姓名，为空时回退到邮箱。
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

// NormalizeEmail 统一邮箱的大小写与空白。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeRole 统一角色的大小写，未知角色返回空字符串。
func NormalizeRole(role string) string {
	trimmed := strings.TrimSpace(role)
	for _, known := range Roles {
		if strings.EqualFold(trimmed, known) {
			return known
		}
	}
	return ""
}

// EnsureAdmin 存在性检查：若邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
func EnsureAdmin(gdb *gorm.DB, email, password string) error {
	trimmedEmail := NormalizeEmail(email)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if gdb == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return gdb.Create(&User{
			FirstName: "Site",
			LastName:  "Admin",
			Email:     trimmedEmail,
			Password:  string(hashed),
			Role:      RoleAdmin,
		}).Error
	}

	return nil
}

// AccessToken 记录签发给用户的 Bearer 令牌，只保存哈希值。
type AccessToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	User       *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name       string     `gorm:"size:100" json:"name"`
	TokenHash  string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// LastActivity 返回最近一次使用时间，从未使用时回退到创建时间。
func (t AccessToken) LastActivity() time.Time {
	if t.LastUsedAt != nil && !t.LastUsedAt.IsZero() {
		return *t.LastUsedAt
	}
	return t.CreatedAt
}
