package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/db"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	ErrUserNotFound   = notFound("user")
	ErrEmailTaken     = conflict("email already registered")
	ErrUserHasPosts   = conflict("user still owns posts")
	ErrCannotSelfDrop = conflict("admins cannot delete their own account")
)

// UserInput 是创建用户时接受的字段。
type UserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

// UserUpdate 中为 nil 的字段保持不变。
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Role      *string
}

// UserService 提供后台用户管理。
type UserService struct {
	db        *gorm.DB
	dashboard dashboardCache
}

// NewUserService creates a UserService instance.
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

func (s *UserService) WithCache(store cache.Store) *UserService {
	s.dashboard.store = store
	return s
}

func (s *UserService) WithLogger(log *zap.Logger) *UserService {
	if log != nil {
		s.dashboard.log = log.Named("users")
	}
	return s
}

// List returns users ordered by id.
func (s *UserService) List() ([]db.User, error) {
	var users []db.User
	if err := s.db.Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, firstOr(err, ErrUserNotFound)
	}
	return &user, nil
}

// Create 校验字段、哈希密码并保存。角色为空时默认为 author。
func (s *UserService) Create(input UserInput) (*db.User, error) {
	v := &ValidationError{}
	email := validateEmail(v, input.Email)
	validatePassword(v, input.Password)
	role := validateRole(v, input.Role, db.RoleAuthor)
	firstName := validateMax(v, "first_name", input.FirstName, 100)
	lastName := validateMax(v, "last_name", input.LastName, 100)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.ensureEmailAvailable(email, 0); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := db.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  string(hashed),
		Role:      role,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	s.dashboard.invalidate(context.Background())
	return &user, nil
}

func (s *UserService) Update(id uint, input UserUpdate) (*db.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = validateMax(v, "first_name", *input.FirstName, 100)
	}
	if input.LastName != nil {
		updates["last_name"] = validateMax(v, "last_name", *input.LastName, 100)
	}
	if input.Email != nil {
		updates["email"] = validateEmail(v, *input.Email)
	}
	if input.Role != nil {
		updates["role"] = validateRole(v, *input.Role, "")
	}
	if input.Password != nil {
		validatePassword(v, *input.Password)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if email, ok := updates["email"].(string); ok && email != user.Email {
		if err := s.ensureEmailAvailable(email, id); err != nil {
			return nil, err
		}
	}
	if input.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hashed)
	}

	if len(updates) > 0 {
		if err := s.db.Model(&db.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(id)
}

// Delete 删除用户及其令牌；仍拥有文章的用户不可删除，管理员不能删除自己。
func (s *UserService) Delete(id, actingUserID uint) error {
	if id == actingUserID {
		return ErrCannotSelfDrop
	}
	if _, err := s.Get(id); err != nil {
		return err
	}

	var posts int64
	if err := s.db.Model(&db.Post{}).Where("user_id = ?", id).Count(&posts).Error; err != nil {
		return err
	}
	if posts > 0 {
		return ErrUserHasPosts
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&db.AccessToken{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Comment{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.PostView{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.PostRevision{}).Where("editor_id = ?", id).Update("editor_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&db.Attachment{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&db.User{}, id).Error
	})
	if err != nil {
		return err
	}
	s.dashboard.invalidate(context.Background())
	return nil
}

// Count 用于仪表盘。
func (s *UserService) Count() (int64, error) {
	var count int64
	err := s.db.Model(&db.User{}).Count(&count).Error
	return count, err
}

// EnsureAdmin 按配置引导初始管理员。
func (s *UserService) EnsureAdmin(email, password string) error {
	return db.EnsureAdmin(s.db, email, password)
}

func (s *UserService) ensureEmailAvailable(email string, excludeID uint) error {
	var count int64
	query := s.db.Model(&db.User{}).Where("email = ?", email)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return nil
}

func validateEmail(v *ValidationError, email string) string {
	normalized := validateRequired(v, "email", db.NormalizeEmail(email), 255)
	if normalized == "" {
		return normalized
	}
	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		v.Add("email", "must be a valid email address")
	}
	return normalized
}

func validatePassword(v *ValidationError, password string) {
	if len([]rune(password)) < minPasswordLength {
		v.Add("password", "must be at least 8 characters")
	}
}

func validateRole(v *ValidationError, role, fallback string) string {
	if strings.TrimSpace(role) == "" && fallback != "" {
		return fallback
	}
	normalized := db.NormalizeRole(role)
	if normalized == "" {
		v.Add("role", "must be one of author, editor, admin, viewer")
	}
	return normalized
}
