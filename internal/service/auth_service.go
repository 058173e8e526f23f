package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newsdesk/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultTokenTTL    = 7 * 24 * time.Hour
	defaultIdleTimeout = 2 * 24 * time.Hour
	tokenSecretBytes   = 20
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrTokenInvalid       = fmt.Errorf("invalid access token: %w", ErrUnauthorized)
	ErrTokenExpired       = fmt.Errorf("access token expired: %w", ErrUnauthorized)
)

// AuthService 签发与校验 Bearer 令牌。令牌有两个独立寿命：自创建起的绝对寿命与自上次使用起的空闲寿命。
type AuthService struct {
	db          *gorm.DB
	users       *UserService
	tokenTTL    time.Duration
	idleTimeout time.Duration
}

// IssuedToken 是登录结果，PlainText 只在签发时返回一次。
type IssuedToken struct {
	PlainText string          `json:"token"`
	Token     *db.AccessToken `json:"-"`
	User      *db.User        `json:"user"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewAuthService creates an AuthService with the default 7d/2d lifetimes.
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{
		db:          gdb,
		users:       NewUserService(gdb),
		tokenTTL:    defaultTokenTTL,
		idleTimeout: defaultIdleTimeout,
	}
}

// WithLifetimes 覆盖令牌寿命，非正值保持默认。
func (s *AuthService) WithLifetimes(ttl, idle time.Duration) *AuthService {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
	if idle > 0 {
		s.idleTimeout = idle
	}
	return s
}

// WithUsers 让注册共用外部的 UserService，例如带缓存失效的实例。
func (s *AuthService) WithUsers(users *UserService) *AuthService {
	if users != nil {
		s.users = users
	}
	return s
}

// Register 创建 viewer 账号。
func (s *AuthService) Register(input UserInput) (*db.User, error) {
	input.Role = db.RoleViewer
	return s.users.Create(input)
}

// Login 校验密码并签发新令牌。
func (s *AuthService) Login(email, password, tokenName string, now time.Time) (*IssuedToken, error) {
	v := &ValidationError{}
	email = validateRequired(v, "email", db.NormalizeEmail(email), 255)
	if strings.TrimSpace(password) == "" {
		v.Add("password", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var user db.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.IssueToken(&user, tokenName, now)
}

// IssueToken 为用户生成 "<id>|<40位十六进制>" 形式的令牌，数据库只保存 sha256。
func (s *AuthService) IssueToken(user *db.User, name string, now time.Time) (*IssuedToken, error) {
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "api"
	}

	token := db.AccessToken{
		UserID:    user.ID,
		Name:      name,
		TokenHash: hashSecret(secret),
		CreatedAt: now.UTC(),
	}
	if err := s.db.Create(&token).Error; err != nil {
		return nil, err
	}

	return &IssuedToken{
		PlainText: strconv.FormatUint(uint64(token.ID), 10) + "|" + secret,
		Token:     &token,
		User:      user,
		ExpiresAt: token.CreatedAt.Add(s.tokenTTL),
	}, nil
}

// Authenticate 校验令牌：未知令牌返回 ErrTokenInvalid；超过绝对寿命或空闲寿命时删除令牌并返回
// ErrTokenExpired；否则无条件刷新 last_used_at。
func (s *AuthService) Authenticate(plain string, now time.Time) (*db.User, *db.AccessToken, error) {
	token, err := s.findToken(plain)
	if err != nil {
		return nil, nil, err
	}

	now = now.UTC()
	if s.expired(*token, now) {
		if err := s.db.Delete(&db.AccessToken{}, token.ID).Error; err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrTokenExpired
	}

	if err := s.db.Model(&db.AccessToken{}).Where("id = ?", token.ID).Update("last_used_at", now).Error; err != nil {
		return nil, nil, err
	}
	token.LastUsedAt = &now

	var user db.User
	if err := s.db.First(&user, token.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = s.db.Delete(&db.AccessToken{}, token.ID).Error
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	return &user, token, nil
}

// Logout 删除当前令牌。
func (s *AuthService) Logout(tokenID uint) error {
	return s.db.Delete(&db.AccessToken{}, tokenID).Error
}

// PruneExpired 删除所有已过期的令牌，返回删除数量。
func (s *AuthService) PruneExpired(now time.Time) (int64, error) {
	now = now.UTC()
	result := s.db.
		Where("created_at < ?", now.Add(-s.tokenTTL)).
		Or("COALESCE(last_used_at, created_at) < ?", now.Add(-s.idleTimeout)).
		Delete(&db.AccessToken{})
	return result.RowsAffected, result.Error
}

func (s *AuthService) expired(token db.AccessToken, now time.Time) bool {
	if now.Sub(token.CreatedAt) > s.tokenTTL {
		return true
	}
	return now.Sub(token.LastActivity()) > s.idleTimeout
}

func (s *AuthService) findToken(plain string) (*db.AccessToken, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return nil, ErrTokenInvalid
	}

	var token db.AccessToken
	idPart, secret, hasID := strings.Cut(plain, "|")
	if !hasID {
		if err := s.db.Where("token_hash = ?", hashSecret(plain)).First(&token).Error; err != nil {
			return nil, firstOr(err, ErrTokenInvalid)
		}
		return &token, nil
	}

	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || secret == "" {
		return nil, ErrTokenInvalid
	}
	if err := s.db.First(&token, uint(id)).Error; err != nil {
		return nil, firstOr(err, ErrTokenInvalid)
	}
	if subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hashSecret(secret))) != 1 {
		return nil, ErrTokenInvalid
	}
	return &token, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
