package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/service"
	"go.uber.org/zap"
)

const (
	currentUserKey  = "newsdesk.user"
	currentTokenKey = "newsdesk.token_id"
)

// staffRoles 可以访问后台接口；viewer 只能管理自己的登录状态。
var staffRoles = []string{db.RoleAuthor, db.RoleEditor, db.RoleAdmin}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// RequireAuth 校验 Bearer 令牌，并把当前用户与令牌 id 放进请求上下文。
func (a *API) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		plain := bearerToken(c)
		if plain == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		user, token, err := a.auth.Authenticate(plain, time.Now())
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			a.log.Error("authenticate token failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "认证失败"})
			return
		}

		c.Set(currentUserKey, user)
		c.Set(currentTokenKey, token.ID)
		c.Next()
	}
}

// OptionalAuth 在携带有效令牌时识别用户，令牌缺失或无效时按匿名处理。
func (a *API) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if plain := bearerToken(c); plain != "" {
			if user, token, err := a.auth.Authenticate(plain, time.Now()); err == nil {
				c.Set(currentUserKey, user)
				c.Set(currentTokenKey, token.ID)
			}
		}
		c.Next()
	}
}

// RequireRole 必须在 RequireAuth 之后使用，角色比较不区分大小写。
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !user.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RequireStaff 允许作者、编辑与管理员。
func RequireStaff() gin.HandlerFunc {
	return RequireRole(staffRoles...)
}

func currentUser(c *gin.Context) *db.User {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*db.User)
	return user
}

func currentUserID(c *gin.Context) *uint {
	if user := currentUser(c); user != nil {
		id := user.ID
		return &id
	}
	return nil
}

func currentTokenID(c *gin.Context) uint {
	return c.GetUint(currentTokenKey)
}
