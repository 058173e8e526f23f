package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/service"
)

type registerRequest struct {
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	DeviceName string `json:"device_name" binding:"max=100"`
}

// Register 注册 viewer 账号。
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := a.auth.Register(service.UserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		a.respondServiceError(c, err, "注册失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login 校验邮箱密码并签发 Bearer 令牌，同一 IP 的尝试次数受限。
func (a *API) Login(c *gin.Context) {
	if !a.limiter.Allow(c.ClientIP()) {
		a.observeLogin("throttled")
		c.Header("Retry-After", "60")
		respondError(c, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	issued, err := a.auth.Login(req.Email, req.Password, req.DeviceName, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			a.observeLogin("failure")
		}
		a.respondServiceError(c, err, "登录失败")
		return
	}

	a.observeLogin("success")
	c.JSON(http.StatusOK, issued)
}

// Logout 删除当前请求使用的令牌。
func (a *API) Logout(c *gin.Context) {
	if err := a.auth.Logout(currentTokenID(c)); err != nil {
		a.respondServiceError(c, err, "退出登录失败")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me 返回当前用户。
func (a *API) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (a *API) observeLogin(outcome string) {
	if a.logins != nil {
		a.logins.ObserveLogin(outcome)
	}
}
