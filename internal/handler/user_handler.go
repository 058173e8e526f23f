package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/service"
)

type createUserRequest struct {
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role"`
}

type updateUserRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Password  *string `json:"password" binding:"omitempty,min=8"`
	Role      *string `json:"role"`
}

func (a *API) ListUsers(c *gin.Context) {
	users, err := a.users.List()
	if err != nil {
		a.respondServiceError(c, err, "获取用户列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (a *API) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := a.users.Get(id)
	if err != nil {
		a.respondServiceError(c, err, "获取用户失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateUser 管理员创建账号，角色不区分大小写。
func (a *API) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := a.users.Create(service.UserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		a.respondServiceError(c, err, "创建用户失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (a *API) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := a.users.Update(id, service.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		a.respondServiceError(c, err, "更新用户失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser 删除用户；管理员不能删除自己。
func (a *API) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := a.users.Delete(id, currentUser(c).ID); err != nil {
		a.respondServiceError(c, err, "删除用户失败")
		return
	}
	c.Status(http.StatusNoContent)
}
