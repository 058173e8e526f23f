package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/newsdesk/internal/service"
	"go.uber.org/zap"
)

var registerTagNames sync.Once

// useJSONFieldNames 让 validator 的字段名与请求体的 json 键一致。
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondFields(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": fields})
}

// respondServiceError 将服务层错误映射为状态码；未识别的错误记录日志并返回 500。
func (a *API) respondServiceError(c *gin.Context, err error, fallback string) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		respondFields(c, validation.Fields)
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAIAPIKeyMissing), errors.Is(err, service.ErrStorageUnavailable):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrAIUpstream), errors.Is(err, service.ErrSuggestionEmpty):
		respondError(c, http.StatusBadGateway, err.Error())
	default:
		a.log.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		c.Error(err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

// bindJSON 解析请求体。格式错误返回 400，binding 规则不满足返回 422 与逐字段信息。
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = describeRule(fe)
		}
		respondFields(c, fields)
		return false
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		respondFields(c, map[string]string{typeErr.Field: "has the wrong type"})
	case errors.As(err, &syntaxErr):
		respondError(c, http.StatusBadRequest, "malformed JSON body")
	default:
		respondError(c, http.StatusBadRequest, "invalid request body")
	}
	return false
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "dive", "gt":
		return "contains an invalid value"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// idParam 解析路径中的 id，失败时已写出 400。
func idParam(c *gin.Context, key string) (uint, bool) {
	id, err := parseUintParam(c, key)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseUintQuery(value string) uint {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0
	}
	return uint(parsed)
}
