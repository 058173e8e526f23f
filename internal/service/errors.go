package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 通用错误类别，具体的哨兵错误通过 %w 包装它们，handler 据此映射状态码。
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthenticated")
	ErrForbidden    = errors.New("forbidden")

	ErrStorageUnavailable   = errors.New("object storage is not configured")
	ErrStoredObjectNotFound = notFound("stored object")
)

func notFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

func conflict(what string) error {
	return fmt.Errorf("%s: %w", what, ErrConflict)
}

// ValidationError 携带逐字段的校验信息。
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for a field, keeping the first one reported.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Err 在没有字段错误时返回 nil。
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func validateRequired(v *ValidationError, field, value string, maxRunes int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		v.Add(field, "is required")
		return trimmed
	}
	if maxRunes > 0 && len([]rune(trimmed)) > maxRunes {
		v.Add(field, fmt.Sprintf("must be at most %d characters", maxRunes))
	}
	return trimmed
}

func validateMax(v *ValidationError, field, value string, maxRunes int) string {
	trimmed := strings.TrimSpace(value)
	if maxRunes > 0 && len([]rune(trimmed)) > maxRunes {
		v.Add(field, fmt.Sprintf("must be at most %d characters", maxRunes))
	}
	return trimmed
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizePage(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func totalPages(total int64, perPage int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
