package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/config"
	"github.com/newsdesk/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ginOnce sync.Once

func setupTestAPI(t *testing.T, mutate func(*config.AppConfig)) (*API, *gorm.DB) {
	t.Helper()

	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared&_foreign_keys=1", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(nil, 0))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := config.AppConfig{}
	cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	cfg.Auth.IdleTimeout = 2 * 24 * time.Hour
	cfg.BreakingNews.CategorySlug = "breaking-news"
	if mutate != nil {
		mutate(&cfg)
	}

	return NewAPI(Dependencies{DB: gdb, Config: cfg}), gdb
}

func createTestUser(t *testing.T, gdb *gorm.DB, email, role string) *db.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := db.User{FirstName: "Test", LastName: role, Email: email, Password: string(hashed), Role: role}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func createTestPost(t *testing.T, gdb *gorm.DB, userID uint, title, body, status string) *db.Post {
	t.Helper()
	post := db.Post{UserID: userID, Title: title, Slug: db.Slugify(title), Body: body, Status: status}
	if status == db.PostStatusPublished {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	return &post
}

type testRequest struct {
	method string
	target string
	body   interface{}
	raw    string
	params gin.Params
	user   *db.User
}

// serve 直接调用单个 handler，user 非空时模拟已通过认证的请求。
func serve(t *testing.T, handler gin.HandlerFunc, req testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch {
	case req.raw != "":
		reader = bytes.NewReader([]byte(req.raw))
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	default:
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(req.method, req.target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = req.params
	if req.user != nil {
		c.Set(currentUserKey, req.user)
	}

	handler(c)
	c.Writer.WriteHeaderNow()
	return w
}

func idParams(id uint) gin.Params {
	return gin.Params{{Key: "id", Value: fmt.Sprint(id)}}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func expectField(t *testing.T, w *httptest.ResponseRecorder, field string) {
	t.Helper()
	expectStatus(t, w, http.StatusUnprocessableEntity)
	fields, ok := decodeBody(t, w)["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected fields in response, got %s", w.Body.String())
	}
	if _, ok := fields[field]; !ok {
		t.Fatalf("expected field %q in %v", field, fields)
	}
}

func issueToken(t *testing.T, api *API, user *db.User) string {
	t.Helper()
	issued, err := api.auth.IssueToken(user, "test", time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return issued.PlainText
}
