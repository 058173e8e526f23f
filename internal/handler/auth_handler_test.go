package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/config"
	"github.com/newsdesk/internal/db"
)

func authTestEngine(api *API) *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", api.Register)
	r.POST("/auth/login", api.Login)

	authed := r.Group("", api.RequireAuth())
	authed.GET("/auth/me", api.Me)
	authed.POST("/auth/logout", api.Logout)
	authed.GET("/admin-only", RequireRole(db.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doJSON(r http.Handler, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginAndMe(t *testing.T) {
	api, _ := setupTestAPI(t, nil)
	r := authTestEngine(api)

	w := doJSON(r, http.MethodPost, "/auth/register", "", map[string]string{
		"first_name": "Ada",
		"email":      "Reader@Example.com",
		"password":   "password123",
	})
	expectStatus(t, w, http.StatusCreated)

	w = doJSON(r, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	})
	expectStatus(t, w, http.StatusConflict)

	w = doJSON(r, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "reader@example.com",
		"password": "wrong-password",
	})
	expectStatus(t, w, http.StatusUnauthorized)

	w = doJSON(r, http.MethodPost, "/auth/login", "", map[string]string{
		"email":       "reader@example.com",
		"password":    "password123",
		"device_name": "laptop",
	})
	expectStatus(t, w, http.StatusOK)
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatalf("expected token in login response: %s", w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/auth/me", token, nil)
	expectStatus(t, w, http.StatusOK)
	user := decodeBody(t, w)["user"].(map[string]interface{})
	if user["email"] != "reader@example.com" || user["role"] != db.RoleViewer {
		t.Fatalf("unexpected user %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}

	w = doJSON(r, http.MethodGet, "/admin-only", token, nil)
	expectStatus(t, w, http.StatusForbidden)

	w = doJSON(r, http.MethodPost, "/auth/logout", token, nil)
	expectStatus(t, w, http.StatusNoContent)

	w = doJSON(r, http.MethodGet, "/auth/me", token, nil)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestRequireAuthRejectsMissingAndExpiredTokens(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	r := authTestEngine(api)

	expectStatus(t, doJSON(r, http.MethodGet, "/auth/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, doJSON(r, http.MethodGet, "/auth/me", "1|deadbeef", nil), http.StatusUnauthorized)

	admin := createTestUser(t, gdb, "admin@example.com", "ADMIN")
	issued, err := api.auth.IssueToken(admin, "old", time.Now().Add(-3*24*time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	w := doJSON(r, http.MethodGet, "/auth/me", issued.PlainText, nil)
	expectStatus(t, w, http.StatusUnauthorized)

	var remaining int64
	gdb.Model(&db.AccessToken{}).Where("id = ?", issued.Token.ID).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("expired token should be deleted")
	}

	fresh := issueToken(t, api, admin)
	expectStatus(t, doJSON(r, http.MethodGet, "/admin-only", fresh, nil), http.StatusOK)
}

func TestLoginIsThrottledPerClient(t *testing.T) {
	api, gdb := setupTestAPI(t, func(cfg *config.AppConfig) {
		cfg.Auth.LoginPerMinute = 2
	})
	createTestUser(t, gdb, "editor@example.com", db.RoleEditor)
	r := authTestEngine(api)

	body := map[string]string{"email": "editor@example.com", "password": "nope-nope"}
	expectStatus(t, doJSON(r, http.MethodPost, "/auth/login", "", body), http.StatusUnauthorized)
	expectStatus(t, doJSON(r, http.MethodPost, "/auth/login", "", body), http.StatusUnauthorized)

	w := doJSON(r, http.MethodPost, "/auth/login", "", body)
	expectStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRegisterValidation(t *testing.T) {
	api, _ := setupTestAPI(t, nil)
	r := authTestEngine(api)

	w := doJSON(r, http.MethodPost, "/auth/register", "", map[string]string{"email": "not-an-email", "password": "short"})
	expectStatus(t, w, http.StatusUnprocessableEntity)
	fields := decodeBody(t, w)["fields"].(map[string]interface{})
	if _, ok := fields["email"]; !ok {
		t.Fatalf("expected email field error, got %v", fields)
	}
	if _, ok := fields["password"]; !ok {
		t.Fatalf("expected password field error, got %v", fields)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}
