package handler

import (
	"net/http"
	"testing"

	"github.com/newsdesk/internal/db"
)

func TestCreateRevisionChecksOwnership(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	owner := createTestUser(t, gdb, "owner@example.com", db.RoleAuthor)
	other := createTestUser(t, gdb, "other@example.com", db.RoleAuthor)
	post := createTestPost(t, gdb, owner.ID, "Court Ruling", "first draft", db.PostStatusDraft)

	w := serve(t, api.CreateRevision, testRequest{method: http.MethodPost, target: "/", params: idParams(post.ID), user: other})
	expectStatus(t, w, http.StatusForbidden)

	var count int64
	if err := gdb.Model(&db.PostRevision{}).Where("post_id = ?", post.ID).Count(&count).Error; err != nil {
		t.Fatalf("count revisions: %v", err)
	}
	if count != 0 {
		t.Fatalf("forbidden request must not snapshot, got %d revisions", count)
	}

	w = serve(t, api.CreateRevision, testRequest{method: http.MethodPost, target: "/", params: idParams(post.ID), user: owner})
	expectStatus(t, w, http.StatusCreated)
	revision, ok := decodeBody(t, w)["revision"].(map[string]interface{})
	if !ok || revision["body_snapshot"] != "first draft" {
		t.Fatalf("unexpected revision %s", w.Body.String())
	}

	w = serve(t, api.CreateRevision, testRequest{method: http.MethodPost, target: "/", params: idParams(9999), user: owner})
	expectStatus(t, w, http.StatusNotFound)
}
