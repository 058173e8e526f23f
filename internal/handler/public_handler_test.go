package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/newsdesk/internal/db"
)

func slugParams(slug string) gin.Params {
	return gin.Params{{Key: "slug", Value: slug}}
}

func TestShowPublishedPostRendersSanitizedHTML(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	author := createTestUser(t, gdb, "author@example.com", db.RoleAuthor)
	createTestPost(t, gdb, author.ID, "Flood Warning", "## Update\n\nStay **indoors**.<script>alert(1)</script>", db.PostStatusPublished)
	createTestPost(t, gdb, author.ID, "Embargoed", "secret", db.PostStatusDraft)

	w := serve(t, api.ShowPublishedPost, testRequest{method: http.MethodGet, target: "/", params: slugParams("flood-warning")})
	expectStatus(t, w, http.StatusOK)

	html, _ := decodeBody(t, w)["body_html"].(string)
	if !strings.Contains(html, "<h2") || !strings.Contains(html, "<strong>indoors</strong>") {
		t.Fatalf("expected rendered markdown, got %q", html)
	}
	if strings.Contains(html, "<script") {
		t.Fatalf("script tags must be stripped, got %q", html)
	}

	w = serve(t, api.ShowPublishedPost, testRequest{method: http.MethodGet, target: "/", params: slugParams("embargoed")})
	expectStatus(t, w, http.StatusNotFound)
}

func TestListPublishedPostsHidesDrafts(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	author := createTestUser(t, gdb, "author@example.com", db.RoleAuthor)
	createTestPost(t, gdb, author.ID, "Live Story", "x", db.PostStatusPublished)
	createTestPost(t, gdb, author.ID, "Draft Story", "x", db.PostStatusDraft)
	createTestPost(t, gdb, author.ID, "Old Story", "x", db.PostStatusArchived)

	w := serve(t, api.ListPublishedPosts, testRequest{method: http.MethodGet, target: "/api/v1/public/posts?status=draft"})
	expectStatus(t, w, http.StatusOK)

	data := decodeBody(t, w)["data"].([]interface{})
	if len(data) != 1 || data[0].(map[string]interface{})["slug"] != "live-story" {
		t.Fatalf("expected only the published post, got %v", data)
	}
}

func TestPublicCommentsOnlyShowApproved(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	author := createTestUser(t, gdb, "author@example.com", db.RoleAuthor)
	post := createTestPost(t, gdb, author.ID, "Town Hall", "x", db.PostStatusPublished)

	w := serve(t, api.CreatePublicComment, testRequest{
		method: http.MethodPost,
		target: "/",
		params: slugParams("town-hall"),
		body:   map[string]interface{}{"author_name": "Reader", "body": "Great coverage"},
	})
	expectStatus(t, w, http.StatusAccepted)
	created := decodeBody(t, w)["comment"].(map[string]interface{})
	if created["status"] != db.CommentStatusPending {
		t.Fatalf("new comments must start pending, got %v", created["status"])
	}

	w = serve(t, api.CreatePublicComment, testRequest{
		method: http.MethodPost,
		target: "/",
		params: slugParams("town-hall"),
		body:   map[string]interface{}{"body": "anonymous without a name"},
	})
	expectField(t, w, "author_name")

	approved := db.Comment{PostID: post.ID, AuthorName: "Editor", Body: "Thanks", Status: db.CommentStatusApproved}
	spam := db.Comment{PostID: post.ID, AuthorName: "Bot", Body: "buy now", Status: db.CommentStatusSpam}
	if err := gdb.Create(&approved).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	if err := gdb.Create(&spam).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}

	w = serve(t, api.ListPublicComments, testRequest{method: http.MethodGet, target: "/", params: slugParams("town-hall")})
	expectStatus(t, w, http.StatusOK)
	comments := decodeBody(t, w)["comments"].([]interface{})
	if len(comments) != 1 || comments[0].(map[string]interface{})["body"] != "Thanks" {
		t.Fatalf("expected only the approved comment, got %v", comments)
	}
}

func TestRecordPublicViewCountsEveryRequest(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	author := createTestUser(t, gdb, "author@example.com", db.RoleAuthor)
	reader := createTestUser(t, gdb, "reader@example.com", db.RoleViewer)
	post := createTestPost(t, gdb, author.ID, "Budget Day", "x", db.PostStatusPublished)

	for _, user := range []*db.User{reader, reader, nil} {
		w := serve(t, api.RecordPublicView, testRequest{method: http.MethodPost, target: "/", params: slugParams("budget-day"), user: user})
		expectStatus(t, w, http.StatusNoContent)
	}

	w := serve(t, api.PostViews, testRequest{method: http.MethodGet, target: "/", params: idParams(post.ID), user: author})
	expectStatus(t, w, http.StatusOK)
	if views := decodeBody(t, w)["views"]; views != float64(3) {
		t.Fatalf("expected 3 views, got %v", views)
	}

	var attributed int64
	gdb.Model(&db.PostView{}).Where("user_id = ?", reader.ID).Count(&attributed)
	if attributed != 2 {
		t.Fatalf("expected 2 views attributed to the reader, got %d", attributed)
	}
}

func TestCategoryPostsAndBreakingNewsFallback(t *testing.T) {
	api, gdb := setupTestAPI(t, nil)
	author := createTestUser(t, gdb, "author@example.com", db.RoleAuthor)
	breaking := db.Category{Name: "Breaking News", Slug: "breaking-news"}
	if err := gdb.Create(&breaking).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	live := createTestPost(t, gdb, author.ID, "Quake Hits Coast", "x", db.PostStatusPublished)
	draft := createTestPost(t, gdb, author.ID, "Unconfirmed Report", "x", db.PostStatusDraft)
	for _, post := range []*db.Post{live, draft} {
		if err := gdb.Create(&db.PostCategory{PostID: post.ID, CategoryID: breaking.ID}).Error; err != nil {
			t.Fatalf("attach category: %v", err)
		}
	}

	w := serve(t, api.CategoryPosts, testRequest{method: http.MethodGet, target: "/", params: slugParams("breaking-news")})
	expectStatus(t, w, http.StatusOK)
	body := decodeBody(t, w)
	if body["total"] != float64(1) {
		t.Fatalf("expected one published post in category, got %v", body)
	}

	w = serve(t, api.CategoryPosts, testRequest{method: http.MethodGet, target: "/", params: slugParams("missing")})
	expectStatus(t, w, http.StatusNotFound)

	w = serve(t, api.ListPublicCategories, testRequest{method: http.MethodGet, target: "/"})
	expectStatus(t, w, http.StatusOK)
	categories := decodeBody(t, w)["categories"].([]interface{})
	if len(categories) != 1 || categories[0].(map[string]interface{})["post_count"] != float64(1) {
		t.Fatalf("public post_count should ignore drafts, got %v", categories)
	}

	w = serve(t, api.BreakingNewsHeadlines, testRequest{method: http.MethodGet, target: "/"})
	expectStatus(t, w, http.StatusOK)
	headlines := decodeBody(t, w)["headlines"].([]interface{})
	if len(headlines) != 1 || headlines[0].(map[string]interface{})["title"] != "Quake Hits Coast" {
		t.Fatalf("expected fallback headline from category, got %v", headlines)
	}
}
