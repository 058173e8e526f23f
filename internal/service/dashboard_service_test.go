package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newsdesk/internal/cache"
	"github.com/newsdesk/internal/db"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDashboardServiceSummaryIsCachedUntilInvalidated(t *testing.T) {
	gdb := setupServiceTestDB(t, "dashboard")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	seedCategory(t, gdb, "World")
	seedTag(t, gdb, "economy")
	published := seedPost(t, gdb, author.ID, "Live", db.PostStatusPublished)
	seedPost(t, gdb, author.ID, "Pending draft", db.PostStatusDraft)

	store := cache.NewMemoryStore("test:")
	comments := NewCommentService(gdb).WithCache(store)
	if _, err := comments.Create(published.ID, CommentInput{AuthorName: "Reader", Body: "first"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := NewAnalyticsService(gdb).RecordView(published.ID, nil, time.Now()); err != nil {
		t.Fatalf("view: %v", err)
	}

	svc := NewDashboardService(gdb, store, time.Minute)
	ctx := context.Background()
	summary, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.PostsByStatus[db.PostStatusPublished] != 1 || summary.PostsByStatus[db.PostStatusDraft] != 1 || summary.PostsByStatus[db.PostStatusArchived] != 0 {
		t.Fatalf("unexpected posts by status %+v", summary.PostsByStatus)
	}
	if summary.PendingComments != 1 || summary.Categories != 1 || summary.Tags != 1 || summary.Users != 1 || summary.TotalViews != 1 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if len(summary.TopPosts) != 1 || summary.TopPosts[0].PostID != published.ID {
		t.Fatalf("unexpected top posts %+v", summary.TopPosts)
	}

	seedTag(t, gdb, "politics")
	cached, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if cached.Tags != 1 {
		t.Fatalf("expected cached summary, got tags=%d", cached.Tags)
	}

	if _, err := comments.Create(published.ID, CommentInput{AuthorName: "Reader", Body: "second"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	fresh, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("fresh summary: %v", err)
	}
	if fresh.Tags != 2 || fresh.PendingComments != 2 {
		t.Fatalf("expected recomputed summary after comment write, got %+v", fresh)
	}
}

func TestDashboardInvalidatedByTaxonomyAndUserWrites(t *testing.T) {
	gdb := setupServiceTestDB(t, "dashboard-writes")
	admin := seedUser(t, gdb, "admin@example.com", db.RoleAdmin)
	store := cache.NewMemoryStore("test:")
	svc := NewDashboardService(gdb, store, time.Hour)
	categories := NewCategoryService(gdb).WithCache(store)
	tags := NewTagService(gdb).WithCache(store)
	users := NewUserService(gdb).WithCache(store)
	ctx := context.Background()

	summary := func() *DashboardSummary {
		t.Helper()
		out, err := svc.Summary(ctx)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		return out
	}
	summary()

	category, err := categories.Create(CategoryInput{Name: "World"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if got := summary().Categories; got != 1 {
		t.Fatalf("category create should refresh the dashboard, got %d", got)
	}

	if _, err := tags.Create("economy"); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if got := summary().Tags; got != 1 {
		t.Fatalf("tag create should refresh the dashboard, got %d", got)
	}

	editor, err := users.Create(UserInput{Email: "editor@example.com", Password: "password123", Role: db.RoleEditor})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if got := summary().Users; got != 2 {
		t.Fatalf("user create should refresh the dashboard, got %d", got)
	}

	auth := NewAuthService(gdb).WithUsers(users)
	if _, err := auth.Register(UserInput{Email: "reader@example.com", Password: "password123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := summary().Users; got != 3 {
		t.Fatalf("registration should refresh the dashboard, got %d", got)
	}

	if err := users.Delete(editor.ID, admin.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := categories.Delete(category.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if got := summary(); got.Users != 2 || got.Categories != 0 {
		t.Fatalf("deletes should refresh the dashboard, got %+v", got)
	}
}

type unreachableCache struct {
	cache.Store
}

func (unreachableCache) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func TestCommentWriteLogsCacheInvalidationFailure(t *testing.T) {
	gdb := setupServiceTestDB(t, "dashboard-cache-down")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	post := seedPost(t, gdb, author.ID, "Live", db.PostStatusPublished)

	core, logs := observer.New(zap.WarnLevel)
	comments := NewCommentService(gdb).
		WithCache(unreachableCache{Store: cache.NewMemoryStore("test:")}).
		WithLogger(zap.New(core))

	comment, err := comments.Create(post.ID, CommentInput{AuthorName: "Reader", Body: "hello"})
	if err != nil {
		t.Fatalf("cache failures must not fail the write: %v", err)
	}
	if _, err := comments.SetStatus(comment.ID, db.CommentStatusApproved); err != nil {
		t.Fatalf("set status: %v", err)
	}

	if got := logs.FilterMessage("invalidate dashboard cache failed").Len(); got != 2 {
		t.Fatalf("expected a warning per write, got %d", got)
	}
}
