package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/events"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared&_foreign_keys=1", name, time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(nil, 0))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, email, role string) db.User {
	t.Helper()
	user := db.User{FirstName: "Test", LastName: "User", Email: email, Password: "not-a-real-hash", Role: role}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
	return user
}

func seedPost(t *testing.T, gdb *gorm.DB, userID uint, title, status string) db.Post {
	t.Helper()
	post := db.Post{UserID: userID, Title: title, Slug: db.Slugify(title), Body: "正文：" + title, Status: status}
	if status == db.PostStatusPublished {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	if err := gdb.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post %q: %v", title, err)
	}
	return post
}

func seedCategory(t *testing.T, gdb *gorm.DB, name string) db.Category {
	t.Helper()
	category := db.Category{Name: name, Slug: db.Slugify(name)}
	if err := gdb.Create(&category).Error; err != nil {
		t.Fatalf("failed to seed category %q: %v", name, err)
	}
	return category
}

func seedTag(t *testing.T, gdb *gorm.DB, name string) db.Tag {
	t.Helper()
	tag := db.Tag{Name: name, Slug: db.Slugify(name)}
	if err := gdb.Create(&tag).Error; err != nil {
		t.Fatalf("failed to seed tag %q: %v", name, err)
	}
	return tag
}

func assertValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields[field]; !ok {
		t.Fatalf("expected validation error on %q, got %v", field, verr.Fields)
	}
}

type fakeHTTPClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PostEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.PostEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}
