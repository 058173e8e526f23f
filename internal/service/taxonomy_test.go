package service

import (
	"errors"
	"testing"

	"github.com/newsdesk/internal/db"
)

func TestCategoryServiceRenameRecomputesSlug(t *testing.T) {
	gdb := setupServiceTestDB(t, "category-rename")
	svc := NewCategoryService(gdb)

	category, err := svc.Create(CategoryInput{Name: "Breaking News!"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if category.Slug != "breaking-news" {
		t.Fatalf("expected slug breaking-news, got %q", category.Slug)
	}

	renamed, err := svc.Update(category.ID, CategoryInput{Name: "Top Stories"})
	if err != nil {
		t.Fatalf("rename category: %v", err)
	}
	if renamed.Slug != "top-stories" {
		t.Fatalf("expected slug top-stories, got %q", renamed.Slug)
	}

	if _, err := svc.GetBySlug("breaking-news"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("old slug should no longer resolve, got %v", err)
	}
	found, err := svc.GetBySlug("top-stories")
	if err != nil {
		t.Fatalf("lookup by new slug: %v", err)
	}
	if found.ID != category.ID {
		t.Fatalf("expected category %d, got %d", category.ID, found.ID)
	}
}

func TestCategoryServiceRejectsDuplicates(t *testing.T) {
	gdb := setupServiceTestDB(t, "category-dup")
	svc := NewCategoryService(gdb)

	if _, err := svc.Create(CategoryInput{Name: "World"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(CategoryInput{Name: "world"}); !errors.Is(err, ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists for case-insensitive duplicate, got %v", err)
	}
	if _, err := svc.Create(CategoryInput{Name: "World?"}); !errors.Is(err, ErrCategorySlugTaken) {
		t.Fatalf("expected ErrCategorySlugTaken, got %v", err)
	}
	if !errors.Is(ErrCategorySlugTaken, ErrConflict) {
		t.Fatalf("slug conflicts must wrap ErrConflict")
	}

	_, err := svc.Create(CategoryInput{Name: "   "})
	assertValidationField(t, err, "name")
	_, err = svc.Create(CategoryInput{Name: "!!!"})
	assertValidationField(t, err, "name")
}

func TestCategoryServiceListCountsPosts(t *testing.T) {
	gdb := setupServiceTestDB(t, "category-count")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	world := seedCategory(t, gdb, "World")
	empty := seedCategory(t, gdb, "Arts")

	published := seedPost(t, gdb, author.ID, "Published", db.PostStatusPublished)
	draft := seedPost(t, gdb, author.ID, "Draft", db.PostStatusDraft)
	relations := NewRelationService(gdb)
	for _, post := range []db.Post{published, draft} {
		if err := relations.Attach(RelationCategories, post.ID, []uint{world.ID}); err != nil {
			t.Fatalf("attach: %v", err)
		}
	}

	svc := NewCategoryService(gdb)
	all, err := svc.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != empty.ID || all[1].ID != world.ID {
		t.Fatalf("expected Arts then World, got %+v", all)
	}
	if all[0].PostCount != 0 || all[1].PostCount != 2 {
		t.Fatalf("unexpected post counts %d/%d", all[0].PostCount, all[1].PostCount)
	}

	public, err := svc.PublishedUsage()
	if err != nil {
		t.Fatalf("published usage: %v", err)
	}
	if public[1].PostCount != 1 {
		t.Fatalf("expected only the published post to count, got %d", public[1].PostCount)
	}
}

func TestCategoryServiceDeleteDetachesPosts(t *testing.T) {
	gdb := setupServiceTestDB(t, "category-delete")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	post := seedPost(t, gdb, author.ID, "Attached", db.PostStatusDraft)
	world := seedCategory(t, gdb, "World")
	if err := NewRelationService(gdb).Attach(RelationCategories, post.ID, []uint{world.ID}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	svc := NewCategoryService(gdb)
	if err := svc.Delete(world.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := attachedCategoryIDs(t, gdb, post.ID); len(got) != 0 {
		t.Fatalf("expected pivot rows removed, got %v", got)
	}
	if err := svc.Delete(world.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound on second delete, got %v", err)
	}
}

func TestTagServiceCreateAndRename(t *testing.T) {
	gdb := setupServiceTestDB(t, "tag-rename")
	svc := NewTagService(gdb)

	tag, err := svc.Create("  Élection 2024 ")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if tag.Name != "Élection 2024" || tag.Slug != "election-2024" {
		t.Fatalf("unexpected tag %+v", tag)
	}

	other, err := svc.Create("Economy")
	if err != nil {
		t.Fatalf("create second tag: %v", err)
	}
	if _, err := svc.Create("economy"); !errors.Is(err, ErrTagExists) {
		t.Fatalf("expected ErrTagExists, got %v", err)
	}
	if _, err := svc.Update(other.ID, "Election 2024"); !errors.Is(err, ErrTagSlugTaken) {
		t.Fatalf("expected rename onto an existing slug to conflict, got %v", err)
	}

	renamed, err := svc.Update(tag.ID, "Vote Count")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Slug != "vote-count" {
		t.Fatalf("expected vote-count, got %q", renamed.Slug)
	}
	if _, err := svc.Update(9999, "Anything"); !errors.Is(err, ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}
