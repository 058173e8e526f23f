package service

import (
	"errors"
	"testing"

	"github.com/newsdesk/internal/db"
)

func TestCommentServicePublicListingOnlyShowsApproved(t *testing.T) {
	gdb := setupServiceTestDB(t, "comment-public")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	reader := seedUser(t, gdb, "reader@example.com", db.RoleViewer)
	post := seedPost(t, gdb, author.ID, "Commented", db.PostStatusPublished)
	svc := NewCommentService(gdb)

	approved, err := svc.Create(post.ID, CommentInput{UserID: &reader.ID, Body: "Great piece"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if approved.Status != db.CommentStatusPending {
		t.Fatalf("new comments must start pending, got %s", approved.Status)
	}
	pending, err := svc.Create(post.ID, CommentInput{AuthorName: "Anon", Body: "Waiting"})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	spam, err := svc.Create(post.ID, CommentInput{AuthorName: "Bot", Body: "Buy now"})
	if err != nil {
		t.Fatalf("create spam: %v", err)
	}

	listed, err := svc.ListApproved(post.ID)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no visible comments before moderation, got %d", len(listed))
	}

	if _, err := svc.SetStatus(approved.ID, "Approved"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.SetStatus(spam.ID, db.CommentStatusSpam); err != nil {
		t.Fatalf("mark spam: %v", err)
	}

	listed, err = svc.ListApproved(post.ID)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != approved.ID {
		t.Fatalf("expected only the approved comment, got %+v", listed)
	}
	for _, comment := range listed {
		if comment.ID == pending.ID || comment.ID == spam.ID {
			t.Fatalf("pending or spam comment leaked into public listing")
		}
	}

	count, err := svc.PendingCount()
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one pending comment, got %d", count)
	}
}

func TestCommentServiceThreadsApprovedReplies(t *testing.T) {
	gdb := setupServiceTestDB(t, "comment-thread")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	post := seedPost(t, gdb, author.ID, "Threaded", db.PostStatusPublished)
	other := seedPost(t, gdb, author.ID, "Other", db.PostStatusPublished)
	svc := NewCommentService(gdb)

	root, err := svc.Create(post.ID, CommentInput{AuthorName: "A", Body: "root"})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	reply, err := svc.Create(post.ID, CommentInput{AuthorName: "B", Body: "reply", ParentID: &root.ID})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	hiddenParent, err := svc.Create(post.ID, CommentInput{AuthorName: "C", Body: "unapproved parent"})
	if err != nil {
		t.Fatalf("hidden parent: %v", err)
	}
	orphan, err := svc.Create(post.ID, CommentInput{AuthorName: "D", Body: "orphan", ParentID: &hiddenParent.ID})
	if err != nil {
		t.Fatalf("orphan: %v", err)
	}
	for _, id := range []uint{root.ID, reply.ID, orphan.ID} {
		if _, err := svc.SetStatus(id, db.CommentStatusApproved); err != nil {
			t.Fatalf("approve %d: %v", id, err)
		}
	}

	tree, err := svc.ListApproved(post.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tree) != 1 || tree[0].ID != root.ID {
		t.Fatalf("expected single root, got %+v", tree)
	}
	if len(tree[0].Replies) != 1 || tree[0].Replies[0].ID != reply.ID {
		t.Fatalf("expected nested reply, got %+v", tree[0].Replies)
	}

	if _, err := svc.Create(other.ID, CommentInput{AuthorName: "E", Body: "cross-post", ParentID: &root.ID}); err == nil {
		t.Fatalf("expected reply across posts to be rejected")
	} else {
		assertValidationField(t, err, "parent_id")
	}
	missing := uint(9999)
	if _, err := svc.Create(post.ID, CommentInput{AuthorName: "F", Body: "x", ParentID: &missing}); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}

	if err := svc.Delete(root.ID); err != nil {
		t.Fatalf("delete root: %v", err)
	}
	var remaining int64
	gdb.Model(&db.Comment{}).Where("id IN ?", []uint{root.ID, reply.ID}).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("expected subtree removed, %d left", remaining)
	}
}

func TestCommentServiceValidation(t *testing.T) {
	gdb := setupServiceTestDB(t, "comment-validate")
	author := seedUser(t, gdb, "author@example.com", db.RoleAuthor)
	post := seedPost(t, gdb, author.ID, "Validation", db.PostStatusPublished)
	svc := NewCommentService(gdb)

	_, err := svc.Create(post.ID, CommentInput{Body: "no name"})
	assertValidationField(t, err, "author_name")

	_, err = svc.Create(post.ID, CommentInput{AuthorName: "X", Body: "  "})
	assertValidationField(t, err, "body")

	if _, err := svc.Create(12345, CommentInput{AuthorName: "X", Body: "y"}); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}

	comment, err := svc.Create(post.ID, CommentInput{AuthorName: "X", Body: "y"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.SetStatus(comment.ID, "deleted")
	assertValidationField(t, err, "status")

	if _, err := svc.SetStatus(comment.ID, db.CommentStatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = svc.SetStatus(comment.ID, db.CommentStatusPending)
	assertValidationField(t, err, "status")
}
