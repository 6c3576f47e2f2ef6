package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreamcatchered/dreamMail/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func testMessage(uid uint32, toAddr string) *models.StoredMessage {
	return &models.StoredMessage{
		UID:        uid,
		OwnerID:    7,
		ToAddr:     toAddr,
		FromAddr:   "news@shop.example",
		Subject:    "hi",
		TextBody:   "body",
		ReceivedAt: time.Now(),
	}
}

func TestInsertMessageIfAbsentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stored, err := db.InsertMessageIfAbsent(ctx, testMessage(42, "shop@dmail.example"))
	if err != nil {
		t.Fatalf("InsertMessageIfAbsent() error = %v", err)
	}
	if !stored {
		t.Error("first insert returned false, want true")
	}

	again := testMessage(42, "shop@dmail.example")
	again.Subject = "changed"
	stored, err = db.InsertMessageIfAbsent(ctx, again)
	if err != nil {
		t.Fatalf("InsertMessageIfAbsent() second error = %v", err)
	}
	if stored {
		t.Error("second insert returned true, want false for a duplicate uid")
	}

	msg, err := db.GetMessageByUID(ctx, 42)
	if err != nil {
		t.Fatalf("GetMessageByUID() error = %v", err)
	}
	if msg.Subject != "hi" {
		t.Errorf("Subject = %q, want the original row untouched", msg.Subject)
	}
}

func TestMaxStoredUID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	uid, err := db.MaxStoredUID(ctx)
	if err != nil {
		t.Fatalf("MaxStoredUID() error = %v", err)
	}
	if uid != 0 {
		t.Errorf("MaxStoredUID() on empty store = %d, want 0", uid)
	}

	for _, u := range []uint32{5, 90, 17} {
		if _, err := db.InsertMessageIfAbsent(ctx, testMessage(u, "shop@dmail.example")); err != nil {
			t.Fatalf("insert %d: %v", u, err)
		}
	}

	uid, err = db.MaxStoredUID(ctx)
	if err != nil {
		t.Fatalf("MaxStoredUID() error = %v", err)
	}
	if uid != 90 {
		t.Errorf("MaxStoredUID() = %d, want 90", uid)
	}
}

func TestListMessagesForAddress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for uid := uint32(1); uid <= 5; uid++ {
		msg := testMessage(uid, "shop@dmail.example")
		if uid == 3 {
			msg.ToAddr = "other@dmail.example"
		}
		if uid == 5 {
			msg.HTMLBody = []byte("<p>hi</p>")
		}
		if _, err := db.InsertMessageIfAbsent(ctx, msg); err != nil {
			t.Fatalf("insert %d: %v", uid, err)
		}
	}

	messages, total, err := db.ListMessagesForAddress(ctx, "shop@dmail.example", 3, 0)
	if err != nil {
		t.Fatalf("ListMessagesForAddress() error = %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(messages) != 3 {
		t.Fatalf("page has %d messages, want 3", len(messages))
	}
	if messages[0].UID != 5 {
		t.Errorf("first uid = %d, want newest first", messages[0].UID)
	}
	if !messages[0].HasHTML {
		t.Error("HasHTML = false for a message with an html body")
	}
	if messages[1].HasHTML {
		t.Error("HasHTML = true for a plain message")
	}
}

func TestSearchMessagesForAddresses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := testMessage(1, "shop@dmail.example")
	a.Subject = "order confirmation"
	b := testMessage(2, "news@dmail.example")
	b.TextBody = "please confirm your address"
	c := testMessage(3, "news@dmail.example")
	c.Subject = "weekly digest"
	for _, msg := range []*models.StoredMessage{a, b, c} {
		if _, err := db.InsertMessageIfAbsent(ctx, msg); err != nil {
			t.Fatalf("insert %d: %v", msg.UID, err)
		}
	}

	messages, total, err := db.SearchMessagesForAddresses(ctx,
		[]string{"shop@dmail.example", "news@dmail.example"}, "confirm", 10, 0)
	if err != nil {
		t.Fatalf("SearchMessagesForAddresses() error = %v", err)
	}
	if total != 2 || len(messages) != 2 {
		t.Fatalf("got %d/%d results, want 2 matches", len(messages), total)
	}
}

func TestListUnknownMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	owned := testMessage(1, "shop@dmail.example")
	for uid := uint32(2); uid <= 4; uid++ {
		orphan := testMessage(uid, "stray@dmail.example")
		orphan.OwnerID = models.OwnerUnknown
		if _, err := db.InsertMessageIfAbsent(ctx, orphan); err != nil {
			t.Fatalf("insert %d: %v", uid, err)
		}
	}
	if _, err := db.InsertMessageIfAbsent(ctx, owned); err != nil {
		t.Fatalf("insert owned: %v", err)
	}

	messages, total, err := db.ListUnknownMessages(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListUnknownMessages() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 unattributed rows", total)
	}
	if len(messages) != 2 {
		t.Fatalf("page has %d messages, want 2", len(messages))
	}
	if messages[0].UID != 4 {
		t.Errorf("first uid = %d, want newest first", messages[0].UID)
	}
	for _, m := range messages {
		if m.UID == 1 {
			t.Error("owned message leaked into the unknown listing")
		}
	}
}

func TestDeleteMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.InsertMessageIfAbsent(ctx, testMessage(9, "shop@dmail.example")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := db.DeleteMessage(ctx, 9)
	if err != nil || !deleted {
		t.Fatalf("DeleteMessage() = %v, %v, want true, nil", deleted, err)
	}
	deleted, err = db.DeleteMessage(ctx, 9)
	if err != nil || deleted {
		t.Fatalf("second DeleteMessage() = %v, %v, want false, nil", deleted, err)
	}
	if _, err := db.GetMessageByUID(ctx, 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMessageByUID() error = %v, want ErrNotFound", err)
	}
}
