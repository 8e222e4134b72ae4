package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/llanen/nl.eneco.toon/pkg/model"
)

func testSession(id string) model.Session {
	return model.Session{
		ID:       id,
		ConfigID: "config-1",
		Title:    "Toon",
		Token: model.Token{
			AccessToken:  "at-" + id,
			RefreshToken: "rt-" + id,
			Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
		},
	}
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	sess := testSession("s1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ID != "s1" || got.ConfigID != "config-1" {
		t.Errorf("Unexpected session identity: %+v", got)
	}
	if got.Token.RefreshToken != "rt-s1" {
		t.Errorf("Unexpected refresh token: %s", got.Token.RefreshToken)
	}
	if !got.Token.Expiry.Equal(sess.Token.Expiry) {
		t.Errorf("Expected expiry %v, got %v", sess.Token.Expiry, got.Token.Expiry)
	}
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	sess := testSession("s1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sess.Token.AccessToken = "at-rotated"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session after replace, got %d", len(sessions))
	}
	if sessions[0].Token.AccessToken != "at-rotated" {
		t.Errorf("Expected rotated access token, got %s", sessions[0].Token.AccessToken)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, testSession("s1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Deleting a missing session should not fail: %v", err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected empty store, got %d sessions", len(sessions))
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, testSession("s1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	sessions, _ = store.List(ctx)
	if len(sessions) != 0 {
		t.Errorf("Expected empty store, got %d sessions", len(sessions))
	}
}
