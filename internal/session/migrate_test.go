package session

import (
	"context"
	"testing"
)

func TestMigrateLegacyTokens(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	legacy := []LegacyTokens{
		{DisplayCommonName: "eneco-001", AccessToken: "at-legacy", RefreshToken: "rt-legacy"},
	}

	migrated, err := MigrateLegacyTokens(ctx, store, "config-1", legacy, nil)
	if err != nil {
		t.Fatalf("MigrateLegacyTokens failed: %v", err)
	}
	if !migrated {
		t.Fatal("Expected migration to run")
	}

	sessions, _ := store.List(ctx)
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 migrated session, got %d", len(sessions))
	}
	sess := sessions[0]
	if sess.Token.RefreshToken != "rt-legacy" {
		t.Errorf("Unexpected refresh token: %s", sess.Token.RefreshToken)
	}
	if !sess.Token.Expired() {
		t.Error("Expected migrated token to be expired so it refreshes immediately")
	}
}

func TestMigrateLegacyTokens_SkipsWhenSessionExists(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Save(ctx, testSession("s1"))

	legacy := []LegacyTokens{
		{DisplayCommonName: "eneco-001", AccessToken: "at-legacy", RefreshToken: "rt-legacy"},
	}

	migrated, err := MigrateLegacyTokens(ctx, store, "config-1", legacy, nil)
	if err != nil {
		t.Fatalf("MigrateLegacyTokens failed: %v", err)
	}
	if migrated {
		t.Error("Expected migration to be skipped")
	}
}

func TestMigrateLegacyTokens_IgnoresIncompletePairs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	legacy := []LegacyTokens{
		{DisplayCommonName: "eneco-001", AccessToken: "at-only"},
		{DisplayCommonName: "eneco-002", RefreshToken: "rt-only"},
	}

	migrated, err := MigrateLegacyTokens(ctx, store, "config-1", legacy, nil)
	if err != nil {
		t.Fatalf("MigrateLegacyTokens failed: %v", err)
	}
	if migrated {
		t.Error("Expected no migration for incomplete token pairs")
	}
}
