package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStorage(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to open sqlite storage: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close storage: %v", err)
		}
	})
	return store
}

func TestSQLiteStorage_InsertAndFind(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if err := store.InsertKey(ctx, testKey("id1", "AAAA11112222", "cs_1")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ak, err := store.FindKeyBySession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ak == nil {
		t.Fatalf("Expected to find key by session, got nil")
	}
	if ak.Key != "AAAA11112222" {
		t.Errorf("Expected key 'AAAA11112222', got %q", ak.Key)
	}
	if ak.Email != "buyer@example.com" {
		t.Errorf("Expected email to round-trip, got %q", ak.Email)
	}
	if !ak.IsActive {
		t.Errorf("Expected key to be active")
	}

	ak, err = store.FindKeyByValue(ctx, "AAAA11112222")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ak == nil || ak.StripeSessionID != "cs_1" {
		t.Errorf("Expected to find key by value")
	}

	exists, err := store.KeyValueExists(ctx, "AAAA11112222")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !exists {
		t.Errorf("Expected key to exist")
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	ak, err := store.FindKeyBySession(ctx, "cs_none")
	if err != nil {
		t.Errorf("Expected no error for missing session, got %v", err)
	}
	if ak != nil {
		t.Errorf("Expected nil for missing session, got %v", ak)
	}

	exists, err := store.KeyValueExists(ctx, "DOESNOTEXIST")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if exists {
		t.Errorf("Expected key to not exist")
	}
}

func TestSQLiteStorage_DuplicateSession(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if err := store.InsertKey(ctx, testKey("id1", "AAAA11112222", "cs_1")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := store.InsertKey(ctx, testKey("id2", "BBBB33334444", "cs_1"))
	if !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("Expected ErrDuplicateSession, got %v", err)
	}
}

func TestSQLiteStorage_DuplicateKey(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if err := store.InsertKey(ctx, testKey("id1", "AAAA11112222", "cs_1")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	err := store.InsertKey(ctx, testKey("id2", "AAAA11112222", "cs_2"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSQLiteStorage_NullableFields(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	ak := testKey("id1", "AAAA11112222", "cs_1")
	ak.Email = ""
	ak.StripeCustomerID = ""

	if err := store.InsertKey(ctx, ak); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	found, err := store.FindKeyBySession(ctx, "cs_1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found.Email != "" {
		t.Errorf("Expected empty email, got %q", found.Email)
	}
	if found.StripeCustomerID != "" {
		t.Errorf("Expected empty customer id, got %q", found.StripeCustomerID)
	}
}

func TestSQLiteStorage_Deactivate(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if err := store.InsertKey(ctx, testKey("id1", "AAAA11112222", "cs_1")); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.Deactivate(ctx, "AAAA11112222"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ak, err := store.FindKeyByValue(ctx, "AAAA11112222")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ak.IsActive {
		t.Errorf("Expected key to be inactive after Deactivate")
	}
}
