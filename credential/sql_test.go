package credential

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestSQLStore(t *testing.T, name string) *SQLStore {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := NewSQLStore(db, name)
	if err != nil {
		t.Fatalf("NewSQLStore failed: %v", err)
	}
	return store
}

func TestNewSQLStore_NilDB(t *testing.T) {
	if _, err := NewSQLStore(nil, "x"); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestSQLStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t, "")

	if store.name != DefaultKey {
		t.Errorf("expected default name %s, got %s", DefaultKey, store.name)
	}

	if _, err := store.Get(ctx); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := store.Set(ctx, &oauth2.Token{AccessToken: "first", TokenType: "Bearer", Expiry: expiry}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// second Set must update the same row
	if err := store.Set(ctx, &oauth2.Token{AccessToken: "second", TokenType: "Bearer", Expiry: expiry}); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	tok, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tok.AccessToken != "second" {
		t.Errorf("expected upserted token, got %q", tok.AccessToken)
	}
	if !tok.Expiry.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, tok.Expiry)
	}

	var count int64
	store.db.Model(&credentialRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single row, got %d", count)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Get(ctx); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential after Clear, got %v", err)
	}
}

func TestSQLStore_NamedCredentialsAreIndependent(t *testing.T) {
	ctx := context.Background()
	a := newTestSQLStore(t, "a")
	b, err := NewSQLStore(a.db, "b")
	if err != nil {
		t.Fatalf("NewSQLStore failed: %v", err)
	}

	_ = a.Set(ctx, &oauth2.Token{AccessToken: "token-a"})
	_ = b.Set(ctx, &oauth2.Token{AccessToken: "token-b"})
	_ = a.Clear(ctx)

	tok, err := b.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tok.AccessToken != "token-b" {
		t.Errorf("unexpected token: %q", tok.AccessToken)
	}
}
