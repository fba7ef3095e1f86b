package bbolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/storefront/internal/services/storefront/storage"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestStoreSaveLoad(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cart.db"))
	defer store.Close()

	if err := store.Save(context.Background(), "cart", []byte(`{"lines":[]}`)); err != nil {
		t.Fatalf("save record: %v", err)
	}
	got, err := store.Load(context.Background(), "cart")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if string(got) != `{"lines":[]}` {
		t.Fatalf("Load = %q, want %q", got, `{"lines":[]}`)
	}
}

func TestStoreLoadNotFound(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cart.db"))
	defer store.Close()

	_, err := store.Load(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.db")
	store := openStore(t, path)
	if err := store.Save(context.Background(), "cart", []byte("v1")); err != nil {
		t.Fatalf("save record: %v", err)
	}
	if err := store.Save(context.Background(), "cart", []byte("v2")); err != nil {
		t.Fatalf("overwrite record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened := openStore(t, path)
	defer reopened.Close()
	got, err := reopened.Load(context.Background(), "cart")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("Load = %q, want %q", got, "v2")
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cart.db"))
	defer store.Close()

	if err := store.Save(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error for blank name")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Load(ctx, "cart"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if err := store.Save(context.Background(), "cart", nil); err == nil {
		t.Fatal("expected error from nil store")
	}
}
