package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/leadfinch/contact-crawler/internal/storage"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("URL,Contact Page,Emails,Phones,Error\n")
	uri, err := store.PutObject(context.Background(), "results_ab.csv", "text/csv", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://results_ab.csv" {
		t.Fatalf("unexpected uri %s", uri)
	}

	payload[0] = 'X'
	stored, err := store.GetObject(context.Background(), "results_ab.csv")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if stored[0] != 'U' {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}

	stored[0] = 'Y'
	again, err := store.GetObject(context.Background(), "results_ab.csv")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if again[0] != 'U' {
		t.Fatalf("expected returned copy to be detached, got %q", again)
	}
}

func TestBlobStoreGetObjectNotFound(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.GetObject(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBlobStorePutObjectEmptyPath(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, err := store.PutObject(context.Background(), "", "text/csv", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty path")
	}
}
