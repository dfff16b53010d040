// Package storetest provides conformance checks shared by every store backend.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skhoolar/skhoolar/internal/store"
)

// TestKeyStore exercises the KeyStore contract: absence, insert-if-absent,
// and a single winner under concurrent first writes.
func TestKeyStore(t *testing.T, ks store.KeyStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := ks.GetKey(ctx, store.EncryptionKeyName); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetKey on empty store: err = %v, want ErrNotFound", err)
	}

	first := []byte(`{"kty":"oct","k":"first"}`)
	got, err := ks.CreateKey(ctx, store.EncryptionKeyName, first)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Fatalf("CreateKey returned %q, want %q", got, first)
	}

	// A second create must not overwrite the first descriptor.
	got, err = ks.CreateKey(ctx, store.EncryptionKeyName, []byte(`{"kty":"oct","k":"second"}`))
	if err != nil {
		t.Fatalf("second CreateKey: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("second CreateKey returned %q, want existing %q", got, first)
	}

	stored, err := ks.GetKey(ctx, store.EncryptionKeyName)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(stored, first) {
		t.Errorf("GetKey = %q, want %q", stored, first)
	}

	// Concurrent first writers on a fresh name all observe the same winner.
	const writers = 8
	var wg sync.WaitGroup
	results := make([][]byte, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			desc := []byte{'k', byte('0' + i)}
			results[i], errs[i] = ks.CreateKey(ctx, "race_key", desc)
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent CreateKey %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], results[0]) {
			t.Errorf("writer %d saw %q, writer 0 saw %q", i, results[i], results[0])
		}
	}
}

// TestBlobStore exercises the BlobStore contract: absence, overwrite,
// presence checks, and idempotent delete.
func TestBlobStore(t *testing.T, bs store.BlobStore) {
	t.Helper()
	ctx := context.Background()
	name := store.CredentialBlobName

	if _, err := bs.GetBlob(ctx, name); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetBlob on empty store: err = %v, want ErrNotFound", err)
	}
	if ok, err := bs.HasBlob(ctx, name); err != nil || ok {
		t.Fatalf("HasBlob on empty store = %v, %v; want false, nil", ok, err)
	}

	if err := bs.PutBlob(ctx, name, "blob-one"); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if err := bs.PutBlob(ctx, name, "blob-two"); err != nil {
		t.Fatalf("PutBlob overwrite: %v", err)
	}

	got, err := bs.GetBlob(ctx, name)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if got != "blob-two" {
		t.Errorf("GetBlob = %q, want %q", got, "blob-two")
	}
	if ok, err := bs.HasBlob(ctx, name); err != nil || !ok {
		t.Errorf("HasBlob = %v, %v; want true, nil", ok, err)
	}

	if err := bs.DeleteBlob(ctx, name); err != nil {
		t.Fatalf("DeleteBlob: %v", err)
	}
	if err := bs.DeleteBlob(ctx, name); err != nil {
		t.Fatalf("second DeleteBlob: %v", err)
	}
	if ok, err := bs.HasBlob(ctx, name); err != nil || ok {
		t.Errorf("HasBlob after delete = %v, %v; want false, nil", ok, err)
	}
	if _, err := bs.GetBlob(ctx, name); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetBlob after delete: err = %v, want ErrNotFound", err)
	}
}
