package vault

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skhoolar/skhoolar/internal/store"
	"github.com/skhoolar/skhoolar/internal/store/storetest"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v := New(storetest.NewMemKeyStore())

	for _, s := range []string{"", "sk-abc", "ünïcødé ✓", `{"provider":"openai"}`} {
		blob, err := v.Encrypt(ctx, s)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", s, err)
		}
		got, err := v.Decrypt(ctx, blob)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != s {
			t.Errorf("Decrypt = %q, want %q", got, s)
		}
	}
}

func TestEnsureKey_StableAcrossInstances(t *testing.T) {
	ctx := context.Background()
	keys := storetest.NewMemKeyStore()

	first := New(keys)
	blob, err := first.Encrypt(ctx, "persisted")
	if err != nil {
		t.Fatal(err)
	}

	// A new Vault over the same key store models a process restart.
	second := New(keys)
	got, err := second.Decrypt(ctx, blob)
	if err != nil {
		t.Fatalf("Decrypt after restart: %v", err)
	}
	if got != "persisted" {
		t.Errorf("Decrypt = %q", got)
	}

	k1, _ := first.EnsureKey(ctx)
	k2, _ := second.EnsureKey(ctx)
	if !k1.Equal(k2) {
		t.Error("key changed across instances")
	}
}

func TestEnsureKey_ConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	keys := storetest.NewMemKeyStore()
	vaults := make([]*Vault, 6)
	for i := range vaults {
		vaults[i] = New(keys)
	}

	var wg sync.WaitGroup
	fps := make([]string, 0, 24)
	var mu sync.Mutex
	for _, v := range vaults {
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(v *Vault) {
				defer wg.Done()
				k, err := v.EnsureKey(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				fps = append(fps, k.Fingerprint())
				mu.Unlock()
			}(v)
		}
	}
	wg.Wait()

	for _, fp := range fps {
		if fp != fps[0] {
			t.Fatalf("concurrent first use produced different keys: %v", fps)
		}
	}
	if keys.Creates > len(vaults) {
		t.Errorf("CreateKey called %d times, want at most once per vault", keys.Creates)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	ctx := context.Background()
	v := New(storetest.NewMemKeyStore())
	blob, _ := v.Encrypt(ctx, "secret")

	tampered := []byte(blob)
	if tampered[20] == 'A' {
		tampered[20] = 'B'
	} else {
		tampered[20] = 'A'
	}
	if _, err := v.Decrypt(ctx, string(tampered)); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Decrypt tampered err = %v, want ErrIntegrity", err)
	}
	if _, err := v.Decrypt(ctx, "not base64!"); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Decrypt garbage err = %v, want ErrIntegrity", err)
	}
}

func TestEnsureKey_StoreUnavailable(t *testing.T) {
	keys := storetest.NewMemKeyStore()
	keys.Err = store.Unavailable("get key", errors.New("disk on fire"))
	v := New(keys)

	if _, err := v.Encrypt(context.Background(), "x"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Encrypt err = %v, want ErrUnavailable", err)
	}
	if _, err := v.HasKey(context.Background()); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("HasKey err = %v, want ErrUnavailable", err)
	}
}

func TestEnsureKey_CorruptDescriptor(t *testing.T) {
	keys := storetest.NewMemKeyStore()
	keys.Set(store.EncryptionKeyName, []byte("{not a jwk"))
	v := New(keys)

	if _, err := v.EnsureKey(context.Background()); !errors.Is(err, ErrIntegrity) {
		t.Errorf("EnsureKey err = %v, want ErrIntegrity", err)
	}
}

func TestHasKey_DoesNotCreate(t *testing.T) {
	ctx := context.Background()
	keys := storetest.NewMemKeyStore()
	v := New(keys, WithKeyName("custom_key"))

	ok, err := v.HasKey(ctx)
	if err != nil || ok {
		t.Fatalf("HasKey on empty store = %v, %v", ok, err)
	}
	if fp, err := v.Fingerprint(ctx); err != nil || fp != "" {
		t.Fatalf("Fingerprint on empty store = %q, %v", fp, err)
	}
	if keys.Creates != 0 {
		t.Fatalf("HasKey created a key")
	}

	if _, err := v.EnsureKey(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := keys.GetKey(ctx, "custom_key"); err != nil {
		t.Errorf("key not persisted under custom name: %v", err)
	}
	if ok, _ := v.HasKey(ctx); !ok {
		t.Error("HasKey after EnsureKey = false")
	}
}
