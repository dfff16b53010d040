package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	for _, plaintext := range []string{"", "sk-test", strings.Repeat("x", 4096)} {
		blob, err := key.Seal([]byte(plaintext))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		got, err := key.Open(blob)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if string(got) != plaintext {
			t.Errorf("Open = %q, want %q", got, plaintext)
		}
	}
}

func TestSeal_BlobLayout(t *testing.T) {
	key, _ := GenerateKey()
	blob, err := key.Seal([]byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("blob is not std base64: %v", err)
	}
	if want := NonceSize + len("hello") + TagSize; len(raw) != want {
		t.Errorf("decoded blob length = %d, want %d", len(raw), want)
	}
}

func TestSeal_FreshNonce(t *testing.T) {
	key, _ := GenerateKey()
	a, _ := key.Seal([]byte("same"))
	b, _ := key.Seal([]byte("same"))
	if a == b {
		t.Fatal("sealing the same plaintext twice produced identical blobs")
	}

	rawA, _ := base64.StdEncoding.DecodeString(a)
	rawB, _ := base64.StdEncoding.DecodeString(b)
	if string(rawA[:NonceSize]) == string(rawB[:NonceSize]) {
		t.Error("nonce reused across Seal calls")
	}

	for _, blob := range []string{a, b} {
		got, err := key.Open(blob)
		if err != nil || string(got) != "same" {
			t.Errorf("Open(%q) = %q, %v", blob, got, err)
		}
	}
}

func TestOpen_TamperDetection(t *testing.T) {
	key, _ := GenerateKey()
	blob, _ := key.Seal([]byte(`{"provider":"openai","apiKey":"sk-test"}`))
	raw, _ := base64.StdEncoding.DecodeString(blob)

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := make([]byte, len(raw))
			copy(tampered, raw)
			tampered[i] ^= 1 << bit

			_, err := key.Open(base64.StdEncoding.EncodeToString(tampered))
			if !errors.Is(err, ErrIntegrity) {
				t.Fatalf("byte %d bit %d: err = %v, want ErrIntegrity", i, bit, err)
			}
		}
	}
}

func TestOpen_EncodedTamperDetection(t *testing.T) {
	key, _ := GenerateKey()
	// Blob lengths cover every len%3 residue, so all padding shapes
	// (none, "=", "==") are exercised.
	for _, plaintext := range []string{"sk-test12", "sk-test123", "sk-test1234"} {
		blob, err := key.Seal([]byte(plaintext))
		if err != nil {
			t.Fatalf("Seal: %v", err)
		}
		for i := 0; i < len(blob); i++ {
			for bit := 0; bit < 8; bit++ {
				tampered := []byte(blob)
				tampered[i] ^= 1 << bit
				if _, err := key.Open(string(tampered)); !errors.Is(err, ErrIntegrity) {
					t.Fatalf("len %d: char %d (%q) bit %d: err = %v, want ErrIntegrity",
						len(plaintext), i, blob[i], bit, err)
				}
			}
		}
	}
}

func TestOpen_RejectsLineBreaks(t *testing.T) {
	key, _ := GenerateKey()
	blob, _ := key.Seal([]byte("secret"))
	for _, s := range []string{blob + "\n", "\r\n" + blob, blob[:8] + "\n" + blob[8:]} {
		if _, err := key.Open(s); !errors.Is(err, ErrIntegrity) {
			t.Errorf("Open(%q) err = %v, want ErrIntegrity", s, err)
		}
	}
}

func TestOpen_Malformed(t *testing.T) {
	key, _ := GenerateKey()
	tests := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"not_base64", "%%%not base64%%%"},
		{"too_short", base64.StdEncoding.EncodeToString(make([]byte, NonceSize+TagSize-1))},
		{"garbage", base64.StdEncoding.EncodeToString([]byte("this is not a sealed blob at all"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := key.Open(tt.blob); !errors.Is(err, ErrIntegrity) {
				t.Errorf("Open(%q) err = %v, want ErrIntegrity", tt.blob, err)
			}
		})
	}
}

func TestOpen_WrongKey(t *testing.T) {
	a, _ := GenerateKey()
	b, _ := GenerateKey()
	blob, _ := a.Seal([]byte("secret"))
	if _, err := b.Open(blob); !errors.Is(err, ErrIntegrity) {
		t.Errorf("Open with wrong key err = %v, want ErrIntegrity", err)
	}
}

func TestJWK_RoundTrip(t *testing.T) {
	key, _ := GenerateKey()
	data, err := key.MarshalJWK()
	if err != nil {
		t.Fatalf("MarshalJWK: %v", err)
	}
	for _, field := range []string{`"kty":"oct"`, `"alg":"A256GCM"`, `"ext":true`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("JWK %s missing %s", data, field)
		}
	}

	imported, err := ParseJWK(data)
	if err != nil {
		t.Fatalf("ParseJWK: %v", err)
	}
	if !imported.Equal(key) {
		t.Error("imported key differs from exported key")
	}

	blob, _ := key.Seal([]byte("cross"))
	got, err := imported.Open(blob)
	if err != nil || string(got) != "cross" {
		t.Errorf("imported key Open = %q, %v", got, err)
	}
}

func TestParseJWK_Invalid(t *testing.T) {
	short := base64.RawURLEncoding.EncodeToString(make([]byte, 16))
	full := base64.RawURLEncoding.EncodeToString(make([]byte, KeySize))
	tests := []struct {
		name string
		data string
	}{
		{"not_json", "nope"},
		{"wrong_kty", `{"kty":"RSA","k":"` + full + `"}`},
		{"wrong_alg", `{"kty":"oct","alg":"A128GCM","k":"` + full + `"}`},
		{"short_key", `{"kty":"oct","alg":"A256GCM","k":"` + short + `"}`},
		{"bad_encoding", `{"kty":"oct","k":"***"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWK([]byte(tt.data)); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ParseJWK err = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestKey_StringHidesMaterial(t *testing.T) {
	key, _ := GenerateKey()
	encoded := base64.RawURLEncoding.EncodeToString(key.material)
	for _, s := range []string{key.String(), fmt.Sprintf("%v", key), fmt.Sprintf("%#v", key)} {
		if strings.Contains(s, encoded) {
			t.Errorf("formatted key leaks material: %s", s)
		}
	}
	if len(key.Fingerprint()) != 16 {
		t.Errorf("Fingerprint length = %d, want 16", len(key.Fingerprint()))
	}
}
