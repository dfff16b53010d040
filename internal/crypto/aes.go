// Package crypto provides the AES-256-GCM key and blob format used by the credential vault.
//
// Blobs are base64(nonce + ciphertext + tag) with a 12-byte random nonce per call.
// Key material never leaves this package except as a re-importable JWK.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16

	jwkKeyType   = "oct"
	jwkAlgorithm = "A256GCM"
)

var (
	// ErrIntegrity is returned when a blob cannot be authenticated:
	// bad encoding, truncated input, wrong key, or tampering.
	ErrIntegrity = errors.New("decrypt failed: invalid key or corrupted data")

	// ErrInvalidKey is returned when a persisted key descriptor cannot be imported.
	ErrInvalidKey = errors.New("invalid key descriptor")
)

// Key is a symmetric AES-256-GCM key usable only for Seal and Open.
type Key struct {
	material []byte
	aead     cipher.AEAD
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() (*Key, error) {
	material := make([]byte, KeySize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newKey(material)
}

func newKey(material []byte) (*Key, error) {
	if len(material) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(material))
	}
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Key{material: material, aead: gcm}, nil
}

// jwk is the JSON Web Key form a browser's exportKey("jwk") produces for an AES-GCM key.
type jwk struct {
	Kty    string   `json:"kty"`
	Alg    string   `json:"alg,omitempty"`
	K      string   `json:"k"`
	KeyOps []string `json:"key_ops,omitempty"`
	Ext    bool     `json:"ext"`
}

// MarshalJWK exports the key in the re-importable JWK form used for persistence.
func (k *Key) MarshalJWK() ([]byte, error) {
	return json.Marshal(jwk{
		Kty:    jwkKeyType,
		Alg:    jwkAlgorithm,
		K:      base64.RawURLEncoding.EncodeToString(k.material),
		KeyOps: []string{"encrypt", "decrypt"},
		Ext:    true,
	})
}

// ParseJWK imports a key previously exported with MarshalJWK.
func ParseJWK(data []byte) (*Key, error) {
	var j jwk
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if j.Kty != jwkKeyType {
		return nil, fmt.Errorf("%w: unexpected kty %q", ErrInvalidKey, j.Kty)
	}
	if j.Alg != "" && j.Alg != jwkAlgorithm {
		return nil, fmt.Errorf("%w: unexpected alg %q", ErrInvalidKey, j.Alg)
	}
	material, err := base64.RawURLEncoding.DecodeString(j.K)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newKey(material)
}

// Seal encrypts plaintext with a fresh random nonce.
// Returns base64(nonce + ciphertext + tag).
func (k *Key) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := k.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal. Decoding is strict: non-zero
// padding bits, line breaks and any byte outside the base64 alphabet are
// integrity failures, so every altered character of a blob is detected.
func (k *Key) Open(blob string) ([]byte, error) {
	if !canonicalBase64(blob) {
		return nil, ErrIntegrity
	}
	data, err := base64.StdEncoding.Strict().DecodeString(blob)
	if err != nil {
		return nil, ErrIntegrity
	}
	if len(data) < NonceSize+TagSize {
		return nil, ErrIntegrity
	}
	plaintext, err := k.aead.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// canonicalBase64 reports whether s uses only the standard alphabet and
// padding. The decoder alone skips CR and LF.
func canonicalBase64(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		case c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return true
}

// Equal reports whether two keys hold the same material (constant time).
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	return subtle.ConstantTimeCompare(k.material, other.material) == 1
}

// Fingerprint returns a short SHA-256 fingerprint of the key for display.
func (k *Key) Fingerprint() string {
	sum := sha256.Sum256(k.material)
	return hex.EncodeToString(sum[:8])
}

func (k *Key) String() string   { return "aes-gcm-256:" + k.Fingerprint() }
func (k *Key) GoString() string { return k.String() }
