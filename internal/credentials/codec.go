package credentials

import (
	"encoding/json"
	"fmt"

	"github.com/skhoolar/skhoolar/internal/providers"
)

// Encode validates r and serializes it to the plaintext stored in the blob.
func Encode(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// wireRecord tolerates provider aliases written by older versions.
type wireRecord struct {
	Provider string `json:"provider"`
	Secret   string `json:"apiKey"`
	Endpoint string `json:"endpoint"`
	Model    string `json:"model"`
}

// Decode parses plaintext produced by Encode.
func Decode(data []byte) (*Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode credential record: %w", err)
	}
	p, err := providers.Parse(w.Provider)
	if err != nil {
		return nil, fmt.Errorf("decode credential record: %w", err)
	}
	r := &Record{Provider: p, Secret: w.Secret, Endpoint: w.Endpoint, Model: w.Model}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("decode credential record: %w", err)
	}
	return r, nil
}
