// Package credentials persists the user's provider credential encrypted
// under the vault key. At most one record exists per profile.
package credentials

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/internal/redact"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// ValidationError is returned when a record is rejected before any storage
// or network work happens.
type ValidationError = protocol.ValidationError

// Record is the plaintext credential. Its JSON form is what gets encrypted.
type Record struct {
	Provider providers.Provider `json:"provider"`
	Secret   string             `json:"apiKey"`
	Endpoint string             `json:"endpoint,omitempty"`
	Model    string             `json:"model,omitempty"`
}

// Validate checks the provider, the secret, and the endpoint rule:
// an endpoint is required for custom providers and refused for the others.
func (r Record) Validate() error {
	if !r.Provider.Valid() {
		if r.Provider == "" {
			return protocol.NewValidationError("provider", "provider is required")
		}
		return protocol.NewValidationError("provider", fmt.Sprintf("unsupported provider %q", r.Provider))
	}
	if strings.TrimSpace(r.Secret) == "" {
		return protocol.NewValidationError("apiKey", "API key is required")
	}
	if r.Provider.RequiresEndpoint() {
		return providers.ValidateEndpoint(r.Endpoint)
	}
	if r.Endpoint != "" {
		return protocol.NewValidationError("endpoint", fmt.Sprintf("endpoint is only allowed for custom providers, not %s", r.Provider))
	}
	return nil
}

// Credential converts the record into what a provider client needs.
func (r Record) Credential() providers.Credential {
	return providers.Credential{
		Provider: r.Provider,
		APIKey:   r.Secret,
		Endpoint: r.Endpoint,
		Model:    r.Model,
	}
}

// MaskedSecret is the secret as it may be displayed.
func (r Record) MaskedSecret() string { return redact.Secret(r.Secret) }

func (r Record) String() string {
	s := fmt.Sprintf("provider=%s apiKey=%s", r.Provider, r.MaskedSecret())
	if r.Endpoint != "" {
		s += " endpoint=" + r.Endpoint
	}
	if r.Model != "" {
		s += " model=" + r.Model
	}
	return s
}

func (r Record) GoString() string { return "credentials.Record{" + r.String() + "}" }

// LogValue keeps the secret out of structured logs.
func (r Record) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("provider", string(r.Provider)),
		slog.String("apiKey", r.MaskedSecret()),
	}
	if r.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", r.Endpoint))
	}
	if r.Model != "" {
		attrs = append(attrs, slog.String("model", r.Model))
	}
	return slog.GroupValue(attrs...)
}
