// Package providers talks to the third-party language-model APIs the chat
// panel can be pointed at. Every call is one-shot and carries the caller's
// credential; nothing here is stored.
package providers

import (
	"fmt"
	"strings"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// Provider identifies an upstream API family.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Gemini    Provider = "gemini"
	// Custom is any OpenAI-compatible server at a user-supplied endpoint.
	Custom Provider = "custom"
)

// All returns every supported provider in display order.
func All() []Provider {
	return []Provider{OpenAI, Anthropic, Gemini, Custom}
}

// Aliases accepted from older clients and config files.
var aliases = map[string]Provider{
	"claude":               Anthropic,
	"anthropic-compatible": Anthropic,
	"google":               Gemini,
	"gemini-compatible":    Gemini,
	"openai-compatible":    Custom,
}

// Parse normalizes a provider name. Unknown names yield a validation error.
func Parse(s string) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range All() {
		if string(p) == name {
			return p, nil
		}
	}
	if p, ok := aliases[name]; ok {
		return p, nil
	}
	if name == "" {
		return "", protocol.NewValidationError("provider", "provider is required")
	}
	return "", protocol.NewValidationError("provider", fmt.Sprintf("unsupported provider %q", s))
}

// Valid reports whether p is one of All().
func (p Provider) Valid() bool {
	switch p {
	case OpenAI, Anthropic, Gemini, Custom:
		return true
	}
	return false
}

// RequiresEndpoint reports whether the provider needs a user-supplied endpoint.
func (p Provider) RequiresEndpoint() bool { return p == Custom }

// DisplayName is the human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case OpenAI:
		return "OpenAI"
	case Anthropic:
		return "Anthropic"
	case Gemini:
		return "Google Gemini"
	case Custom:
		return "Custom (OpenAI-compatible)"
	}
	return string(p)
}
