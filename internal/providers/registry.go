package providers

import (
	"fmt"
	"net/url"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// Credential is what a client needs to authenticate: the provider, the
// secret, and for Custom the endpoint. Model optionally overrides the default.
type Credential struct {
	Provider Provider
	APIKey   string
	Endpoint string
	Model    string
}

// New builds the client for cred.Provider.
func New(cred Credential, s Settings) (Client, error) {
	if cred.APIKey == "" {
		return nil, protocol.NewValidationError("apiKey", "API key is required")
	}
	model := firstNonEmpty(cred.Model, s.model(cred.Provider))

	switch cred.Provider {
	case OpenAI:
		return NewOpenAIClient(OpenAI, cred.APIKey, s.baseURL(OpenAI), model, s), nil
	case Anthropic:
		return NewAnthropicClient(cred.APIKey, s.baseURL(Anthropic), model, s), nil
	case Gemini:
		return NewGeminiClient(cred.APIKey, s.baseURL(Gemini), model, s), nil
	case Custom:
		if err := ValidateEndpoint(cred.Endpoint); err != nil {
			return nil, err
		}
		return NewOpenAIClient(Custom, cred.APIKey, cred.Endpoint, model, s), nil
	}
	return nil, protocol.NewValidationError("provider", fmt.Sprintf("unsupported provider %q", cred.Provider))
}

// ValidateEndpoint checks that a custom endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return protocol.NewValidationError("endpoint", "endpoint is required for custom providers")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return protocol.NewValidationError("endpoint", "endpoint must be an absolute http(s) URL")
	}
	return nil
}
