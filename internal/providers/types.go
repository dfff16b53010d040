package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// Client is one provider bound to one credential.
type Client interface {
	Name() Provider

	// Chat sends a single completion request and returns the reply text.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ListModels returns the models the credential can see.
	ListModels(ctx context.Context) ([]protocol.Model, error)

	// Validate checks the credential with the cheapest authenticated call.
	Validate(ctx context.Context) error
}

// Message is one prior turn in a conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatRequest is the provider-neutral completion request.
type ChatRequest struct {
	System      string
	History     []Message
	Message     string
	Model       string  // empty = client default
	MaxTokens   int     // 0 = client default
	Temperature float64 // 0 = client default
}

// ChatResponse is the provider-neutral completion result.
type ChatResponse struct {
	Content string
	Model   string
}

const (
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second

	anthropicVersion       = "2023-06-01"
	anthropicValidateModel = "claude-3-haiku-20240307"
)

// DefaultBaseURLs are the public API roots of each provider.
var DefaultBaseURLs = map[Provider]string{
	OpenAI:    "https://api.openai.com/v1",
	Anthropic: "https://api.anthropic.com/v1",
	Gemini:    "https://generativelanguage.googleapis.com",
}

// DefaultModels are used when neither the request nor the credential names a model.
var DefaultModels = map[Provider]string{
	OpenAI:    "gpt-4o-mini",
	Anthropic: "claude-3-haiku-20240307",
	Gemini:    "gemini-2.0-flash",
	Custom:    "gpt-4o-mini",
}

// Settings holds the operator-level knobs shared by every client.
type Settings struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// BaseURLs and Models override DefaultBaseURLs and DefaultModels per provider.
	BaseURLs map[Provider]string
	Models   map[Provider]string

	// HTTPClient overrides the client built from Timeout (tests).
	HTTPClient *http.Client
}

func (s Settings) baseURL(p Provider) string {
	if u := s.BaseURLs[p]; u != "" {
		return u
	}
	return DefaultBaseURLs[p]
}

func (s Settings) model(p Provider) string {
	if m := s.Models[p]; m != "" {
		return m
	}
	return DefaultModels[p]
}

func (s Settings) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (s Settings) maxTokens(req ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return DefaultMaxTokens
}

func (s Settings) temperature(req ChatRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	if s.Temperature > 0 {
		return s.Temperature
	}
	return DefaultTemperature
}
