package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// AnthropicClient speaks the Anthropic Messages API.
type AnthropicClient struct {
	apiKey   string
	apiBase  string // e.g. https://api.anthropic.com/v1
	model    string
	settings Settings
	client   *http.Client
}

func NewAnthropicClient(apiKey, apiBase, model string, s Settings) *AnthropicClient {
	return &AnthropicClient{
		apiKey:   apiKey,
		apiBase:  strings.TrimRight(apiBase, "/"),
		model:    model,
		settings: s,
		client:   s.httpClient(),
	}
}

func (c *AnthropicClient) Name() Provider { return Anthropic }

func (c *AnthropicClient) header() http.Header {
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("anthropic-version", anthropicVersion)
	return h
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Chat calls POST {apiBase}/messages.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := firstNonEmpty(req.Model, c.model)
	msgs := make([]anthropicMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, anthropicMessage{Role: "user", Content: req.Message})
	temp := c.settings.temperature(req)

	var out anthropicResponse
	err := do(ctx, c.client, call{
		provider: Anthropic,
		op:       "chat",
		method:   http.MethodPost,
		url:      c.apiBase + "/messages",
		header:   c.header(),
		body: anthropicRequest{
			Model:       model,
			MaxTokens:   c.settings.maxTokens(req),
			System:      req.System,
			Messages:    msgs,
			Temperature: &temp,
		},
	}, &out)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("anthropic: response has no text content")
	}
	return &ChatResponse{Content: sb.String(), Model: firstNonEmpty(out.Model, model)}, nil
}

type anthropicModelList struct {
	Data []struct {
		ID          string    `json:"id"`
		DisplayName string    `json:"display_name"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"data"`
}

// ListModels calls GET {apiBase}/models.
func (c *AnthropicClient) ListModels(ctx context.Context) ([]protocol.Model, error) {
	var out anthropicModelList
	err := do(ctx, c.client, call{
		provider: Anthropic,
		op:       "models",
		method:   http.MethodGet,
		url:      c.apiBase + "/models",
		header:   c.header(),
	}, &out)
	if err != nil {
		return nil, err
	}
	models := make([]protocol.Model, 0, len(out.Data))
	for _, m := range out.Data {
		pm := protocol.Model{ID: m.ID, DisplayName: m.DisplayName, OwnedBy: "anthropic"}
		if !m.CreatedAt.IsZero() {
			pm.Created = m.CreatedAt.Unix()
		}
		models = append(models, pm)
	}
	return models, nil
}

// Validate sends a one-token message to the cheapest model.
func (c *AnthropicClient) Validate(ctx context.Context) error {
	return do(ctx, c.client, call{
		provider: Anthropic,
		op:       "validate",
		method:   http.MethodPost,
		url:      c.apiBase + "/messages",
		header:   c.header(),
		body: anthropicRequest{
			Model:     anthropicValidateModel,
			MaxTokens: 1,
			Messages:  []anthropicMessage{{Role: "user", Content: "test"}},
		},
	}, nil)
}
