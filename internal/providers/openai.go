package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// OpenAIClient speaks the OpenAI chat-completions API. It also serves
// Custom, pointed at any OpenAI-compatible base URL.
type OpenAIClient struct {
	name     Provider
	apiKey   string
	apiBase  string // includes the version segment, e.g. https://api.openai.com/v1
	model    string
	settings Settings
	client   *http.Client
}

// NewOpenAIClient creates a client for name (OpenAI or Custom) at apiBase.
func NewOpenAIClient(name Provider, apiKey, apiBase, model string, s Settings) *OpenAIClient {
	return &OpenAIClient{
		name:     name,
		apiKey:   apiKey,
		apiBase:  strings.TrimRight(apiBase, "/"),
		model:    model,
		settings: s,
		client:   s.httpClient(),
	}
}

func (c *OpenAIClient) Name() Provider { return c.name }

func (c *OpenAIClient) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Chat calls POST {apiBase}/chat/completions.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := firstNonEmpty(req.Model, c.model)
	msgs := make([]openAIMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		msgs = append(msgs, openAIMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: req.Message})

	var out openAIChatResponse
	err := do(ctx, c.client, call{
		provider: c.name,
		op:       "chat",
		method:   http.MethodPost,
		url:      c.apiBase + "/chat/completions",
		header:   c.header(),
		body: openAIChatRequest{
			Model:       model,
			Messages:    msgs,
			MaxTokens:   c.settings.maxTokens(req),
			Temperature: c.settings.temperature(req),
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: response has no choices", c.name)
	}
	return &ChatResponse{Content: out.Choices[0].Message.Content, Model: firstNonEmpty(out.Model, model)}, nil
}

type openAIModelList struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// ListModels calls GET {apiBase}/models.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]protocol.Model, error) {
	var out openAIModelList
	err := do(ctx, c.client, call{
		provider: c.name,
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
		models = append(models, protocol.Model{ID: m.ID, Created: m.Created, OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// Validate lists models, which needs a valid key and costs nothing.
func (c *OpenAIClient) Validate(ctx context.Context) error {
	return do(ctx, c.client, call{
		provider: c.name,
		op:       "validate",
		method:   http.MethodGet,
		url:      c.apiBase + "/models",
		header:   c.header(),
	}, nil)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
