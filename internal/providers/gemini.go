package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// GeminiClient speaks the Google Generative Language API. The key travels
// in the query string, so request URLs must never be logged.
type GeminiClient struct {
	apiKey   string
	apiBase  string // without version, e.g. https://generativelanguage.googleapis.com
	model    string
	settings Settings
	client   *http.Client
}

func NewGeminiClient(apiKey, apiBase, model string, s Settings) *GeminiClient {
	return &GeminiClient{
		apiKey:   apiKey,
		apiBase:  strings.TrimRight(apiBase, "/"),
		model:    model,
		settings: s,
		client:   s.httpClient(),
	}
}

func (c *GeminiClient) Name() Provider { return Gemini }

func (c *GeminiClient) url(version, path string) string {
	return c.apiBase + "/" + version + "/" + path + "?key=" + url.QueryEscape(c.apiKey)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

// Chat calls POST {apiBase}/v1beta/models/{model}:generateContent.
func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := strings.TrimPrefix(firstNonEmpty(req.Model, c.model), "models/")

	var body geminiRequest
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.History {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: req.Message}}})
	body.GenerationConfig.MaxOutputTokens = c.settings.maxTokens(req)
	body.GenerationConfig.Temperature = c.settings.temperature(req)

	var out geminiResponse
	err := do(ctx, c.client, call{
		provider: Gemini,
		op:       "chat",
		method:   http.MethodPost,
		url:      c.url("v1beta", "models/"+url.PathEscape(model)+":generateContent"),
		body:     body,
	}, &out)
	if err != nil {
		return nil, err
	}

	if len(out.Candidates) == 0 {
		return nil, errors.New("gemini: response has no candidates")
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return &ChatResponse{Content: sb.String(), Model: firstNonEmpty(out.ModelVersion, model)}, nil
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		Description                string   `json:"description"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// ListModels tries the v1 listing first and falls back to v1beta.
func (c *GeminiClient) ListModels(ctx context.Context) ([]protocol.Model, error) {
	out, err := c.listModels(ctx, "models")
	if err != nil {
		return nil, err
	}
	models := make([]protocol.Model, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, protocol.Model{
			ID:                         strings.TrimPrefix(m.Name, "models/"),
			Name:                       m.Name,
			DisplayName:                m.DisplayName,
			Description:                m.Description,
			SupportedGenerationMethods: m.SupportedGenerationMethods,
		})
	}
	return models, nil
}

// Validate lists models with the same v1 then v1beta fallback.
func (c *GeminiClient) Validate(ctx context.Context) error {
	_, err := c.listModels(ctx, "validate")
	return err
}

func (c *GeminiClient) listModels(ctx context.Context, op string) (*geminiModelList, error) {
	var out geminiModelList
	var err error
	for _, version := range []string{"v1", "v1beta"} {
		out = geminiModelList{}
		err = do(ctx, c.client, call{
			provider: Gemini,
			op:       op,
			method:   http.MethodGet,
			url:      c.url(version, "models"),
		}, &out)
		if err == nil {
			return &out, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, err
}
