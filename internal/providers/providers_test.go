package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skhoolar/skhoolar/pkg/protocol"
)

func testSettings(base string) Settings {
	return Settings{
		Timeout: 5 * time.Second,
		BaseURLs: map[Provider]string{
			OpenAI:    base + "/v1",
			Anthropic: base + "/v1",
			Gemini:    base,
		},
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	data, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("request body is not JSON: %v", err)
	}
	return m
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"openai", OpenAI, false},
		{" Anthropic ", Anthropic, false},
		{"gemini", Gemini, false},
		{"custom", Custom, false},
		{"claude", Anthropic, false},
		{"google", Gemini, false},
		{"anthropic-compatible", Anthropic, false},
		{"", "", true},
		{"mistral", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			var ve *protocol.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Parse(%q) err = %v, want ValidationError", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNew_EveryProvider(t *testing.T) {
	for _, p := range All() {
		if !p.Valid() {
			t.Errorf("%s not Valid()", p)
		}
		cred := Credential{Provider: p, APIKey: "k"}
		if p.RequiresEndpoint() {
			cred.Endpoint = "http://localhost:11434/v1"
		}
		c, err := New(cred, Settings{})
		if err != nil {
			t.Fatalf("New(%s): %v", p, err)
		}
		if c.Name() != p {
			t.Errorf("New(%s).Name() = %s", p, c.Name())
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
	}{
		{"missing_key", Credential{Provider: OpenAI}},
		{"unknown_provider", Credential{Provider: "mistral", APIKey: "k"}},
		{"custom_without_endpoint", Credential{Provider: Custom, APIKey: "k"}},
		{"custom_relative_endpoint", Credential{Provider: Custom, APIKey: "k", Endpoint: "/v1"}},
		{"custom_ftp_endpoint", Credential{Provider: Custom, APIKey: "k", Endpoint: "ftp://host/v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *protocol.ValidationError
			if _, err := New(tt.cred, Settings{}); !errors.As(err, &ve) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body := decodeBody(t, r)
		if body["max_tokens"] != float64(500) || body["temperature"] != 0.7 {
			t.Errorf("max_tokens/temperature = %v/%v", body["max_tokens"], body["temperature"])
		}
		msgs := body["messages"].([]any)
		if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
			t.Errorf("messages = %v", msgs)
		}
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"Hello!"}}]}`))
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: OpenAI, APIKey: "sk-test"}, testSettings(srv.URL))
	resp, err := c.Chat(context.Background(), ChatRequest{System: "be brief", Message: "hi"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestCustomChat_UsesEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if body := decodeBody(t, r); body["model"] != "llama3" {
			t.Errorf("model = %v", body["model"])
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"local"}}]}`))
	}))
	defer srv.Close()

	c, err := New(Credential{Provider: Custom, APIKey: "k", Endpoint: srv.URL + "/openai/v1/", Model: "llama3"}, Settings{})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Chat(context.Background(), ChatRequest{Message: "hi"})
	if err != nil || resp.Content != "local" {
		t.Errorf("Chat = %+v, %v", resp, err)
	}
}

func TestAnthropicChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("headers = %v", r.Header)
		}
		body := decodeBody(t, r)
		if body["system"] != "ctx" {
			t.Errorf("system = %v", body["system"])
		}
		w.Write([]byte(`{"model":"claude-3-haiku-20240307","content":[{"type":"text","text":"Hi "},{"type":"text","text":"there"}]}`))
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: Anthropic, APIKey: "sk-ant-test"}, testSettings(srv.URL))
	resp, err := c.Chat(context.Background(), ChatRequest{System: "ctx", Message: "hello"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Hi there" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestAnthropicValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["model"] != "claude-3-haiku-20240307" || body["max_tokens"] != float64(1) {
			t.Errorf("validate body = %v", body)
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: Anthropic, APIKey: "bad"}, testSettings(srv.URL))
	err := c.Validate(context.Background())
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.Status != http.StatusUnauthorized || ue.Message != "invalid x-api-key" {
		t.Errorf("UpstreamError = %+v", ue)
	}
}

func TestGeminiChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "AIza-test" {
			t.Errorf("key query = %q", r.URL.Query().Get("key"))
		}
		body := decodeBody(t, r)
		if _, ok := body["systemInstruction"]; !ok {
			t.Error("systemInstruction missing")
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Stars"}]}}]}`))
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: Gemini, APIKey: "AIza-test"}, testSettings(srv.URL))
	resp, err := c.Chat(context.Background(), ChatRequest{
		System:  "ctx",
		History: []Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}},
		Message: "What is a star?",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "Stars" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestGeminiListModels_FallsBackToV1beta(t *testing.T) {
	var v1Calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			v1Calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
		case "/v1beta/models":
			w.Write([]byte(`{"models":[{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash","supportedGenerationMethods":["generateContent"]}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: Gemini, APIKey: "k"}, testSettings(srv.URL))
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if v1Calls.Load() != 1 {
		t.Errorf("v1 calls = %d, want 1", v1Calls.Load())
	}
	if len(models) != 1 || models[0].ID != "gemini-2.0-flash" || models[0].Name != "models/gemini-2.0-flash" {
		t.Errorf("models = %+v", models)
	}
}

func TestOpenAIListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"gpt-4o","created":1715367049,"owned_by":"system"},{"id":"gpt-4o-mini","created":1721172741,"owned_by":"system"}]}`))
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: OpenAI, APIKey: "k"}, testSettings(srv.URL))
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].ID != "gpt-4o" || models[0].OwnedBy != "system" {
		t.Errorf("models = %+v", models)
	}
}

func TestUpstreamError_ScrubsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided: sk-abcdefghijklmnopqrstuvwxyz0123"}}`))
	}))
	defer srv.Close()

	c, _ := New(Credential{Provider: OpenAI, APIKey: "sk-abcdefghijklmnopqrstuvwxyz0123"}, testSettings(srv.URL))
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "abcdefghijklmnop") {
		t.Errorf("error leaks key: %v", err)
	}
	if got := SafeMessage(err); !strings.Contains(got, "Authentication") {
		t.Errorf("SafeMessage = %q", got)
	}
}

func TestTransportError_HidesGeminiKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, _ := New(Credential{Provider: Gemini, APIKey: "AIzaSECRETSECRETSECRET"}, testSettings(base))
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("transport error leaks key: %v", err)
	}
}

func TestSafeMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &UpstreamError{Provider: OpenAI, Status: 401}, "Authentication"},
		{"forbidden", &UpstreamError{Provider: Gemini, Status: 403}, "Authentication"},
		{"rate", &UpstreamError{Provider: OpenAI, Status: 429}, "rate limit"},
		{"overloaded", &UpstreamError{Provider: Anthropic, Status: 529, Message: "Overloaded"}, "overloaded"},
		{"billing", &UpstreamError{Provider: OpenAI, Status: 400, Message: "insufficient_quota"}, "billing"},
		{"model", &UpstreamError{Provider: OpenAI, Status: 404, Message: "The model `x` does not exist"}, "model"},
		{"timeout", context.DeadlineExceeded, "timed out"},
		{"transport", errors.Join(ErrTransport, errors.New("connection refused")), "Could not reach"},
		{"other", errors.New("weird"), "something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeMessage(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("SafeMessage = %q, want substring %q", got, tt.want)
			}
		})
	}
}

type countingClient struct {
	Client
	calls atomic.Int32
}

func (c *countingClient) ListModels(context.Context) ([]protocol.Model, error) {
	c.calls.Add(1)
	return []protocol.Model{{ID: "m"}}, nil
}

func TestCachedLister(t *testing.T) {
	l := NewCachedLister(0, 0)
	c := &countingClient{}
	cred := Credential{Provider: OpenAI, APIKey: "k1"}

	for i := 0; i < 3; i++ {
		if _, err := l.ListModels(context.Background(), c, cred); err != nil {
			t.Fatal(err)
		}
	}
	if c.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", c.calls.Load())
	}

	other := cred
	other.APIKey = "k2"
	l.ListModels(context.Background(), c, other)
	if c.calls.Load() != 2 {
		t.Errorf("different key should miss the cache, calls = %d", c.calls.Load())
	}

	l.Purge()
	if l.Len() != 0 {
		t.Errorf("Len after Purge = %d", l.Len())
	}
}
