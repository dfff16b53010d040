package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skhoolar/skhoolar/internal/chat"
	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// fakeOpenAI serves /v1/chat/completions and /v1/models. Requests carrying
// any key other than goodKey get a 401.
type fakeOpenAI struct {
	*httptest.Server
	modelCalls atomic.Int32
	chatCalls  atomic.Int32
}

const goodKey = "sk-good-0123456789abcdefghij"

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{}
	mux := http.NewServeMux()
	auth := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+goodKey {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"Incorrect API key provided: ` + strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") + `"}}`))
			return false
		}
		return true
	}
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		if !auth(w, r) {
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		last := req.Messages[len(req.Messages)-1].Content
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"message": map[string]string{"role": "assistant", "content": "echo: " + last},
			}},
		})
	})
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		f.modelCalls.Add(1)
		if !auth(w, r) {
			return
		}
		w.Write([]byte(`{"data":[{"id":"gpt-4o-mini","owned_by":"openai"},{"id":"gpt-4o","owned_by":"openai"}]}`))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestServer(t *testing.T, upstream *fakeOpenAI, mutate func(*Options)) *httptest.Server {
	t.Helper()
	settings := providers.Settings{Timeout: 5 * time.Second}
	if upstream != nil {
		settings.BaseURLs = map[providers.Provider]string{providers.OpenAI: upstream.URL + "/v1"}
	}
	opts := Options{
		Chat:   chat.NewService(settings),
		Models: providers.NewCachedLister(16, time.Minute),
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv := NewServer(opts)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any, header ...string) (*http.Response, []byte) {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestChat_FallbackWithoutCredential(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		req  protocol.ChatRequest
		want string
	}{
		{"no_node", protocol.ChatRequest{Message: "hello"}, chat.FallbackReply("hello", nil)},
		{"big_bang", protocol.ChatRequest{
			Message:     "what happened?",
			ContextNode: &protocol.ContextNode{Title: "The Big Bang", Category: "Physics"},
		}, "The Big Bang theory is the prevailing cosmological model for the universe from the earliest known periods through its subsequent large-scale evolution."},
		{"key_without_provider", protocol.ChatRequest{Message: "hi", APIKey: "sk-whatever"}, chat.FallbackReply("hi", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts, "/api/chat", tt.req)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body %s", resp.StatusCode, body)
			}
			var out protocol.ChatResponse
			json.Unmarshal(body, &out)
			if out.Reply != tt.want {
				t.Errorf("reply = %q, want %q", out.Reply, tt.want)
			}
		})
	}
}

func TestChat_Provider(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	resp, body := postJSON(t, ts, "/api/chat", protocol.ChatRequest{
		Message:  "tell me about DNA",
		APIKey:   goodKey,
		Provider: "openai",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var out protocol.ChatResponse
	json.Unmarshal(body, &out)
	if out.Reply != "echo: tell me about DNA" {
		t.Errorf("reply = %q", out.Reply)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
}

func TestChat_UpstreamRejectionIsSafeReply(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	badKey := "sk-bad-zyxwvutsrqponmlkjihg"
	resp, body := postJSON(t, ts, "/api/chat", protocol.ChatRequest{Message: "hi", APIKey: badKey, Provider: "openai"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if strings.Contains(string(body), badKey) || strings.Contains(string(body), "Incorrect API key") {
		t.Errorf("response leaks upstream body: %s", body)
	}
	var out protocol.ChatResponse
	json.Unmarshal(body, &out)
	if !strings.Contains(out.Reply, "Authentication error") {
		t.Errorf("reply = %q", out.Reply)
	}
}

func TestChat_TransportFailureIs500(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, body := postJSON(t, ts, "/api/chat", protocol.ChatRequest{
		Message:  "hi",
		APIKey:   goodKey,
		Provider: "custom",
		Endpoint: "http://127.0.0.1:1/v1",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var out protocol.ChatResponse
	json.Unmarshal(body, &out)
	if out.Reply == "" {
		t.Error("500 response should still carry a reply")
	}
}

func TestChat_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"empty_message", protocol.ChatRequest{}, protocol.ErrInvalidRequest},
		{"unsupported_provider", protocol.ChatRequest{Message: "hi", APIKey: "k", Provider: "mistral"}, protocol.ErrUnsupported},
		{"custom_without_endpoint", protocol.ChatRequest{Message: "hi", APIKey: "k", Provider: "custom"}, protocol.ErrInvalidRequest},
		{"not_json", "just a string", protocol.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts, "/api/chat", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", resp.StatusCode, body)
			}
			var out protocol.ErrorResponse
			json.Unmarshal(body, &out)
			if out.Code != tt.code || out.Error == "" {
				t.Errorf("error = %+v, want code %s", out, tt.code)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	tests := []struct {
		name       string
		req        protocol.KeyRequest
		wantStatus int
		wantValid  bool
		wantMsg    string
	}{
		{"missing_key", protocol.KeyRequest{Provider: "openai"}, http.StatusBadRequest, false, "API key and provider are required"},
		{"missing_provider", protocol.KeyRequest{APIKey: goodKey}, http.StatusBadRequest, false, "API key and provider are required"},
		{"unsupported", protocol.KeyRequest{APIKey: goodKey, Provider: "mistral"}, http.StatusBadRequest, false, "Unsupported provider"},
		{"valid", protocol.KeyRequest{APIKey: goodKey, Provider: "openai"}, http.StatusOK, true, "API key is valid"},
		{"rejected", protocol.KeyRequest{APIKey: "wrong", Provider: "openai"}, http.StatusOK, false, "Incorrect API key provided: wrong"},
		{"unreachable", protocol.KeyRequest{APIKey: goodKey, Provider: "custom", Endpoint: "http://127.0.0.1:1/v1"}, http.StatusInternalServerError, false, "Failed to validate API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts, "/api/validate-key", tt.req)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantStatus == http.StatusBadRequest {
				var out protocol.ErrorResponse
				json.Unmarshal(body, &out)
				if out.Error != tt.wantMsg {
					t.Errorf("error = %q, want %q", out.Error, tt.wantMsg)
				}
				return
			}
			var out protocol.ValidateKeyResponse
			json.Unmarshal(body, &out)
			if out.Valid != tt.wantValid || out.Message != tt.wantMsg {
				t.Errorf("response = %+v, want valid=%v message=%q", out, tt.wantValid, tt.wantMsg)
			}
		})
	}
}

func TestValidateKey_ScrubsEchoedKey(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	leaked := "sk-proj-abcdefghijklmnopqrstuvwx"
	_, body := postJSON(t, ts, "/api/validate-key", protocol.KeyRequest{APIKey: leaked, Provider: "openai"})
	if strings.Contains(string(body), leaked) {
		t.Errorf("validate-key response echoes the key: %s", body)
	}
}

func TestTestModels_CachesAndAliases(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	for _, path := range []string{"/api/test-models", "/api/models"} {
		resp, body := postJSON(t, ts, path, protocol.KeyRequest{APIKey: goodKey, Provider: "openai"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d (%s)", path, resp.StatusCode, body)
		}
		var out protocol.ModelsResponse
		json.Unmarshal(body, &out)
		if !out.Success || out.Count != 2 || out.Models[1].ID != "gpt-4o" {
			t.Errorf("%s response = %+v", path, out)
		}
	}
	if n := upstream.modelCalls.Load(); n != 1 {
		t.Errorf("upstream model calls = %d, want 1 (second call cached)", n)
	}
}

func TestTestModels_EmptyListingIsNotSuccess(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer empty.Close()
	ts := newTestServer(t, nil, nil)

	resp, body := postJSON(t, ts, "/api/test-models", protocol.KeyRequest{
		APIKey: "sk-local", Provider: "custom", Endpoint: empty.URL + "/v1",
	})
	var out protocol.ModelsResponse
	json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK || out.Success || out.Count != 0 {
		t.Errorf("empty listing: status %d, %+v", resp.StatusCode, out)
	}
	if !strings.Contains(string(body), `"models":[]`) {
		t.Errorf("models should be an empty array: %s", body)
	}
}

func TestWriteJSON_EncodeFailureStillSetsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusTeapot, map[string]any{"bad": make(chan int)})
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestTestModels_Errors(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	resp, body := postJSON(t, ts, "/api/test-models", protocol.KeyRequest{Provider: "openai"})
	var out protocol.ModelsResponse
	json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusBadRequest || out.Success || out.Error != "API key and provider are required" {
		t.Errorf("missing key: status %d, %+v", resp.StatusCode, out)
	}
	if !strings.Contains(string(body), `"models":[]`) {
		t.Errorf("models should be an empty array: %s", body)
	}

	resp, body = postJSON(t, ts, "/api/test-models", protocol.KeyRequest{APIKey: "nope", Provider: "openai"})
	out = protocol.ModelsResponse{}
	json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK || out.Success || !strings.Contains(out.Error, "Incorrect API key") {
		t.Errorf("rejected key: status %d, %+v", resp.StatusCode, out)
	}
}

func TestGatewayToken(t *testing.T) {
	ts := newTestServer(t, nil, func(o *Options) { o.Token = "gw-secret" })

	resp, _ := postJSON(t, ts, "/api/chat", protocol.ChatRequest{Message: "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", resp.StatusCode)
	}
	resp, _ = postJSON(t, ts, "/api/chat", protocol.ChatRequest{Message: "hi"}, "Authorization", "Bearer wrong")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", resp.StatusCode)
	}
	resp, _ = postJSON(t, ts, "/api/chat", protocol.ChatRequest{Message: "hi"}, "Authorization", "Bearer gw-secret")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", resp.StatusCode)
	}

	health, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200 without token", health.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, nil, func(o *Options) { o.RateLimitRPM, o.Burst = 1, 1 })

	resp, _ := postJSON(t, ts, "/api/chat", protocol.ChatRequest{Message: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: status = %d", resp.StatusCode)
	}
	resp, body := postJSON(t, ts, "/api/chat", protocol.ChatRequest{Message: "hi"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" || !strings.Contains(string(body), protocol.ErrResourceExhausted) {
		t.Errorf("429 response missing Retry-After or code: %s", body)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil, func(o *Options) { o.AllowedOrigins = []string{"http://localhost:3000"} })

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("preflight: status %d, allow-origin %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}

	req, _ = http.NewRequest(http.MethodOptions, ts.URL+"/api/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin got CORS headers")
	}
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
}

func TestWebSocketChat(t *testing.T) {
	upstream := newFakeOpenAI(t)
	ts := newTestServer(t, upstream, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(frame protocol.ChatFrame) protocol.ChatReplyFrame {
		t.Helper()
		if err := conn.WriteJSON(frame); err != nil {
			t.Fatalf("write: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var out protocol.ChatReplyFrame
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("read: %v", err)
		}
		return out
	}

	out := exchange(protocol.ChatFrame{ID: "1", ChatRequest: protocol.ChatRequest{Message: "hello"}})
	if out.ID != "1" || out.Reply != chat.FallbackReply("hello", nil) {
		t.Errorf("fallback frame = %+v", out)
	}

	// Selecting a node sticks for later frames on the same connection.
	out = exchange(protocol.ChatFrame{ID: "2", ChatRequest: protocol.ChatRequest{
		ContextNode: &protocol.ContextNode{Title: "The Big Bang"},
	}})
	if out.ID != "2" || out.Reply != "" || out.Error != "" {
		t.Errorf("selection frame = %+v", out)
	}
	out = exchange(protocol.ChatFrame{ID: "3", ChatRequest: protocol.ChatRequest{Message: "and then?"}})
	if !strings.HasPrefix(out.Reply, "The Big Bang theory") {
		t.Errorf("node not kept: %+v", out)
	}

	out = exchange(protocol.ChatFrame{ID: "4", ChatRequest: protocol.ChatRequest{
		Message: "ping", APIKey: goodKey, Provider: "openai",
	}})
	if out.Reply != "echo: ping" {
		t.Errorf("provider frame = %+v", out)
	}

	out = exchange(protocol.ChatFrame{ID: "5", ChatRequest: protocol.ChatRequest{Message: "x", APIKey: "k", Provider: "nope"}})
	if out.Code != protocol.ErrUnsupported || out.Reply != "" {
		t.Errorf("unsupported provider frame = %+v", out)
	}
}

func TestWebSocket_RejectsOrigin(t *testing.T) {
	ts := newTestServer(t, nil, func(o *Options) { o.AllowedOrigins = []string{"http://localhost:3000"} })

	header := http.Header{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err == nil {
		t.Fatal("dial from disallowed origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v, want 403", resp)
	}
}
