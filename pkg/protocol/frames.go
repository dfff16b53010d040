// Package protocol defines the JSON wire format of the skhoolar gateway.
// This package is importable by clients of the HTTP and WebSocket endpoints.
package protocol

// ContextNode is the topic the user is currently looking at in the galaxy.
type ContextNode struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Era      string `json:"era,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Year     int64  `json:"year,omitempty"` // negative for BCE
}

// ChatRequest is the body of POST /api/chat and each /ws/chat request frame.
// Without APIKey and Provider the gateway answers with a canned reply.
type ChatRequest struct {
	Message     string       `json:"message"`
	ContextNode *ContextNode `json:"contextNode,omitempty"`
	APIKey      string       `json:"apiKey,omitempty"`
	Provider    string       `json:"provider,omitempty"`
	Model       string       `json:"model,omitempty"`
	Endpoint    string       `json:"endpoint,omitempty"` // custom provider base URL
}

// ChatResponse is always returned as {reply}, including on upstream failure.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// KeyRequest is the body of POST /api/validate-key and POST /api/test-models.
type KeyRequest struct {
	APIKey   string `json:"apiKey"`
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ValidateKeyResponse reports whether the provider accepted the key.
type ValidateKeyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Model describes one model identifier returned by a provider.
// Fields not reported by a provider are omitted.
type Model struct {
	ID                         string   `json:"id,omitempty"`
	Name                       string   `json:"name,omitempty"`
	DisplayName                string   `json:"displayName,omitempty"`
	Description                string   `json:"description,omitempty"`
	Created                    int64    `json:"created,omitempty"`
	OwnedBy                    string   `json:"owned_by,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// ModelsResponse is the body returned by POST /api/test-models.
type ModelsResponse struct {
	Success bool    `json:"success"`
	Models  []Model `json:"models"`
	Count   int     `json:"count"`
	Error   string  `json:"error,omitempty"`
}

// ErrorResponse is returned for rejected requests (400, 401, 429, 500).
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ChatFrame is one client message on /ws/chat. ContextNode, when present,
// changes the connection's selected node; Reset clears its history.
type ChatFrame struct {
	ID string `json:"id,omitempty"`
	ChatRequest
	Reset bool `json:"reset,omitempty"`
}

// ChatReplyFrame answers one ChatFrame. Error and Code are set only when the
// frame was rejected; provider failures still arrive as a Reply.
type ChatReplyFrame struct {
	ID    string `json:"id,omitempty"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
