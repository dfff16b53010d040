package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// maxRequestBodySize bounds every JSON request body.
const maxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return protocol.NewValidationError("", "request body too large")
		case errors.Is(err, io.EOF):
			return protocol.NewValidationError("", "request body is empty")
		}
		return protocol.NewValidationError("", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// requestCredential turns the key fields of a request into a credential.
// Both apiKey and provider are needed; without them there is no credential
// and ok is false.
func requestCredential(apiKey, provider, endpoint, model string) (cred *providers.Credential, ok bool, err error) {
	if apiKey == "" || provider == "" {
		return nil, false, nil
	}
	p, err := providers.Parse(provider)
	if err != nil {
		return nil, true, err
	}
	if p.RequiresEndpoint() {
		if err := providers.ValidateEndpoint(endpoint); err != nil {
			return nil, true, err
		}
	}
	return &providers.Credential{Provider: p, APIKey: apiKey, Endpoint: endpoint, Model: model}, true, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "status", status, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: message, Code: code})
}

// asValidation reports whether err is a request validation failure.
func asValidation(err error) (*protocol.ValidationError, bool) {
	var ve *protocol.ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
