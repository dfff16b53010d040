package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/internal/redact"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

const (
	msgKeyRequired       = "API key and provider are required"
	msgUnsupported       = "Unsupported provider"
	msgKeyValid          = "API key is valid"
	msgKeyInvalid        = "Invalid API key"
	msgValidateFailed    = "Failed to validate API key"
	msgModelsFetchFailed = "Failed to fetch models"
)

// keyRequestCredential validates a KeyRequest. The returned message is the
// text to send back when err is non-nil.
func keyRequestCredential(req protocol.KeyRequest) (*providers.Credential, string, error) {
	cred, ok, err := requestCredential(req.APIKey, req.Provider, req.Endpoint, "")
	switch {
	case !ok:
		return nil, msgKeyRequired, protocol.NewValidationError("", msgKeyRequired)
	case err != nil:
		if ve, _ := asValidation(err); ve != nil && ve.Field == "provider" {
			return nil, msgUnsupported, err
		}
		return nil, err.Error(), err
	}
	return cred, "", nil
}

// handleValidateKey answers POST /api/validate-key with {valid, message}.
// The key is checked against the provider and never stored.
func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	var req protocol.KeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err.Error())
		return
	}
	cred, msg, err := keyRequestCredential(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err), msg)
		return
	}

	client, err := providers.New(*cred, s.chat.Settings())
	if err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err), err.Error())
		return
	}

	err = client.Validate(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, protocol.ValidateKeyResponse{Valid: true, Message: msgKeyValid})
		return
	}

	var ue *providers.UpstreamError
	if errors.As(err, &ue) {
		msg := ue.Message
		if msg == "" {
			msg = msgKeyInvalid
		}
		slog.Info("api key rejected", "provider", cred.Provider, "status", ue.Status)
		writeJSON(w, http.StatusOK, protocol.ValidateKeyResponse{Valid: false, Message: msg})
		return
	}

	slog.Warn("api key validation failed",
		"provider", cred.Provider,
		"error", redact.Credentials(err.Error()),
		"request_id", RequestID(r.Context()),
	)
	writeJSON(w, http.StatusInternalServerError, protocol.ValidateKeyResponse{Valid: false, Message: msgValidateFailed})
}

// handleTestModels answers POST /api/test-models and POST /api/models.
func (s *Server) handleTestModels(w http.ResponseWriter, r *http.Request) {
	var req protocol.KeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, modelsError(err.Error()))
		return
	}
	cred, msg, err := keyRequestCredential(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, modelsError(msg))
		return
	}

	client, err := providers.New(*cred, s.chat.Settings())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, modelsError(err.Error()))
		return
	}

	models, err := s.models.ListModels(r.Context(), client, *cred)
	if err != nil {
		var ue *providers.UpstreamError
		if errors.As(err, &ue) {
			msg := ue.Message
			if msg == "" {
				msg = msgModelsFetchFailed
			}
			writeJSON(w, http.StatusOK, modelsError(msg))
			return
		}
		slog.Warn("model listing failed",
			"provider", cred.Provider,
			"error", redact.Credentials(err.Error()),
			"request_id", RequestID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, modelsError(msgModelsFetchFailed))
		return
	}

	if models == nil {
		models = []protocol.Model{}
	}
	writeJSON(w, http.StatusOK, protocol.ModelsResponse{Success: len(models) > 0, Models: models, Count: len(models)})
}

func modelsError(msg string) protocol.ModelsResponse {
	return protocol.ModelsResponse{Success: false, Models: []protocol.Model{}, Error: msg}
}
