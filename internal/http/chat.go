package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/skhoolar/skhoolar/internal/chat"
	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/internal/redact"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// handleChat answers POST /api/chat. Without apiKey and provider the reply
// is the canned guide text. Upstream rejections still return 200 with a
// user-safe reply; only unreachable providers or unexpected failures are 500.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "message is required")
		return
	}

	cred, _, err := requestCredential(req.APIKey, req.Provider, req.Endpoint, req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err), err.Error())
		return
	}

	reply, err := s.chat.Reply(r.Context(), chat.Request{
		Message:    req.Message,
		Node:       req.ContextNode,
		Credential: cred,
	})
	if _, ok := asValidation(err); ok {
		writeError(w, http.StatusBadRequest, validationCode(err), err.Error())
		return
	}
	writeJSON(w, chatStatus(err, r), protocol.ChatResponse{Reply: reply})
}

// chatStatus maps a chat.Service error onto the HTTP status of a reply
// that is sent regardless.
func chatStatus(err error, r *http.Request) int {
	if err == nil {
		return http.StatusOK
	}
	var ue *providers.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusOK
	}
	slog.Error("chat request failed",
		"error", redact.Credentials(err.Error()),
		"request_id", RequestID(r.Context()),
	)
	return http.StatusInternalServerError
}

func validationCode(err error) string {
	if ve, ok := asValidation(err); ok && ve.Field == "provider" {
		return protocol.ErrUnsupported
	}
	return protocol.ErrInvalidRequest
}
