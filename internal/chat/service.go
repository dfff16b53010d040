package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/internal/redact"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// Request is one chat-panel message.
type Request struct {
	Message string
	Node    *protocol.ContextNode
	History []providers.Message

	// Credential selects a provider. Nil means answer with FallbackReply.
	Credential *providers.Credential
}

// Service answers chat requests. It holds no per-user state and is safe
// for concurrent use.
type Service struct {
	settings  atomic.Pointer[providers.Settings]
	newClient func(providers.Credential, providers.Settings) (providers.Client, error)
}

func NewService(s providers.Settings) *Service {
	svc := &Service{newClient: providers.New}
	svc.settings.Store(&s)
	return svc
}

// SetSettings swaps provider settings for subsequent requests (config reload).
func (s *Service) SetSettings(ps providers.Settings) {
	s.settings.Store(&ps)
}

// Settings returns the current provider settings.
func (s *Service) Settings() providers.Settings {
	return *s.settings.Load()
}

// Reply answers req. On provider failure it returns a user-safe reply
// together with the error, so callers can pick a status code while still
// showing something sensible. Validation errors come back with an empty reply.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	if req.Credential == nil {
		return FallbackReply(req.Message, req.Node), nil
	}

	client, err := s.newClient(*req.Credential, s.Settings())
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := client.Chat(ctx, providers.ChatRequest{
		System:  SystemPrompt(req.Node),
		History: req.History,
		Message: req.Message,
		Model:   req.Credential.Model,
	})
	if err != nil {
		var ve *protocol.ValidationError
		if errors.As(err, &ve) {
			return "", err
		}
		slog.Warn("chat provider call failed",
			"provider", client.Name(),
			"error", redact.Credentials(err.Error()),
			"duration", time.Since(start))
		return providers.SafeMessage(err), err
	}

	slog.Debug("chat reply",
		"provider", client.Name(),
		"model", resp.Model,
		"message", redact.Preview(redact.Credentials(req.Message), 60),
		"duration", time.Since(start))
	return resp.Content, nil
}
