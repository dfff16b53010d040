package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// UpstreamError is a non-2xx response from a provider. Message is the
// provider's own error text with credentials scrubbed; it is safe to log
// but is still not shown verbatim to chat users (see SafeMessage).
type UpstreamError struct {
	Provider Provider
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Message)
}

// ErrTransport marks failures to reach the provider at all.
var ErrTransport = errors.New("provider unreachable")

// SafeMessage maps a provider error to text that can be shown to a chat user.
// Raw upstream payloads are never exposed.
func SafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UpstreamError
	status := 0
	if errors.As(err, &ue) {
		status = ue.Status
	}
	lower := strings.ToLower(err.Error())

	switch {
	case status == http.StatusTooManyRequests ||
		containsAny(lower, "rate limit", "rate_limit", "too many requests", "quota exceeded", "resource_exhausted"):
		return "⚠️ API rate limit reached. Please try again later."

	case status == 529 || strings.Contains(lower, "overloaded"):
		return "⚠️ The AI service is temporarily overloaded. Please try again in a moment."

	case status == http.StatusPaymentRequired ||
		containsAny(lower, "billing", "insufficient credits", "credit balance", "payment required", "insufficient_quota"):
		return "⚠️ API billing error. Your API key may have run out of credits. Check your provider's billing dashboard."

	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		containsAny(lower, "invalid api key", "invalid_api_key", "incorrect api key", "api key not valid", "unauthorized", "authentication", "permission denied"):
		return "⚠️ Authentication error. Please check your API key in settings."

	case errors.Is(err, context.DeadlineExceeded) || containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return "⚠️ Request timed out. Please try again."

	case status == http.StatusNotFound || containsAny(lower, "model_not_found", "not a valid model", "does not exist", "is not found"):
		return "⚠️ The selected model is not available for this API key. Choose another model in settings."

	case containsAny(lower, "context length exceeded", "maximum context length", "prompt is too long", "request_too_large"):
		return "⚠️ Message too large for this model. Try a shorter question."

	case errors.Is(err, ErrTransport):
		return "⚠️ Could not reach the AI provider. Check your network or endpoint and try again."
	}

	slog.Warn("unclassified provider error", "error", err.Error())
	return "⚠️ Sorry, something went wrong talking to the AI provider. Please try again."
}

// containsAny returns true if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
