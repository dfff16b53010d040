package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skhoolar/skhoolar/internal/redact"
)

const maxResponseBytes = 4 << 20

var tracer = otel.Tracer("github.com/skhoolar/skhoolar/internal/providers")

// call is one upstream HTTP request.
type call struct {
	provider Provider
	op       string // span name suffix: chat, models, validate
	method   string
	url      string
	header   http.Header
	body     any // marshalled as JSON when non-nil
}

// do runs c, decodes a 2xx JSON body into out (if non-nil) and turns
// anything else into *UpstreamError or ErrTransport. The request URL never
// appears in returned errors since Gemini carries the key in the query.
func do(ctx context.Context, client *http.Client, c call, out any) (err error) {
	ctx, span := tracer.Start(ctx, "provider."+c.op, trace.WithAttributes(
		attribute.String("provider", string(c.provider)),
		attribute.String("http.method", c.method),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider call failed")
		}
		span.End()
	}()

	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", c.provider, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.provider, stripURL(err))
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, c.provider, c.op, stripURL(err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrTransport, c.provider, stripURL(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ue := &UpstreamError{
			Provider: c.provider,
			Status:   resp.StatusCode,
			Message:  redact.Credentials(upstreamMessage(data)),
		}
		slog.Warn("provider returned error",
			"provider", c.provider, "op", c.op, "status", resp.StatusCode,
			"body", redact.Preview(redact.Credentials(string(data)), 300))
		return ue
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

// upstreamMessage extracts error.message, the shape OpenAI, Anthropic and
// Gemini all share, falling back to a plain string error field.
func upstreamMessage(data []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &flat) == nil {
		return flat.Error
	}
	return ""
}

// stripURL drops the request URL from *url.Error, keeping the cause.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return fmt.Errorf("%s: %w", ue.Op, context.DeadlineExceeded)
		}
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
