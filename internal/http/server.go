// Package http serves the skhoolar gateway: the stateless chat, key
// validation and model listing endpoints and the /ws/chat WebSocket.
// Provider credentials arrive per request and are never stored here.
package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/skhoolar/skhoolar/internal/chat"
	"github.com/skhoolar/skhoolar/internal/providers"
	"github.com/skhoolar/skhoolar/pkg/protocol"
)

// Options configures a Server.
type Options struct {
	Chat   *chat.Service
	Models *providers.CachedLister

	// Token, when set, is required as a bearer token on every endpoint but /healthz.
	Token string

	// RateLimitRPM and Burst bound requests per client. RPM 0 disables limiting.
	RateLimitRPM int
	Burst        int

	// AllowedOrigins restricts browser origins for CORS and WebSocket. Empty allows any.
	AllowedOrigins []string

	Version string
}

// Server holds the gateway handlers. It is safe for concurrent use.
type Server struct {
	chat     *chat.Service
	models   *providers.CachedLister
	token    string
	limiter  *RateLimiter
	origins  []string
	version  string
	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	if opts.Models == nil {
		opts.Models = providers.NewCachedLister(0, 0)
	}
	s := &Server{
		chat:    opts.Chat,
		models:  opts.Models,
		token:   opts.Token,
		limiter: NewRateLimiter(opts.RateLimitRPM, opts.Burst),
		origins: opts.AllowedOrigins,
		version: opts.Version,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetRateLimit applies a new rate limit to all clients (config reload).
func (s *Server) SetRateLimit(rpm, burst int) {
	s.limiter.SetRate(rpm, burst)
}

// Close releases background resources.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Handler returns the gateway's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/validate-key", s.handleValidateKey)
	mux.HandleFunc("POST /api/test-models", s.handleTestModels)
	mux.HandleFunc("POST /api/models", s.handleTestModels)
	mux.HandleFunc("GET /ws/chat", s.handleWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.requireToken(h)
	h = s.cors(h)
	h = recoverPanics(h)
	h = logRequests(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok", Version: s.version})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, protocol.ErrResourceExhausted, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return len(s.origins) == 0 || slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	if !s.originAllowed(origin) {
		slog.Warn("security.origin_rejected", "origin", origin)
		return false
	}
	return true
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var tracer = otel.Tracer("github.com/skhoolar/skhoolar/internal/http")

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the ID assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("skhoolar.request_id", id),
			),
		)
		defer span.End()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		// Query strings may carry tokens; only the path is logged.
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.Error("http handler panic",
					"path", r.URL.Path,
					"request_id", RequestID(r.Context()),
					"panic", v,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
