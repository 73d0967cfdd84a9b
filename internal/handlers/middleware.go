package handlers

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"rosenkoenig/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const PlayerContextKey ContextKey = "player"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens  *security.TokenIssuer
	limiter *security.RateLimiter
	logger  *zap.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(tokens *security.TokenIssuer, limiter *security.RateLimiter, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		tokens:  tokens,
		limiter: limiter,
		logger:  logger,
	}
}

// RequireIdentity is middleware that requires a valid bearer token
func (m *Middleware) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondUnauthorized(w, "a bearer token is required")
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Debug("rejected token", zap.Error(err))
			respondUnauthorized(w, "the bearer token is not valid")
			return
		}

		ctx := context.WithValue(r.Context(), PlayerContextKey, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// RequireService is middleware for internal endpoints. Only service tokens
// pass; a guest token is refused even when valid.
func (m *Middleware) RequireService(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondUnauthorized(w, "a bearer token is required")
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Debug("rejected token", zap.Error(err))
			respondUnauthorized(w, "the bearer token is not valid")
			return
		}
		if !claims.IsService() {
			m.logger.Warn("guest token used on internal endpoint",
				zap.String("player_id", claims.Subject),
				zap.String("path", r.URL.Path),
			)
			respondJSON(w, http.StatusForbidden, errorResponse{
				Error:   "forbidden",
				Message: "this endpoint requires a service credential",
			})
			return
		}

		ctx := context.WithValue(r.Context(), PlayerContextKey, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit throttles callers by player id, falling back to client address
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next(w, r)
			return
		}

		key := GetPlayerFromContext(r.Context())
		if key == "" {
			key = security.GetClientIP(r)
		}
		if !m.limiter.Allow(key) {
			wait := m.limiter.RetryAfter(key)
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
			respondJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:   "rate_limited",
				Message: "too many requests, slow down",
			})
			return
		}
		next(w, r)
	}
}

// Logging middleware logs HTTP requests
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// GetPlayerFromContext retrieves the player id from the request context
func GetPlayerFromContext(ctx context.Context) string {
	player, _ := ctx.Value(PlayerContextKey).(string)
	return player
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// statusRecorder captures the response status. It passes Hijack through so
// websocket upgrades still work behind the logger.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
