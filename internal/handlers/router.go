package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"go.uber.org/zap"

	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/rules"
	"rosenkoenig/internal/security"
	"rosenkoenig/internal/service"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig collects everything the API routes need
type RouterConfig struct {
	Games          *service.GameService
	Turns          rules.Function
	Hub            *realtime.Hub
	Tokens         *security.TokenIssuer
	Limiter        *security.RateLimiter
	DB             Pinger
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the HTTP API
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	middleware := NewMiddleware(cfg.Tokens, cfg.Limiter, logger)
	guestHandler := NewGuestHandler(cfg.Tokens, logger)
	sessionHandler := NewSessionHandler(cfg.Games, cfg.Hub, logger)

	auth := middleware.RequireIdentity
	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RateLimit(h))
	}

	mux := http.NewServeMux()

	// Identity
	mux.HandleFunc("POST /api/guests", middleware.RateLimit(guestHandler.CreateGuest))

	// Sessions
	mux.HandleFunc("POST /api/sessions", limited(sessionHandler.CreateSession))
	mux.HandleFunc("GET /api/sessions", auth(sessionHandler.ListSessions))
	mux.HandleFunc("GET /api/sessions/{id}", auth(sessionHandler.GetSession))
	mux.HandleFunc("POST /api/sessions/{id}/join", limited(sessionHandler.JoinSession))
	mux.HandleFunc("POST /api/sessions/{id}/moves", limited(sessionHandler.SubmitMove))
	mux.HandleFunc("POST /api/sessions/{id}/forfeit", limited(sessionHandler.Forfeit))
	mux.HandleFunc("GET /api/sessions/{id}/cells", auth(sessionHandler.Cells))
	mux.HandleFunc("GET /api/sessions/{id}/cards", auth(sessionHandler.Cards))
	mux.HandleFunc("GET /api/sessions/{id}/moves", auth(sessionHandler.Moves))
	mux.HandleFunc("GET /api/sessions/{id}/live", auth(sessionHandler.Live))

	// Turn function
	if cfg.Turns != nil {
		turnHandler := NewTurnHandler(cfg.Turns, logger)
		mux.HandleFunc("POST /functions/play-turn", middleware.RequireService(turnHandler.PlayTurn))
	}

	mux.HandleFunc("GET /healthz", health(cfg.DB))

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return middleware.Logging(cors(mux))
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// OriginChecker returns a websocket origin check for the allowed origins.
// A "*" entry, or no entries, allows every origin and yields nil.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	hosts := map[string]bool{}
	for _, origin := range allowed {
		if origin == "*" {
			return nil
		}
		hosts[strings.ToLower(strings.TrimRight(origin, "/"))] = true
	}
	if len(hosts) == 0 {
		return nil
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return hosts[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
