// ABOUTME: Entry point for the service desk BFF proxy
// ABOUTME: Wires config, session store, handlers, and middleware chains

package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mthomas/servicedesk-bff/cache"
	"github.com/mthomas/servicedesk-bff/config"
	"github.com/mthomas/servicedesk-bff/handlers"
	"github.com/mthomas/servicedesk-bff/logger"
	"github.com/mthomas/servicedesk-bff/middleware"
	"github.com/mthomas/servicedesk-bff/services"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting ServiceDesk BFF")
	slog.Info("Upstream configured", "url", cfg.UpstreamURL, "service_account_delegation", cfg.UseServiceAccount)

	// Session store: Redis when configured, otherwise in-process memory.
	var store services.SessionStore
	storeName := "memory"
	if cfg.RedisURL != "" {
		redisStore, err := services.NewRedisSessionStore(cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect session store", "error", err)
			os.Exit(1)
		}
		store = redisStore
		storeName = "redis"
	} else {
		store = services.NewMemorySessionStore(cache.New(time.Duration(cfg.SessionTTL) * time.Second))
	}
	slog.Info("Session store initialized", "backend", storeName)

	h := handlers.NewHandler(cfg, store, storeName)

	// Rate limiters: strict for login, loose for everything else.
	var authLimiter, defaultLimiter *middleware.RateLimiter
	if cfg.RateLimitEnabled {
		authLimiter = middleware.NewRateLimiter(cfg.RateLimitAuth, time.Minute)
		defaultLimiter = middleware.NewRateLimiter(cfg.RateLimitDefault, time.Minute)
	}

	cors := middleware.CORS(cfg.CORSAllowedOrigins)
	auth := middleware.Auth(h.SessionLookup())

	mux := http.NewServeMux()
	for _, route := range h.Routes() {
		chain := []func(http.HandlerFunc) http.HandlerFunc{middleware.LogRequest, cors}

		// The default limiter keys by session user, so it must sit inside
		// the auth middleware where the session is already in context.
		switch {
		case route.Path == "/login":
			chain = append(chain, middleware.RateLimit(authLimiter, middleware.ClientIP))
		case route.Auth:
			chain = append(chain, auth, middleware.RateLimit(defaultLimiter, middleware.UserOrIP))
		default:
			chain = append(chain, middleware.RateLimit(defaultLimiter, middleware.UserOrIP))
		}

		mux.HandleFunc(route.Method+" "+route.Path, middleware.Chain(route.Handler, chain...))
	}

	// Method-specific patterns above never match OPTIONS, so preflight
	// requests need their own route.
	mux.HandleFunc("OPTIONS /", middleware.Chain(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, middleware.LogRequest, cors))

	addr := ":" + cfg.Port
	slog.Info("Server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
